package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"versescope/internal/analysis"
	"versescope/internal/logging"
	"versescope/internal/services"
	"versescope/internal/services/bibleapi"
	"versescope/internal/textutil"
)

var (
	// ErrSuperseded is returned by Run when a newer submission replaced it.
	ErrSuperseded = errors.New("pipeline: superseded by a newer request")
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("pipeline: closed")
	// ErrEmptyQuery is returned by Run for blank input; the state is unchanged.
	ErrEmptyQuery = services.Wrap(services.ErrValidation, "pipeline", "submit", "query must not be empty", nil)
)

// VerseAnalyzer produces an analysis for a resolved verse.
type VerseAnalyzer interface {
	Analyze(ctx context.Context, verse bibleapi.Verse, level analysis.DetailLevel) (analysis.Record, error)
}

// Orchestrator owns the pipeline state and the generation counter.
type Orchestrator struct {
	looker   bibleapi.Looker
	analyzer VerseAnalyzer
	logger   *slog.Logger
	now      func() time.Time

	// deliverMu serializes publish+deliver so subscribers observe snapshots
	// in generation order. It is always acquired before mu.
	deliverMu sync.Mutex

	mu          sync.Mutex
	generation  uint64
	current     Snapshot
	cancel      context.CancelFunc
	subscribers map[uint64]func(Snapshot)
	nextSubID   uint64
	closed      bool

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs an idle orchestrator.
func New(looker bibleapi.Looker, analyzer VerseAnalyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		looker:      looker,
		analyzer:    analyzer,
		now:         time.Now,
		subscribers: make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "pipeline")
	o.current = Snapshot{Phase: PhaseIdle, UpdatedAt: o.now()}
	return o
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current.clone()
}

// Subscribe registers fn for every published snapshot and returns a function
// that removes it.
func (o *Orchestrator) Subscribe(fn func(Snapshot)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	o.mu.Lock()
	o.nextSubID++
	id := o.nextSubID
	o.subscribers[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subscribers, id)
			o.mu.Unlock()
		})
	}
}

// Submit starts a run in the background and returns its generation. Blank
// queries are ignored and return 0. The run is detached from ctx's
// cancellation but keeps its values.
func (o *Orchestrator) Submit(ctx context.Context, query string, level analysis.DetailLevel) uint64 {
	runCtx, gen, query, ok := o.begin(context.WithoutCancel(ctx), query, level)
	if !ok {
		return 0
	}
	go func() {
		defer o.wg.Done()
		_, _ = o.execute(runCtx, gen, query, level)
	}()
	return gen
}

// Run executes a submission synchronously and returns its final snapshot.
// Cancelling ctx cancels the run. If a newer submission replaces this one
// before it finishes, Run returns ErrSuperseded.
func (o *Orchestrator) Run(ctx context.Context, query string, level analysis.DetailLevel) (Snapshot, error) {
	if textutil.NormalizeQuery(query) == "" {
		return o.Snapshot(), ErrEmptyQuery
	}
	runCtx, gen, query, ok := o.begin(ctx, query, level)
	if !ok {
		return o.Snapshot(), ErrClosed
	}
	defer o.wg.Done()
	return o.execute(runCtx, gen, query, level)
}

// Reset cancels any in-flight run and returns to idle under a new generation.
func (o *Orchestrator) Reset() {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.generation++
	o.current = Snapshot{Generation: o.generation, Phase: PhaseIdle, UpdatedAt: o.now()}
	snap, subs := o.current, o.subscriberList()
	o.mu.Unlock()

	o.logger.Debug("pipeline reset", logging.Uint64(logging.FieldGeneration, snap.Generation))
	deliver(subs, snap)
}

// Wait blocks until all in-flight runs have returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close cancels the in-flight run, rejects new submissions, and waits for
// running goroutines to exit.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *Orchestrator) begin(parent context.Context, query string, level analysis.DetailLevel) (context.Context, uint64, string, bool) {
	query = textutil.NormalizeQuery(query)
	if query == "" {
		return nil, 0, "", false
	}

	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, 0, "", false
	}
	if o.cancel != nil {
		o.cancel()
	}
	o.generation++
	gen := o.generation
	runCtx, cancel := context.WithCancel(parent)
	o.cancel = cancel
	requestID := uuid.NewString()
	o.current = Snapshot{
		Generation: gen,
		Phase:      PhaseLookingUp,
		Query:      query,
		Detail:     level.String(),
		RequestID:  requestID,
		UpdatedAt:  o.now(),
	}
	snap, subs := o.current, o.subscriberList()
	o.wg.Add(1)
	o.mu.Unlock()

	runCtx = services.WithGeneration(runCtx, gen)
	runCtx = services.WithRequestID(runCtx, requestID)
	o.logTransition(runCtx, snap)
	deliver(subs, snap)
	return runCtx, gen, query, true
}

func (o *Orchestrator) execute(ctx context.Context, gen uint64, query string, level analysis.DetailLevel) (Snapshot, error) {
	verse, err := o.looker.Lookup(services.WithPhase(ctx, string(PhaseLookingUp)), query)
	if err != nil {
		return o.fail(ctx, gen, err)
	}

	snap, ok := o.publish(ctx, gen, func(s *Snapshot) {
		s.Phase = PhaseAnalyzing
		s.Verse = &verse
	})
	if !ok {
		return snap, ErrSuperseded
	}

	record, err := o.analyzer.Analyze(services.WithPhase(ctx, string(PhaseAnalyzing)), verse, level)
	if err != nil {
		return o.fail(ctx, gen, err)
	}

	snap, ok = o.publish(ctx, gen, func(s *Snapshot) {
		s.Phase = PhaseSuccess
		s.Analysis = &record
	})
	if !ok {
		return snap, ErrSuperseded
	}
	return snap, nil
}

func (o *Orchestrator) fail(ctx context.Context, gen uint64, err error) (Snapshot, error) {
	snap, ok := o.publish(ctx, gen, func(s *Snapshot) {
		s.Phase = PhaseError
		s.Error = services.UserMessage(err)
		s.ErrorKind = services.Kind(err)
	})
	if !ok {
		return snap, ErrSuperseded
	}
	logging.WarnWithContext(
		logging.WithContext(services.WithPhase(ctx, string(PhaseError)), o.logger),
		"pipeline run failed",
		"pipeline_failed",
		logging.String("query", snap.Query),
		logging.String(logging.FieldErrorKind, snap.ErrorKind),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, snap.Error),
	)
	return snap, err
}

// publish applies mutate to the current snapshot if gen is still current and
// delivers the result. It reports false, with the current snapshot, when gen
// is stale.
func (o *Orchestrator) publish(ctx context.Context, gen uint64, mutate func(*Snapshot)) (Snapshot, bool) {
	o.deliverMu.Lock()
	defer o.deliverMu.Unlock()

	o.mu.Lock()
	if gen != o.generation {
		current := o.current
		o.mu.Unlock()
		o.logger.Debug("dropping stale result",
			logging.Uint64("stale_generation", gen),
			logging.Uint64(logging.FieldGeneration, current.Generation),
		)
		return current.clone(), false
	}
	next := o.current
	mutate(&next)
	next.UpdatedAt = o.now()
	o.current = next
	if next.Phase.Terminal() && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	subs := o.subscriberList()
	o.mu.Unlock()

	o.logTransition(ctx, next)
	deliver(subs, next)
	return next.clone(), true
}

func (o *Orchestrator) logTransition(ctx context.Context, snap Snapshot) {
	logger := logging.WithContext(services.WithPhase(ctx, string(snap.Phase)), o.logger)
	attrs := []logging.Attr{logging.String("query", snap.Query)}
	if snap.Verse != nil {
		attrs = append(attrs, logging.String("reference", snap.Verse.Reference))
	}
	if snap.Analysis != nil {
		attrs = append(attrs, logging.Int("cross_references", len(snap.Analysis.CrossReferences)))
	}
	logger.Info("pipeline transition", logging.Args(attrs...)...)
}

// subscriberList must be called with mu held. Subscribers are returned in
// registration order.
func (o *Orchestrator) subscriberList() []func(Snapshot) {
	if len(o.subscribers) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(o.subscribers))
	for id := range o.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, o.subscribers[id])
	}
	return subs
}

func deliver(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap.clone())
	}
}
