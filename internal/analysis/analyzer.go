package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"versescope/internal/logging"
	"versescope/internal/services"
	"versescope/internal/services/bibleapi"
	"versescope/internal/services/llm"
	"versescope/internal/textutil"
)

// readiness is implemented by completers that can report missing
// configuration without a network call.
type readiness interface {
	Ready() error
}

// Analyzer produces Records for verses.
type Analyzer struct {
	completer llm.Completer
	extractor llm.Extractor
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithExtractor overrides the JSON extraction strategy (defaults to
// llm.LenientExtractor).
func WithExtractor(extractor llm.Extractor) Option {
	return func(a *Analyzer) {
		if extractor != nil {
			a.extractor = extractor
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer wraps a completer.
func NewAnalyzer(completer llm.Completer, opts ...Option) *Analyzer {
	a := &Analyzer{
		completer: completer,
		extractor: llm.LenientExtractor{},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "analysis")
	return a
}

// Analyze asks the model for an analysis of verse and normalizes the reply.
// Configuration problems are reported before any request is sent.
func (a *Analyzer) Analyze(ctx context.Context, verse bibleapi.Verse, level DetailLevel) (Record, error) {
	if a == nil || a.completer == nil {
		return Record{}, services.Wrap(services.ErrConfiguration, "analysis", "analyze", "no completion client configured", nil)
	}
	if r, ok := a.completer.(readiness); ok {
		if err := r.Ready(); err != nil {
			return Record{}, err
		}
	}
	if strings.TrimSpace(verse.Reference) == "" || strings.TrimSpace(verse.Text) == "" {
		return Record{}, services.Wrap(services.ErrValidation, "analysis", "analyze", "verse reference and text required", nil)
	}

	logger := logging.WithContext(ctx, a.logger)
	prompt := BuildPrompt(verse.Reference, verse.Text, level)
	start := time.Now()
	raw, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return Record{}, err
	}
	logger.Debug("completion received",
		logging.String("reference", verse.Reference),
		logging.String("detail", level.String()),
		logging.Duration("latency", time.Since(start)),
		logging.Int("chars", len(raw)),
	)

	parsed, err := llm.DecodeObject(raw, a.extractor)
	if err != nil {
		logging.WarnWithContext(logger, "model output could not be parsed", "analysis_parse_failed",
			logging.String("reference", verse.Reference),
			logging.String("snippet", textutil.Snippet(raw, 0)),
			logging.String(logging.FieldErrorKind, services.KindParse),
			logging.String(logging.FieldErrorHint, "resubmit the verse or try the lenient extractor"),
		)
		return Record{}, err
	}
	record, err := Normalize(parsed)
	if err != nil {
		return Record{}, err
	}
	if len(record.CrossReferences) != 2 {
		logger.Info("unexpected cross reference count",
			logging.String("reference", verse.Reference),
			logging.Int("count", len(record.CrossReferences)),
		)
	}
	return record, nil
}
