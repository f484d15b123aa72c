package pipeline

import (
	"slices"
	"time"

	"versescope/internal/analysis"
	"versescope/internal/services/bibleapi"
)

// Phase names a state of the pipeline.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseLookingUp Phase = "looking_up"
	PhaseAnalyzing Phase = "analyzing"
	PhaseSuccess   Phase = "success"
	PhaseError     Phase = "error"
)

// Busy reports whether a run is in flight.
func (p Phase) Busy() bool {
	return p == PhaseLookingUp || p == PhaseAnalyzing
}

// Terminal reports whether the phase ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseSuccess || p == PhaseError
}

// Snapshot is a copy of the orchestrator state. Every snapshot handed out
// owns its Verse, Analysis and CrossReferences, so callers may modify it.
type Snapshot struct {
	Generation uint64           `json:"generation"`
	Phase      Phase            `json:"phase"`
	Query      string           `json:"query,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	RequestID  string           `json:"requestId,omitempty"`
	Verse      *bibleapi.Verse  `json:"verse,omitempty"`
	Analysis   *analysis.Record `json:"analysis,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  string           `json:"errorKind,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

// clone returns a copy that shares no memory with s.
func (s Snapshot) clone() Snapshot {
	if s.Verse != nil {
		verse := *s.Verse
		s.Verse = &verse
	}
	if s.Analysis != nil {
		record := *s.Analysis
		record.CrossReferences = slices.Clone(record.CrossReferences)
		s.Analysis = &record
	}
	return s
}
