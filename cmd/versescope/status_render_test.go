package main

import (
	"bytes"
	"strings"
	"testing"

	"versescope/internal/pipeline"
	"versescope/internal/services"
	"versescope/internal/services/bibleapi"
)

func TestRenderStatusLineColor(t *testing.T) {
	line := renderStatusLine("Lookup", statusOK, "John 3:16", true)
	if !strings.HasPrefix(line, ansiGreen) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected green line, got %q", line)
	}
	plain := renderStatusLine("Lookup", statusOK, "John 3:16", false)
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("unexpected ANSI codes in %q", plain)
	}
	if !strings.Contains(plain, "[OK] John 3:16") {
		t.Fatalf("unexpected status text %q", plain)
	}
}

func TestRenderPhaseLine(t *testing.T) {
	verse := &bibleapi.Verse{Reference: "John 3:16"}
	tests := []struct {
		name string
		snap pipeline.Snapshot
		want string
	}{
		{"idle", pipeline.Snapshot{Phase: pipeline.PhaseIdle}, ""},
		{"lookup", pipeline.Snapshot{Phase: pipeline.PhaseLookingUp, Query: "john 3:16"}, "[INFO] john 3:16"},
		{"analyzing", pipeline.Snapshot{Phase: pipeline.PhaseAnalyzing, Query: "john 3:16", Verse: verse, Detail: "brief"}, "[INFO] John 3:16 (brief)"},
		{"success", pipeline.Snapshot{Phase: pipeline.PhaseSuccess}, "[OK]"},
		{"not found", pipeline.Snapshot{Phase: pipeline.PhaseError, Error: "Verse not found.", ErrorKind: services.KindNotFound}, "[ERROR] Verse not found."},
		{"transient", pipeline.Snapshot{Phase: pipeline.PhaseError, Error: "retry", ErrorKind: services.KindTransient}, "[WARN] retry"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := renderPhaseLine(tc.snap, false)
			if tc.want == "" {
				if got != "" {
					t.Fatalf("expected empty line, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, got)
			}
		})
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers must not be colorized")
	}
}
