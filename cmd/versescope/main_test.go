package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/go-cmp/cmp"

	"versescope/internal/analysis"
	"versescope/internal/pipeline"
	"versescope/internal/services"
	"versescope/internal/services/bibleapi"
)

func TestAnalyzeCommandRendersSections(t *testing.T) {
	env := setupCLITestEnv(t)

	out, stderr, err := runCLI(t, []string{"analyze", "John", "3:16"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze: %v\nstderr: %s", err, stderr)
	}
	requireContains(t, out, "John 3:16 (World English Bible)")
	requireContains(t, out, `"For God so loved the world, that he gave his one and only Son."`)
	requireContains(t, out, "== Historical Context ==")
	requireContains(t, out, "Spoken to Nicodemus at night.")
	requireContains(t, out, "== Linguistic Lens ==")
	requireContains(t, out, "== Cross-References ==")
	requireContains(t, out, "Romans 5:8")
	requireContains(t, out, "Love made manifest")

	requireContains(t, stderr, "Lookup:")
	requireContains(t, stderr, "Analysis:")
	requireContains(t, stderr, "[OK]")

	if got := env.bibleCalls.Load(); got != 1 {
		t.Fatalf("expected 1 lookup call, got %d", got)
	}
	if got := env.llmCalls.Load(); got != 1 {
		t.Fatalf("expected 1 llm call, got %d", got)
	}
}

func TestAnalyzeCommandJSONSnapshot(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"analyze", "--json", "--detail", "comprehensive", "John 3:16"}, env.configPath)
	if err != nil {
		t.Fatalf("analyze --json: %v", err)
	}
	var snap pipeline.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\n%s", err, out)
	}
	if snap.Phase != pipeline.PhaseSuccess || snap.Generation != 1 {
		t.Fatalf("unexpected snapshot phase=%s generation=%d", snap.Phase, snap.Generation)
	}
	if snap.Detail != analysis.DetailComprehensive.String() {
		t.Fatalf("expected comprehensive detail, got %q", snap.Detail)
	}
	wantVerse := &bibleapi.Verse{
		Reference:   "John 3:16",
		Text:        "For God so loved the world, that he gave his one and only Son.",
		Translation: "World English Bible",
	}
	if diff := cmp.Diff(wantVerse, snap.Verse); diff != "" {
		t.Fatalf("verse mismatch (-want +got):\n%s", diff)
	}
	wantRefs := []analysis.CrossReference{
		{Verse: "Romans 5:8", Explanation: "God shows his love"},
		{Verse: "1 John 4:9", Explanation: "Love made manifest"},
	}
	if snap.Analysis == nil {
		t.Fatal("expected analysis in snapshot")
	}
	if diff := cmp.Diff(wantRefs, snap.Analysis.CrossReferences); diff != "" {
		t.Fatalf("cross references mismatch (-want +got):\n%s", diff)
	}
}

func TestAnalyzeCommandUnknownVerse(t *testing.T) {
	env := setupCLITestEnv(t)

	_, stderr, err := runCLI(t, []string{"analyze", "Hezekiah 1:1"}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown verse")
	}
	requireContains(t, err.Error(), "Verse not found. Please check your verse input.")
	requireContains(t, err.Error(), services.KindNotFound)
	requireContains(t, stderr, "[ERROR]")
	if got := env.llmCalls.Load(); got != 0 {
		t.Fatalf("llm must not be called after a failed lookup, got %d calls", got)
	}
}

func TestAnalyzeCommandUpstreamFailureRetries(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llmStatus.Store(http.StatusServiceUnavailable)

	_, _, err := runCLI(t, []string{"analyze", "--quiet", "John 3:16"}, env.configPath)
	if err == nil {
		t.Fatal("expected upstream error")
	}
	requireContains(t, err.Error(), services.KindUpstream)
	if got := env.llmCalls.Load(); got != 2 {
		t.Fatalf("expected retry_attempts=2 llm calls, got %d", got)
	}
}

func TestAnalyzeCommandUnparseableResponse(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llmContent.Store("I would rather not answer in JSON.")

	_, _, err := runCLI(t, []string{"analyze", "-q", "John 3:16"}, env.configPath)
	if err == nil {
		t.Fatal("expected parse error")
	}
	requireContains(t, err.Error(), services.KindParse)
}

func TestAnalyzeCommandWithoutCredentials(t *testing.T) {
	env := setupCLITestEnv(t)
	writeTestConfig(t, env.configPath, env, "")

	_, _, err := runCLI(t, []string{"analyze", "-q", "John 3:16"}, env.configPath)
	if err == nil {
		t.Fatal("expected configuration error")
	}
	requireContains(t, err.Error(), services.KindConfiguration)
	if got := env.llmCalls.Load(); got != 0 {
		t.Fatalf("expected no llm calls without credentials, got %d", got)
	}
}

func TestAnalyzeCommandRejectsInvalidDetail(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"analyze", "--detail", "exhaustive", "John 3:16"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid detail error")
	}
	if env.bibleCalls.Load() != 0 {
		t.Fatal("lookup must not run with an invalid detail level")
	}
}

func TestLookupCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"lookup", "John", "3:16"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	requireContains(t, out, "John 3:16 (World English Bible)")

	out, _, err = runCLI(t, []string{"lookup", "--json", "John 3:16"}, env.configPath)
	if err != nil {
		t.Fatalf("lookup --json: %v", err)
	}
	var verse bibleapi.Verse
	if err := json.Unmarshal([]byte(out), &verse); err != nil {
		t.Fatalf("decode verse: %v", err)
	}
	if verse.Reference != "John 3:16" || strings.HasSuffix(verse.Text, "\n") {
		t.Fatalf("unexpected verse %+v", verse)
	}
	if env.llmCalls.Load() != 0 {
		t.Fatal("lookup must not call the llm")
	}
}

func TestPromptCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"prompt", "--detail", "brief", "John 3:16"}, env.configPath)
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	want := analysis.BuildPrompt("John 3:16", "For God so loved the world, that he gave his one and only Son.", analysis.DetailBrief)
	if strings.TrimRight(out, "\n") != strings.TrimRight(want, "\n") {
		t.Fatalf("prompt mismatch:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"prompt", "--text", "In the beginning", "Genesis 1:1"}, env.configPath)
	if err != nil {
		t.Fatalf("prompt --text: %v", err)
	}
	requireContains(t, out, "Genesis 1:1")
	requireContains(t, out, "In the beginning")
	if got := env.bibleCalls.Load(); got != 1 {
		t.Fatalf("--text must skip lookup, got %d lookup calls", got)
	}
	if env.llmCalls.Load() != 0 {
		t.Fatal("prompt must not call the llm")
	}
}

func TestLLMHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.llmContent.Store(`{"ok":true}`)

	out, _, err := runCLI(t, []string{"llm", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("llm health: %v", err)
	}
	requireContains(t, out, "[OK] test/model")

	env.llmStatus.Store(http.StatusUnauthorized)
	out, _, err = runCLI(t, []string{"llm", "health"}, env.configPath)
	if err == nil {
		t.Fatal("expected health failure")
	}
	requireContains(t, out, "[ERROR]")
	if strings.Contains(err.Error(), "test-key") {
		t.Fatalf("api key leaked in error: %v", err)
	}
}

func TestServeRefusesSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)

	if err := os.MkdirAll(env.stateDir, 0o755); err != nil {
		t.Fatalf("mkdir state: %v", err)
	}
	lock := flock.New(filepath.Join(env.stateDir, "versescope.lock"))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-lock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	_, _, err = runCLI(t, []string{"serve"}, env.configPath)
	if err == nil {
		t.Fatal("expected lock conflict")
	}
	requireContains(t, err.Error(), "already running")
}

func TestInvalidLogLevelFlag(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"--log-level", "chatty", "lookup", "John 3:16"}, env.configPath)
	if err == nil {
		t.Fatal("expected invalid log level error")
	}
	requireContains(t, err.Error(), "logging.level")
}
