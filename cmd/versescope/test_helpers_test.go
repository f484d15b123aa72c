package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

const analysisContent = "Sure! Here you go:\n```json\n" +
	`{"historicalContext":"Spoken to Nicodemus at night.","linguisticLens":"Greek agapao denotes self-giving love.","crossReferences":[{"verse":"Romans 5:8","explanation":"God shows his love"},{"verse":"1 John 4:9","explanation":"Love made manifest"}]}` +
	"\n```"

type cliTestEnv struct {
	baseDir    string
	configPath string
	stateDir   string
	bible      *httptest.Server
	llm        *httptest.Server

	bibleCalls atomic.Int32
	llmCalls   atomic.Int32
	llmContent atomic.Value
	llmStatus  atomic.Int32
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"OPENROUTER_API_KEY", "VERSESCOPE_LLM_API_KEY", "VERSESCOPE_LLM_MODEL", "VERSESCOPE_API_TOKEN"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Chdir(base)

	env := &cliTestEnv{
		baseDir:  base,
		stateDir: filepath.Join(base, "state"),
	}
	env.llmContent.Store(analysisContent)
	env.llmStatus.Store(http.StatusOK)

	env.bible = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.bibleCalls.Add(1)
		reference := strings.TrimPrefix(r.URL.Path, "/")
		if !strings.HasPrefix(reference, "John") {
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reference":        "John 3:16",
			"text":             "For God so loved the world, that he gave his one and only Son.\n",
			"translation_name": "World English Bible",
		})
	}))
	t.Cleanup(env.bible.Close)

	env.llm = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.llmCalls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		status := int(env.llmStatus.Load())
		if status != http.StatusOK {
			http.Error(w, "upstream unavailable", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": env.llmContent.Load().(string)}},
			},
		})
	}))
	t.Cleanup(env.llm.Close)

	env.configPath = filepath.Join(base, "config.toml")
	writeTestConfig(t, env.configPath, env, "test-key")
	return env
}

func writeTestConfig(t *testing.T, path string, env *cliTestEnv, apiKey string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[server]
bind = "127.0.0.1:0"

[bible]
base_url = %q

[llm]
api_key = %q
base_url = %q
model = "test/model"
retry_attempts = 2
retry_delay_ms = 0

[logging]
level = "error"
`, env.stateDir, filepath.Join(env.stateDir, "logs"), env.bible.URL, apiKey, env.llm.URL)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
