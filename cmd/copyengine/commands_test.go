package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"copyengine/internal/api"
	"copyengine/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("PORT", "")
	target := filepath.Join(t.TempDir(), "nested", "copyengine.toml")

	out, _, err := runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, target, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, target)
}

func TestConfigValidateReportsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[store]\ndriver = \"postgres\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := runCLI(t, path, "config", "validate")
	if err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("expected store driver error, got %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("secret"))
	out, _, err := runCLI(t, env.configPath, "--json", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	var summary map[string]string
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary["api token"] != "yes" || summary["store"] != "memory" {
		t.Fatalf("unexpected summary: %v", summary)
	}
}

func TestQCCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "--json", "qc", "--source", rewriteSource, "--candidate", rewriteSource)
	if err != nil {
		t.Fatalf("qc: %v", err)
	}
	requireContains(t, out, `"overallPassed": true`)

	out, _, err = runCLI(t, env.configPath, "--json", "qc", "--source", rewriteSource, "--candidate", "太短了。")
	if !errors.Is(err, errGateFailed) {
		t.Fatalf("expected gate failure, got %v", err)
	}
	requireContains(t, out, `"overallPassed": false`)
}

func TestQCCommandReadsCandidatesFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "candidates.json")
	payload := `{"versions": [` + quote(rewriteSource) + `, ` + quote(rewriteSource) + `]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write candidates: %v", err)
	}
	out, _, err := runCLI(t, env.configPath, "--json", "qc", "--source", rewriteSource, "--candidates-file", path)
	if err != nil {
		t.Fatalf("qc: %v", err)
	}
	var report struct {
		VersionChecks []json.RawMessage `json:"versionChecks"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(report.VersionChecks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.VersionChecks))
	}
}

func TestQCCommandValidatesFlags(t *testing.T) {
	env := setupCLITestEnv(t)
	cases := map[string][]string{
		"no candidates": {"qc", "--source", rewriteSource},
		"no source":     {"qc", "--candidate", rewriteSource},
		"bad mode":      {"qc", "--source", rewriteSource, "--candidate", rewriteSource, "--mode", "remix"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := runCLI(t, env.configPath, args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateRewriteLocally(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "--json", "generate", "--source", rewriteSource)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var result generateOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Provider != "local_fallback" || len(result.Versions) != 3 || !result.QcReport.OverallPassed {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestGenerateRejectsIncompleteProduct(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env.configPath, "generate", "--source", rewriteSource, "--product-name", "轻面霜")
	if err == nil || !strings.Contains(err.Error(), "sellingPoints") {
		t.Fatalf("expected product validation error, got %v", err)
	}
}

func TestSubmitRewriteAndWait(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath,
		"--server", env.serverURL, "--json",
		"submit", "rewrite", "--source", rewriteSource,
		"--wait", "--interval", "20ms", "--timeout", "10s",
	)
	if err != nil {
		t.Fatalf("submit rewrite: %v", err)
	}
	requireContains(t, out, `"status": "succeeded"`)
	requireContains(t, out, `"versions"`)
}

func TestSubmitTranscriptThenJobFallsBackToTask(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithMockASR())
	out, _, err := runCLI(t, env.configPath,
		"--server", env.serverURL, "--json",
		"submit", "transcript", "看看这个 https://cdn.example.com/clips/a.mp4 好用",
	)
	if err != nil {
		t.Fatalf("submit transcript: %v", err)
	}
	var accepted api.TaskAccepted
	if err := json.Unmarshal([]byte(out), &accepted); err != nil || accepted.TaskID == "" {
		t.Fatalf("decode accepted: %v\n%s", err, out)
	}

	out, _, err = runCLI(t, env.configPath,
		"--server", env.serverURL, "--json",
		"job", accepted.TaskID, "--wait", "--interval", "20ms", "--timeout", "10s",
	)
	if err != nil {
		t.Fatalf("job: %v", err)
	}
	requireContains(t, out, `"status": "succeeded"`)
	requireContains(t, out, "cdn.example.com/clips/a.mp4")
}

func TestJobUnknownID(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, env.configPath, "--server", env.serverURL, "job", "missing")
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}

func TestSubmitWithWrongTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("secret"))
	_, _, err := runCLI(t, env.configPath,
		"--server", env.serverURL, "--token", "wrong",
		"submit", "rewrite", "--source", rewriteSource,
	)
	if err == nil || !strings.Contains(err.Error(), "UNAUTHORIZED") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}

	out, _, err := runCLI(t, env.configPath, "--server", env.serverURL, "--json", "submit", "rewrite", "--source", rewriteSource)
	if err != nil {
		t.Fatalf("submit with configured token: %v", err)
	}
	requireContains(t, out, `"jobId"`)
}

func TestSourceFileFromStdin(t *testing.T) {
	source := sourceFlags{file: "-"}
	text, err := source.read(strings.NewReader("  第一句。第二句。\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if text != "第一句。第二句。" {
		t.Fatalf("unexpected text %q", text)
	}
	both := sourceFlags{text: "a", file: "b"}
	if _, err := both.read(strings.NewReader("")); err == nil {
		t.Fatal("expected error when both flags are set")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	requireContains(t, out, "A")
	requireContains(t, out, "1")
	if strings.Count(out, "\n") < 4 {
		t.Fatalf("expected a bordered table, got %q", out)
	}
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	var title string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	defer ntfy.Close()
	env.cfg.Notifications.NtfyTopic = ntfy.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err = runCLI(t, env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title != "copyengine - Test" {
		t.Fatalf("unexpected title %q", title)
	}
}
