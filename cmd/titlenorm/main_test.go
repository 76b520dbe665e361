package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/titlenorm/internal/models"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after queries are moved first",
			args:     []string{"registered nurse", "-output", "json"},
			expected: []string{"-output", "json", "registered nurse"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-output", "json", "registered nurse"},
			expected: []string{"-output", "json", "registered nurse"},
		},
		{
			name:     "queries only returns unchanged",
			args:     []string{"registered nurse"},
			expected: []string{"registered nurse"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-record"},
			expected: []string{"-record", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"DBA"}, "DBA"},
		{"multiple words", []string{"Charge", "Nurse"}, "Charge Nurse"},
		{"quoted phrase", []string{"Charge Nurse"}, "Charge Nurse"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestCollectQueries(t *testing.T) {
	got, err := collectQueries([]string{"RN", " ", "Truck Driver"}, "", strings.NewReader("ignored"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"RN", "Truck Driver"}) {
		t.Errorf("args: got %v", got)
	}

	got, err = collectQueries(nil, "", strings.NewReader("RN\n\n  Truck Driver  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"RN", "Truck Driver"}) {
		t.Errorf("stdin: got %v", got)
	}

	path := filepath.Join(t.TempDir(), "titles.txt")
	if err := os.WriteFile(path, []byte("Auditor\nDBA\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err = collectQueries(nil, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"Auditor", "DBA"}) {
		t.Errorf("file: got %v", got)
	}

	if _, err := collectQueries([]string{"x"}, path, nil); err == nil {
		t.Error("expected error when both -file and arguments are given")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
index:
  cache_path: "./index.bin"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s (canon %s), want %s (canon %s)", resolved, resolvedCanon, configPath, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("a system config exists at the default path")
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" || cfg.Server.Port != 8080 {
		t.Errorf("resolved=%q cfg=%+v", resolved, cfg.Server)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config")
	}
}

// writeTestConfig writes a config that keeps the index and history inside a temp dir.
func writeTestConfig(t *testing.T, history bool) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "index:\n  cache_path: ./index.bin\nhistory:\n  database_path: ./history.db\n"
	if history {
		content += "  enabled: true\n"
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunMatch_inProcess(t *testing.T) {
	configPath := writeTestConfig(t, false)
	var out bytes.Buffer
	err := runMatch([]string{"Staff Nurse", "Internal Auditor", "-config", configPath, "-output", "json"}, nil, &out)
	if err != nil {
		t.Fatalf("runMatch: %v", err)
	}
	var resp models.MatchResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(resp.Results) != 2 ||
		resp.Results[0].Classification != "Registered Nurses" ||
		resp.Results[1].Classification != "Accountants and Auditors" {
		t.Errorf("results = %+v", resp.Results)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(configPath), "index.bin")); err != nil {
		t.Errorf("index cache not written next to config: %v", err)
	}
}

func TestRunMatch_recordRequiresHistory(t *testing.T) {
	configPath := writeTestConfig(t, false)
	err := runMatch([]string{"-config", configPath, "-record", "RN"}, nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "record failed") {
		t.Errorf("err = %v", err)
	}
}

func TestRunMatch_recordAndHistory(t *testing.T) {
	configPath := writeTestConfig(t, true)
	var out bytes.Buffer
	if err := runMatch([]string{"-config", configPath, "-record", "-output", "json", "RN", "DBA"}, nil, &out); err != nil {
		t.Fatalf("runMatch: %v", err)
	}
	var resp models.MatchResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID == "" {
		t.Fatal("expected a run id")
	}

	out.Reset()
	if err := runHistory([]string{"-config", configPath, "-output", "json"}, &out); err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	var list models.RunList
	if err := json.Unmarshal(out.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Runs[0].ID != resp.RunID || list.Runs[0].Source != "cli" {
		t.Errorf("runs = %+v", list)
	}

	out.Reset()
	if err := runHistory([]string{"-config", configPath, "-output", "compact", resp.RunID}, &out); err != nil {
		t.Fatalf("runHistory(id): %v", err)
	}
	if out.String() != "RN - Registered Nurses\nDBA - Database Administrators\n" {
		t.Errorf("run output = %q", out.String())
	}
}

func TestRunHistory_disabled(t *testing.T) {
	configPath := writeTestConfig(t, false)
	if err := runHistory([]string{"-config", configPath}, &bytes.Buffer{}); err == nil {
		t.Error("expected error when history is disabled")
	}
}

func TestRunStandardize_stdin(t *testing.T) {
	configPath := writeTestConfig(t, false)
	var out bytes.Buffer
	err := runStandardize([]string{"-config", configPath}, strings.NewReader("Truck Driver\nProgram Manager\n"), &out)
	if err != nil {
		t.Fatalf("runStandardize: %v", err)
	}
	want := "Truck Driver - Heavy and Tractor-Trailer Truck Drivers\nProgram Manager - Project Management Specialists\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRunStandardize_noQueries(t *testing.T) {
	configPath := writeTestConfig(t, false)
	if err := runStandardize([]string{"-config", configPath}, strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("expected error for an empty batch")
	}
}

func TestRunLookup(t *testing.T) {
	configPath := writeTestConfig(t, false)
	var out bytes.Buffer
	if err := runLookup([]string{"Charge", "Nurse", "-config", configPath, "-output", "compact"}, &out); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Registered Nurses\n" {
		t.Errorf("output = %q", out.String())
	}
	if err := runLookup([]string{"-config", configPath}, &bytes.Buffer{}); err == nil {
		t.Error("expected usage error without a title")
	}
}

func TestRunBuildAndStatus(t *testing.T) {
	configPath := writeTestConfig(t, false)
	var out bytes.Buffer
	if err := runBuild([]string{"-config", configPath, "-output", "json"}, &out); err != nil {
		t.Fatalf("runBuild: %v", err)
	}
	var st models.IndexStatus
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if !st.Loaded || st.Documents == 0 || st.IndexBytes == 0 {
		t.Errorf("build status = %+v", st)
	}

	out.Reset()
	if err := runStatus([]string{"-config", configPath}, &out); err != nil {
		t.Fatalf("runStatus: %v", err)
	}
	if !strings.Contains(out.String(), "loaded:          true") {
		t.Errorf("status output:\n%s", out.String())
	}
}

func TestRunConfig(t *testing.T) {
	configPath := writeTestConfig(t, false)
	var out bytes.Buffer
	if err := runConfig([]string{"-config", configPath}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "port: 8080") || !strings.Contains(out.String(), "cache_path:") {
		t.Errorf("config output:\n%s", out.String())
	}

	dest := filepath.Join(t.TempDir(), "written.yaml")
	out.Reset()
	if err := runConfig([]string{"-config", configPath, "-write", dest}, &out); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadConfig(dest); err != nil {
		t.Errorf("written config does not load: %v", err)
	}
}

func TestRunMatch_badOutputFormat(t *testing.T) {
	if err := runMatch([]string{"-output", "xml", "RN"}, nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error for unknown output format")
	}
}
