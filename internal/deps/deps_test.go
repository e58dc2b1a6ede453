package deps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"subtoolkit/internal/config"
)

func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := []byte("#!/bin/sh\n" + body + "\n")
	if err := os.WriteFile(path, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  ", Optional: true},
	}

	results := CheckBinaries(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if !results[1].Missing() {
		t.Fatal("expected required binary to be missing")
	}
	if results[2].Detail != "command not configured" || results[2].Missing() {
		t.Fatalf("unexpected status for unset optional command: %#v", results[2])
	}
	if !AnyMissing(results) {
		t.Fatal("expected AnyMissing to report the missing binary")
	}
}

func TestCheckBinariesVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	binDir := t.TempDir()
	modern := writeStub(t, binDir, "ffmpeg-modern", `echo "ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023"`)
	old := writeStub(t, binDir, "ffmpeg-old", `echo "ffmpeg version 3.4.8 Copyright (c) 2000-2020"`)
	snapshot := writeStub(t, binDir, "ffmpeg-git", `echo "ffmpeg version N-113000-gabcdef"`)
	broken := writeStub(t, binDir, "ffmpeg-broken", "exit 3")

	req := func(cmd string) Requirement {
		return Requirement{Name: "FFmpeg", Command: cmd, VersionArgs: []string{"-version"}, MinVersion: MinFFmpegVersion}
	}
	results := CheckBinaries(context.Background(), []Requirement{req(modern), req(old), req(snapshot), req(broken)})

	if !results[0].Available || results[0].Version != "6.1.1" {
		t.Fatalf("expected modern ffmpeg to pass with version 6.1.1, got %#v", results[0])
	}
	if results[1].Available || results[1].Version != "3.4.8" {
		t.Fatalf("expected old ffmpeg to fail the minimum, got %#v", results[1])
	}
	if !results[2].Available || results[2].Version != "" {
		t.Fatalf("expected unversioned build to be accepted, got %#v", results[2])
	}
	if results[3].Available || results[3].Detail == "" {
		t.Fatalf("expected failing version check to be unavailable, got %#v", results[3])
	}
}

func TestParseVersion(t *testing.T) {
	cases := map[string]string{
		"Python 3.11.4\n":                      "3.11.4",
		"ffprobe version 4.4 Copyright":        "4.4",
		"mkvextract v82.0 ('I'm The Sun')\n":   "82.0",
		"no digits here":                       "",
		"tool\nversion 2.1.0 on second line\n": "2.1.0",
	}
	for input, want := range cases {
		if got := ParseVersion(input); got != want {
			t.Fatalf("ParseVersion(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCheckScripts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	cfg := config.Default()
	cfg.Paths.ScriptsDir = t.TempDir()
	binDir := t.TempDir()
	cfg.Tools.Interpreter = writeStub(t, binDir, "python3", `echo "Python 3.12.1"`)
	cfg.Tools.FFmpegPath = writeStub(t, binDir, "ffmpeg", `echo "ffmpeg version 7.0"`)
	cfg.Tools.FFprobePath = writeStub(t, binDir, "ffprobe", `echo "ffprobe version 7.0"`)
	writeStub(t, cfg.Paths.ScriptsDir, cfg.Tools.ExtractScript, "exit 0")
	writeStub(t, cfg.Paths.ScriptsDir, cfg.Tools.TranslateScript, "exit 0")
	if err := os.Mkdir(filepath.Join(cfg.Paths.ScriptsDir, cfg.Tools.SyncScript), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	byName := map[string]Status{}
	for _, s := range Check(context.Background(), &cfg) {
		byName[s.Name] = s
	}
	for _, name := range []string{"Python", "FFmpeg", "FFprobe", "Extract script", "Translate script"} {
		if !byName[name].Available {
			t.Fatalf("expected %s to be available, got %#v", name, byName[name])
		}
	}
	if byName["Sync script"].Available {
		t.Fatal("expected directory in place of the sync script to be rejected")
	}
	if byName["mkvextract"].Missing() {
		t.Fatal("mkvextract is optional")
	}
}

func TestCheckEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	if s := CheckEndpoint(context.Background(), "LM Studio", server.URL+"/v1/", "local"); !s.Available {
		t.Fatalf("expected endpoint to be available, got %#v", s)
	}
	s := CheckEndpoint(context.Background(), "LM Studio", server.URL+"/other", "local")
	if s.Available || s.Detail != "unexpected status 404" {
		t.Fatalf("expected 404 detail, got %#v", s)
	}
	if s.Missing() {
		t.Fatal("endpoint checks are optional")
	}
	if s := CheckEndpoint(context.Background(), "LM Studio", " ", "local"); s.Detail != "no URL configured" {
		t.Fatalf("unexpected detail %q", s.Detail)
	}
}
