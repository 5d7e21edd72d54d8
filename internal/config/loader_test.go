package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Paintersrp/spawn/subprocess"
)

func writeTaskfile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write taskfile: %v", err)
	}
	return path
}

func TestLoadParsesTasks(t *testing.T) {
	path := writeTaskfile(t, `
version: 1
tasks:
  build:
    command: ["make", "all"]
    workdir: src
    stdout: pipe
    stderr: stdout
  serve:
    command: ["./server"]
    stdin: "null"
    newProcessGroup: true
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if doc.Source != path {
		t.Fatalf("Source = %q, want %q", doc.Source, path)
	}
	if len(doc.Tasks) != 2 {
		t.Fatalf("parsed %d tasks, want 2", len(doc.Tasks))
	}

	build := doc.Tasks["build"]
	wantDir := filepath.Join(filepath.Dir(path), "src")
	if build.Workdir != wantDir {
		t.Fatalf("build workdir = %q, want %q", build.Workdir, wantDir)
	}
	opts, err := build.Options()
	if err != nil {
		t.Fatalf("build options: %v", err)
	}
	if opts.Stdout != subprocess.Piped {
		t.Fatalf("build stdout = %v, want pipe", opts.Stdout)
	}
	if opts.Stderr != subprocess.ToStdout {
		t.Fatalf("build stderr = %v, want stdout", opts.Stderr)
	}
	if opts.Stdin != nil {
		t.Fatalf("build stdin = %v, want default", opts.Stdin)
	}

	serve := doc.Tasks["serve"]
	opts, err = serve.Options()
	if err != nil {
		t.Fatalf("serve options: %v", err)
	}
	if opts.Stdin != subprocess.Null {
		t.Fatalf("serve stdin = %v, want null", opts.Stdin)
	}
	if !opts.NewProcessGroup {
		t.Fatal("serve did not keep newProcessGroup")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("SPAWN_TEST_TARGET", "release")
	path := writeTaskfile(t, `
tasks:
  build:
    command: ["make", "$SPAWN_TEST_TARGET"]
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	got := doc.Tasks["build"].Command
	if got[1] != "release" {
		t.Fatalf("command = %v, want env-expanded argument", got)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTaskfile(t, `
tasks:
  build:
    command: ["make"]
    restart: always
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsEmptyCommand(t *testing.T) {
	path := writeTaskfile(t, `
tasks:
  broken:
    workdir: /tmp
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("Load() error = %v, want task name in message", err)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseStdioVariants(t *testing.T) {
	cases := []struct {
		value  string
		stream string
		want   subprocess.Stdio
		ok     bool
	}{
		{"", "stdin", nil, true},
		{"inherit", "stdout", subprocess.Inherit, true},
		{"null", "stdout", subprocess.Null, true},
		{"pipe", "stderr", subprocess.Piped, true},
		{"stdout", "stderr", subprocess.ToStdout, true},
		{"stdout", "stdout", nil, false},
		{"stdout", "stdin", nil, false},
		{"file:/tmp/log.txt", "stdout", subprocess.File("/tmp/log.txt"), true},
		{"file:", "stdout", nil, false},
		{"teletype", "stdin", nil, false},
	}
	for _, tc := range cases {
		got, err := ParseStdio(tc.value, tc.stream)
		if tc.ok != (err == nil) {
			t.Errorf("ParseStdio(%q, %s) error = %v, want ok=%v", tc.value, tc.stream, err, tc.ok)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseStdio(%q, %s) = %v, want %v", tc.value, tc.stream, got, tc.want)
		}
	}
}
