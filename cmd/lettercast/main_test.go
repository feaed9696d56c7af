package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func runCLI(t *testing.T, args []string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init without --overwrite refuses to clobber the file.
	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestRootShowsHelpWithoutArgs(t *testing.T) {
	out, err := runCLI(t, nil)
	if err != nil {
		t.Fatalf("root command: %v", err)
	}
	for _, want := range []string{"analyze", "feed", "runs"} {
		if !strings.Contains(out, want) {
			t.Fatalf("help output missing %q:\n%s", want, out)
		}
	}
}

func TestClassifySource(t *testing.T) {
	local := filepath.Join(t.TempDir(), "episode.mp3")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if src := classifySource(local); src.Kind.String() != "local file" {
		t.Fatalf("local path classified as %v", src.Kind)
	}
	if src := classifySource("https://example.test/episode.mp3"); src.Kind.String() != "audio url" {
		t.Fatalf("url classified as %v", src.Kind)
	}
}

func TestInferTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.test/shows/the-big-one.mp3?auth=xyz", "the big one"},
		{"/downloads/ep_042_final.mp3", "ep 042 final"},
		{"", "Untitled Episode"},
	}
	for _, tc := range cases {
		if got := inferTitle(tc.in); got != tc.want {
			t.Errorf("inferTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 40); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	long := strings.Repeat("a", 50)
	got := truncate(long, 40)
	if len(got) != 40 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate long = %q", got)
	}

	wide := strings.Repeat("ü", 50)
	got = truncate(wide, 40)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if n := len([]rune(got)); n != 40 || !strings.HasSuffix(got, "...") {
		t.Fatalf("truncate wide = %q (%d runes)", got, n)
	}
}
