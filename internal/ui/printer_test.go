package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrinterColumns(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)

	p.OK("Resolving keelerm84/deploy@main")
	p.Warn("Skipping status check")
	p.Fail("Creating deployment")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}

	for i, marker := range []string{"[OK]", "[WARN]", "[FAIL]"} {
		if got := strings.Index(lines[i], marker); got != column {
			t.Errorf("line %d: marker %s at %d, want %d (%q)", i, marker, got, column, lines[i])
		}
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("expected no escape codes when not writing to a terminal: %q", buf.String())
	}
}

func TestPrinterLongMessage(t *testing.T) {
	var buf bytes.Buffer
	msg := strings.Repeat("x", column+5)
	New(&buf, false).OK(msg)

	if got, want := buf.String(), msg+"[OK]\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrinterQuiet(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, true)

	p.OK("done")
	p.Warn("careful")
	p.Info("deployment %d", 789)
	p.Detail("compare: %s", "https://example.com")
	if err := p.Markdown("# Notes"); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("quiet printer wrote %q", buf.String())
	}

	p.Fail("broken")
	if !strings.Contains(buf.String(), "[FAIL]") {
		t.Errorf("failures must print in quiet mode, got %q", buf.String())
	}
}

func TestPrinterInfoAndDetail(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)

	p.Info("Deployment %s created", "789")
	p.Detail("compare: %s", "https://github.com/o/r/compare/a...b")

	want := "Deployment 789 created\n  compare: https://github.com/o/r/compare/a...b\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestPrinterMarkdown(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, false)

	if err := p.Markdown("## Changes\n\n- faster deploys\n"); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Changes") || !strings.Contains(out, "faster deploys") {
		t.Errorf("rendered notes missing content: %q", out)
	}
}

func TestPrinterMarkdownEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, false).Markdown("  \n"); err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty notes, got %q", buf.String())
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}
