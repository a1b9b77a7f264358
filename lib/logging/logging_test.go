package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logger.LogLevel
	}{
		{"debug", logger.DEBUG},
		{"INFO", logger.INFO},
		{"", logger.INFO},
		{"warn", logger.WARNING},
		{"warning", logger.WARNING},
		{"error", logger.ERROR},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("verbose"); err == nil {
		t.Errorf("expected unknown level to fail")
	}
}

func TestFactoryLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewFactory(&buf)("store")

	l.Debugf("hidden %d", 1)
	l.Infof("opened %s", "a.db")
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden warning")
	l.Errorf("failed: %v", "boom")
	l.SetLevel(logger.DEBUG)
	l.Debugf("visible %d", 2)

	out := buf.String()
	for _, want := range []string{"opened a.db", "failed: boom", "visible 2", "store"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"hidden"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("expected output not to contain %q, got:\n%s", unwanted, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Errorf("expected 3 lines, got %d:\n%s", lines, out)
	}
}

func TestInit(t *testing.T) {
	if err := Init("warn"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := Init("debug"); err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	if err := Init("loud"); err == nil {
		t.Errorf("expected Init with an invalid level to fail")
	}
}
