package cli

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, LogInfo).Info("capture stopped", "frames", 33)

	out := buf.String()
	if !regexp.MustCompile(`^\d{2}:\d{2}:\d{2}\.\d{2} `).MatchString(out) {
		t.Errorf("log line %q should start with an HH:MM:SS.ms timestamp", out)
	}
	if !strings.Contains(out, "frames=33") {
		t.Errorf("log line %q should carry frames=33", out)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		level log.Level
		debug bool
	}{
		{"info hides renderer stdout", LogInfo, false},
		{"debug shows renderer stdout", LogDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&buf, tt.level)
			logger.Debug("renderer", "stdout", "rendering 4 frames")
			logger.Warn("renderer", "stderr", "boom")

			out := buf.String()
			if got := strings.Contains(out, "rendering 4 frames"); got != tt.debug {
				t.Errorf("debug line present = %v, want %v", got, tt.debug)
			}
			if !strings.Contains(out, "boom") {
				t.Errorf("warn line missing from %q", out)
			}
		})
	}
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer
	c := New(&buf, LogInfo)
	c.Logger.Debug("hidden")
	c.SetLogLevel(LogDebug)
	c.Logger.Debug("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, log.InfoLevel)

	prog := newProgress(logger)
	time.Sleep(10 * time.Millisecond)
	prog.done("protocol finished", "steps", 16)

	out := buf.String()
	for _, want := range []string{"protocol finished", "took=", "steps=16"} {
		if !strings.Contains(out, want) {
			t.Errorf("progress.done() output %q should contain %q", out, want)
		}
	}
	if strings.Index(out, "took=") > strings.Index(out, "steps=") {
		t.Errorf("took should be logged before other fields: %q", out)
	}
}

func TestLoggerContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogInfo)

	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("loggerFromContext without a logger should return log.Default()")
	}

	ctx := withLogger(context.Background(), logger)
	if loggerFromContext(ctx) != logger {
		t.Fatal("loggerFromContext should return the attached logger")
	}
	loggerFromContext(ctx).Info("frame written")
	if !strings.Contains(buf.String(), "frame written") {
		t.Error("attached logger should write to its buffer")
	}
}
