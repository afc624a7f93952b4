package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
)

// resetLogger gives each test a fresh singleton writing to buf.
func resetLogger(t *testing.T, buf *bytes.Buffer) *Logger {
	t.Helper()
	once = sync.Once{}
	loggerInstance = nil
	logger := GetLogger()
	logger.SetOutput(buf)
	t.Cleanup(func() {
		once = sync.Once{}
		loggerInstance = nil
	})
	return logger
}

// TestGetLogger verifies singleton pattern - same instance returned
func TestGetLogger(t *testing.T) {
	logger1 := GetLogger()
	logger2 := GetLogger()

	if logger1 != logger2 {
		t.Error("GetLogger() should return same singleton instance")
	}
}

// TestLoggerDefaultVerboseMode verifies verbose is false by default
func TestLoggerDefaultVerboseMode(t *testing.T) {
	var buf bytes.Buffer
	logger := resetLogger(t, &buf)

	if logger.IsVerbose() {
		t.Error("Logger should have verbose=false by default")
	}
	if logger.Logrus().GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info level, got %v", logger.Logrus().GetLevel())
	}
}

// TestSetVerboseMode verifies SetVerboseMode changes level
func TestSetVerboseMode(t *testing.T) {
	var buf bytes.Buffer
	logger := resetLogger(t, &buf)

	SetVerboseMode(true)
	if !logger.IsVerbose() || logger.Logrus().GetLevel() != logrus.DebugLevel {
		t.Error("SetVerboseMode(true) should enable debug level")
	}

	SetVerboseMode(false)
	if logger.IsVerbose() || logger.Logrus().GetLevel() != logrus.InfoLevel {
		t.Error("SetVerboseMode(false) should restore info level")
	}
}

// TestDebugOnlyWhenVerbose verifies debug output is gated by verbose mode
func TestDebugOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	resetLogger(t, &buf)

	Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("expected no output when not verbose, got %q", buf.String())
	}

	SetVerboseMode(true)
	Debugf("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("expected debug output, got %q", buf.String())
	}
}

// TestLevelsWritten verifies info, warn and error are always written
func TestLevelsWritten(t *testing.T) {
	var buf bytes.Buffer
	resetLogger(t, &buf)

	Infof("info %s", "msg")
	Warnf("warn msg")
	Errorf("error %s", "msg")

	out := buf.String()
	for _, want := range []string{"level=info", "info msg", "level=warning", "warn msg", "level=error", "error msg"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got %q", want, out)
		}
	}
}

// TestSetFormatJSON verifies JSON output
func TestSetFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := resetLogger(t, &buf)

	if err := logger.SetFormat("json"); err != nil {
		t.Fatalf("SetFormat failed: %v", err)
	}
	logger.WithField("item_id", 5).Info("removed")

	out := buf.String()
	if !strings.Contains(out, `"msg":"removed"`) || !strings.Contains(out, `"item_id":5`) {
		t.Errorf("expected JSON entry, got %q", out)
	}

	if err := logger.SetFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

// TestRedirectToFile verifies output goes to the file until Close
func TestRedirectToFile(t *testing.T) {
	var buf bytes.Buffer
	logger := resetLogger(t, &buf)

	path := filepath.Join(t.TempDir(), "logs", "todoq.log")
	if err := logger.RedirectToFile(path); err != nil {
		t.Fatalf("RedirectToFile failed: %v", err)
	}
	Infof("to file")
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("expected message in log file, got %q", string(data))
	}
	if strings.Contains(buf.String(), "to file") {
		t.Error("message should not reach the original output")
	}
}
