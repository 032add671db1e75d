package logger

import (
	"bytes"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

var timestampPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] `)

func TestNewConsoleLoggerNormalizesLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "info"},
		{"DEBUG", "debug"},
		{"  warn ", "warn"},
		{"verbose", "info"},
		{"trace", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			logger := NewConsoleLogger(&bytes.Buffer{}, tt.input)
			if logger.logLevel != tt.want {
				t.Errorf("logLevel = %q, want %q", logger.logLevel, tt.want)
			}
		})
	}
}

func TestConsoleLoggerFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogInfo("resolved 3 instances")

	line := buf.String()
	if !timestampPrefix.MatchString(line) {
		t.Fatalf("missing timestamp prefix: %q", line)
	}
	if !strings.HasSuffix(line, "[INFO] resolved 3 instances\n") {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestConsoleLoggerLevelFiltering(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		dropped  []string
	}{
		{"trace", []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}, nil},
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}, []string{"TRACE"}},
		{"info", []string{"INFO", "WARN", "ERROR"}, []string{"TRACE", "DEBUG"}},
		{"warn", []string{"WARN", "ERROR"}, []string{"TRACE", "DEBUG", "INFO"}},
		{"error", []string{"ERROR"}, []string{"TRACE", "DEBUG", "INFO", "WARN"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := NewConsoleLogger(buf, tt.level)

			logger.LogTrace("t")
			logger.LogDebug("d")
			logger.LogInfo("i")
			logger.LogWarn("w")
			logger.LogError("e")

			out := buf.String()
			for _, lvl := range tt.expected {
				if !strings.Contains(out, "["+lvl+"]") {
					t.Errorf("expected %s in output:\n%s", lvl, out)
				}
			}
			for _, lvl := range tt.dropped {
				if strings.Contains(out, "["+lvl+"]") {
					t.Errorf("did not expect %s in output:\n%s", lvl, out)
				}
			}
		})
	}
}

func TestConsoleLoggerNilWriter(t *testing.T) {
	logger := NewConsoleLogger(nil, "trace")

	// must not panic
	logger.LogInfo("dropped")
	logger.LogBuildStart("/p/default.project.json")
	logger.LogBuildComplete("p", 1, time.Second)
}

func TestConsoleLoggerBufferHasNoColor(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	if logger.colorOutput {
		t.Fatal("colorOutput should be false for a bytes.Buffer")
	}
	logger.LogWarn("careful")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("unexpected ANSI codes: %q", buf.String())
	}
}

func TestLogBuildStartAndComplete(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	logger.LogBuildStart("/games/demo/default.project.json")
	logger.LogBuildComplete("demo", 42, 1500*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "Building /games/demo/default.project.json") {
		t.Errorf("start line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "demo complete: 42 instances (1s)") {
		t.Errorf("complete line = %q", lines[1])
	}
}

func TestLogBuildSuppressedAboveInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "warn")

	logger.LogBuildStart("/p")
	logger.LogBuildComplete("p", 1, time.Millisecond)

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{0, "0ms"},
		{2 * time.Second, "2s"},
		{59*time.Second + 900*time.Millisecond, "59s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestConsoleLoggerConcurrent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewConsoleLogger(buf, "info")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.LogInfo("tick")
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "\n"); got != 20 {
		t.Errorf("expected 20 lines, got %d", got)
	}
}

func TestNoOpLogger(t *testing.T) {
	n := NewNoOpLogger()
	n.LogTrace("x")
	n.LogDebug("x")
	n.LogInfo("x")
	n.LogWarn("x")
	n.LogError("x")
	n.LogBuildStart("x")
	n.LogBuildComplete("x", 0, 0)
}
