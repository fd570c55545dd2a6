package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceLogger writes one JSON object per line describing each conversion.
// A nil or disabled logger discards everything.
type TraceLogger struct {
	mu       sync.Mutex
	file     *os.File
	enabled  bool
	filename string
}

// NewTraceLogger creates a trace logger writing to the system temp directory
func NewTraceLogger(enabled bool) (*TraceLogger, error) {
	return NewTraceLoggerInDir(enabled, os.TempDir())
}

// NewTraceLoggerInDir creates a trace logger writing to dir
func NewTraceLoggerInDir(enabled bool, dir string) (*TraceLogger, error) {
	if !enabled {
		return &TraceLogger{enabled: false}, nil
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := filepath.Join(dir, fmt.Sprintf("odata_sample_trace_%s_%d.log", timestamp, os.Getpid()))

	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}

	logger := &TraceLogger{
		file:     file,
		enabled:  enabled,
		filename: filename,
	}

	logger.Log("TRACE", "Trace logging started", map[string]interface{}{
		"filename": filename,
		"pid":      os.Getpid(),
		"time":     time.Now().Format(time.RFC3339),
	})

	return logger, nil
}

// Log writes a trace entry
func (t *TraceLogger) Log(level, message string, data interface{}) {
	if t == nil || !t.enabled || t.file == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := map[string]interface{}{
		"timestamp": time.Now().Format(time.RFC3339Nano),
		"level":     level,
		"message":   message,
	}
	if data != nil {
		entry["data"] = data
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[TRACE ERROR] Failed to marshal entry: %v\n", err)
		return
	}
	fmt.Fprintf(t.file, "%s\n", jsonData)
	t.file.Sync()
}

// LogInput records where a metadata document came from and its size
func (t *TraceLogger) LogInput(source string, size int) {
	t.Log("INPUT", "Metadata received", map[string]interface{}{
		"source": MaskURL(source),
		"bytes":  size,
	})
}

// LogParsed records the declaration counts of a parsed schema
func (t *TraceLogger) LogParsed(summary interface{}, elapsed time.Duration) {
	t.Log("PARSE", "Schema parsed", map[string]interface{}{
		"summary":    summary,
		"elapsed_ms": elapsed.Milliseconds(),
	})
}

// LogResult records the size of each section of a resolved result
func (t *TraceLogger) LogResult(sections map[string]int) {
	t.Log("RESULT", "Sample result built", sections)
}

// LogError logs an error with context
func (t *TraceLogger) LogError(context string, err error, data interface{}) {
	t.Log("ERROR", context, map[string]interface{}{
		"error": err.Error(),
		"data":  data,
	})
}

// GetFilename returns the trace filename
func (t *TraceLogger) GetFilename() string {
	if t == nil {
		return ""
	}
	return t.filename
}

// Close closes the trace file
func (t *TraceLogger) Close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.Log("TRACE", "Trace logging stopped", nil)
	return t.file.Close()
}
