package logger

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInit_WritesToExtraWriter(t *testing.T) {
	var out syncBuffer
	Init(false, &out)
	defer Init(false)

	Info("Job completed", zap.String("job_id", "abc"))
	Debug("hidden")
	Sync()

	got := out.String()
	if !strings.Contains(got, "Job completed") || !strings.Contains(got, "abc") {
		t.Errorf("Expected info line with field, got %q", got)
	}
	if strings.Contains(got, "hidden") {
		t.Error("Debug line written at info level")
	}
}

func TestInit_Debug(t *testing.T) {
	var out syncBuffer
	Init(true, &out)
	defer Init(false)

	Named("printer").Debug("visible")
	if !strings.Contains(out.String(), "printer") || !strings.Contains(out.String(), "visible") {
		t.Errorf("Expected named debug line, got %q", out.String())
	}
}
