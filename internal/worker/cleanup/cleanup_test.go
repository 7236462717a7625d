package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockDeleter はExpiredSessionDeleterのモック実装。
type mockDeleter struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	err     error
}

func (m *mockDeleter) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.deleted, m.err
}

func (m *mockDeleter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	counts []int64
}

func (m *mockRecorder) RecordSessionsDeleted(count int64) {
	m.counts = append(m.counts, count)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{deleted: 5}
	recorder := &mockRecorder{}

	job := NewCleanupJob(deleter, newTestLogger(&buf), recorder)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if deleter.callCount() != 1 {
		t.Errorf("DeleteExpired called %d times, want 1", deleter.callCount())
	}
	if len(recorder.counts) != 1 || recorder.counts[0] != 5 {
		t.Errorf("recorded = %v, want [5]", recorder.counts)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("log is not JSON: %v", err)
	}
	if entry["deleted_count"] != float64(5) {
		t.Errorf("deleted_count = %v, want 5", entry["deleted_count"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("log should contain duration_ms")
	}
}

func TestCleanupJob_Run_NothingToDelete_IsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockDeleter{}, newTestLogger(&buf), nil)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() #%d error = %v", i+1, err)
		}
	}
}

func TestCleanupJob_Run_DeleteError_ReturnsWrappedError(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	recorder := &mockRecorder{}
	job := NewCleanupJob(&mockDeleter{err: dbErr}, newTestLogger(&buf), recorder)

	err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, dbErr)
	}
	if len(recorder.counts) != 0 {
		t.Error("nothing should be recorded on failure")
	}
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error log, got %s", buf.String())
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockDeleter{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for deleter.callCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if deleter.callCount() < 2 {
		t.Errorf("DeleteExpired called %d times, want at least 2", deleter.callCount())
	}
}
