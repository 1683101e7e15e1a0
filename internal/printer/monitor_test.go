package printer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thereceipt/zpl-printer/internal/notify"
)

type fakeSyncer struct {
	calls   atomic.Int32
	removed int
	err     error
}

func (f *fakeSyncer) Sync() (int, error) {
	f.calls.Add(1)
	return f.removed, f.err
}

func TestMonitor_PublishesRefresh(t *testing.T) {
	rec := &recorder{}
	s, err := NewServer(testSettings(), &memStore{}, rec, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	syncer := &fakeSyncer{removed: 2}
	m := NewMonitor(s, syncer, 20*time.Millisecond, nil)
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count(notify.EventRefresh) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	m.Stop()

	if n := rec.count(notify.EventRefresh); n < 2 {
		t.Fatalf("Expected at least 2 refresh events, got %d", n)
	}
	if syncer.calls.Load() < 2 {
		t.Errorf("Expected the label store to be synced on every tick, got %d calls", syncer.calls.Load())
	}

	rec.mu.Lock()
	first := rec.events[0]
	rec.mu.Unlock()
	if first.Data["removed"] != 2 {
		t.Errorf("Expected removed=2 in refresh data, got %v", first.Data["removed"])
	}
	if first.Data["running"] != false {
		t.Errorf("Expected running=false for a server that was never started, got %v", first.Data["running"])
	}
}

func TestMonitor_SyncErrorStillRefreshes(t *testing.T) {
	rec := &recorder{}
	s, err := NewServer(testSettings(), &memStore{}, rec, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	m := NewMonitor(s, &fakeSyncer{err: errors.New("disk gone")}, 10*time.Millisecond, nil)
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count(notify.EventRefresh) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	m.Stop()

	if rec.count(notify.EventRefresh) == 0 {
		t.Fatal("Expected a refresh event despite the sync error")
	}
}

func TestMonitor_StopWithoutTicks(t *testing.T) {
	s, err := NewServer(testSettings(), &memStore{}, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	m := NewMonitor(s, nil, time.Hour, nil)
	m.Start()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
