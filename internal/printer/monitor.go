package printer

import (
	"context"
	"time"

	"github.com/thereceipt/zpl-printer/internal/notify"
	"go.uber.org/zap"
)

// Syncer reconciles a label store with its backing files
type Syncer interface {
	Sync() (int, error)
}

// Monitor periodically reconciles the label store and tells presentation
// layers to refresh
type Monitor struct {
	server   *Server
	syncer   Syncer
	interval time.Duration
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a new monitor. syncer may be nil.
func NewMonitor(server *Server, syncer Syncer, interval time.Duration, log *zap.Logger) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Monitor{
		server:   server,
		syncer:   syncer,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins the refresh loop
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// Stop stops the monitor and waits for the loop to exit
func (m *Monitor) Stop() {
	m.cancel()
	<-m.done
}

func (m *Monitor) tick() {
	data := map[string]interface{}{}

	if m.syncer != nil {
		removed, err := m.syncer.Sync()
		if err != nil {
			m.log.Warn("label store sync failed", zap.Error(err))
		} else if removed > 0 {
			m.log.Info("dropped labels with missing images", zap.Int("count", removed))
			data["removed"] = removed
		}
	}

	status := m.server.Status()
	data["running"] = status.Running
	data["active_jobs"] = status.ActiveJobs
	m.server.notifier.Publish(notify.New(notify.EventRefresh, data))
}
