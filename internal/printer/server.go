// Package printer is the virtual network label printer: it accepts raw label
// jobs over TCP, renders them and hands the bitmaps to a label store
package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
	"go.uber.org/zap"
)

// LabelStore persists rendered labels and returns their IDs
type LabelStore interface {
	Store(img image.Image, meta labelformat.Metadata) (string, error)
	Delete(id string) error
}

// Notifier receives lifecycle events
type Notifier interface {
	Publish(e notify.Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(notify.Event) {}

// Status is a point-in-time view of the printer
type Status struct {
	Running      bool                    `json:"running"`
	Address      string                  `json:"address"`
	Format       labelformat.LabelFormat `json:"format"`
	ActiveJobs   int                     `json:"active_jobs"`
	SlotsInUse   int                     `json:"slots_in_use"`
	SlotsTotal   int                     `json:"slots_total"`
	SlotsWaiting int                     `json:"slots_waiting"`
	Jobs         map[JobStatus]int       `json:"jobs"`
}

// Server listens for print jobs. Every accepted connection becomes a Job that
// runs on its own goroutine with the settings snapshot taken at accept time.
type Server struct {
	settings atomic.Pointer[Settings]
	gate     atomic.Pointer[Gate]

	store    LabelStore
	notifier Notifier
	jobs     *JobTracker
	log      *zap.Logger

	mu        sync.Mutex
	listener  net.Listener
	accepting sync.WaitGroup

	active   sync.WaitGroup
	inFlight atomic.Int32
}

// NewServer creates a stopped server
func NewServer(settings Settings, store LabelStore, notifier Notifier, log *zap.Logger) (*Server, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("label store is required")
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		store:    store,
		notifier: notifier,
		jobs:     NewJobTracker(DefaultHistory),
		log:      log,
	}
	s.settings.Store(&settings)
	s.gate.Store(NewGate(settings.RenderSlots))
	return s, nil
}

// Settings returns the current settings snapshot
func (s *Server) Settings() Settings {
	return *s.settings.Load()
}

// Jobs returns the job history
func (s *Server) Jobs() *JobTracker {
	return s.jobs
}

// Running reports whether the listener is bound
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Addr is the bound address, nil when stopped
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins accepting jobs
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return fmt.Errorf("printer already listening on %s", s.listener.Addr())
	}
	if err := s.bind(); err != nil {
		return err
	}

	s.notifier.Publish(notify.New(notify.EventPrinterStarted, map[string]interface{}{
		"address": s.listener.Addr().String(),
	}))
	return nil
}

// bind must be called with mu held
func (s *Server) bind() error {
	settings := s.settings.Load()

	l, err := net.Listen("tcp", settings.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", settings.Address(), err)
	}
	s.listener = l

	s.accepting.Add(1)
	go s.acceptLoop(l)

	s.log.Info("printer listening", zap.String("address", l.Addr().String()), zap.String("format", settings.Format.String()))
	return nil
}

// unbind must be called with mu held. In-flight jobs are not touched.
func (s *Server) unbind() {
	if s.listener == nil {
		return
	}
	s.listener.Close()
	s.listener = nil
	s.accepting.Wait()
}

// Stop closes the listener and waits for in-flight jobs to finish or ctx to
// expire
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.listener != nil
	s.unbind()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.active.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d in-flight jobs: %w", s.inFlight.Load(), ctx.Err())
	}

	if wasRunning {
		s.log.Info("printer stopped")
		s.notifier.Publish(notify.New(notify.EventPrinterStopped, nil))
	}
	return nil
}

// Reconfigure swaps the settings used by future jobs. Jobs already running keep
// their snapshot. A running listener is rebound when the address changed.
func (s *Server) Reconfigure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.settings.Swap(&settings)
	if old.RenderSlots != settings.RenderSlots {
		s.gate.Store(NewGate(settings.RenderSlots))
	}

	if s.listener != nil && old.Address() != settings.Address() {
		s.unbind()
		if err := s.bind(); err != nil {
			s.notifier.Publish(notify.New(notify.EventPrinterStopped, map[string]interface{}{
				"error": err.Error(),
			}))
			return err
		}
	}

	s.log.Info("settings changed", zap.String("address", settings.Address()), zap.String("format", settings.Format.String()))
	s.notifier.Publish(notify.New(notify.EventSettingsChanged, map[string]interface{}{
		"address": settings.Address(),
		"format":  settings.Format.String(),
	}))
	return nil
}

// Status reports listener, slot and job counters
func (s *Server) Status() Status {
	settings := s.Settings()
	gate := s.gate.Load()

	st := Status{
		Address:      settings.Address(),
		Format:       settings.Format,
		ActiveJobs:   int(s.inFlight.Load()),
		SlotsInUse:   gate.InUse(),
		SlotsTotal:   gate.Size(),
		SlotsWaiting: gate.Waiting(),
		Jobs:         s.jobs.Counts(),
	}
	if addr := s.Addr(); addr != nil {
		st.Running = true
		st.Address = addr.String()
	}
	return st
}

func (s *Server) acceptLoop(l net.Listener) {
	defer s.accepting.Done()

	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.active.Add(1)
		s.inFlight.Add(1)
		go func() {
			defer s.active.Done()
			defer s.inFlight.Add(-1)
			s.handleConn(conn)
		}()
	}
}

func newJob(remote string) *Job {
	return &Job{
		ID:        uuid.New().String(),
		Remote:    remote,
		Status:    JobAccepted,
		CreatedAt: time.Now(),
	}
}
