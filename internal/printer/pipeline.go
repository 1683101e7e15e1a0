package printer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"time"

	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/parser"
	"github.com/thereceipt/zpl-printer/internal/renderer"
	"github.com/thereceipt/zpl-printer/internal/zpl"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
	"go.uber.org/zap"
)

var (
	// ErrTimeout is returned when a connection goes quiet before completing a label
	ErrTimeout = errors.New("timeout")

	// ErrNoLabels is returned when a stream ends without a single complete label
	ErrNoLabels = errors.New("job produced no labels")
)

const readChunk = 32 * 1024

// RenderedLabel is one rasterized label of a job
type RenderedLabel struct {
	Image    *image.Gray
	Metadata labelformat.Metadata
	Warnings []parser.Warning
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	settings := *s.settings.Load()
	gate := s.gate.Load()

	job := newJob(conn.RemoteAddr().String())
	s.jobs.add(job)

	log := s.log.With(zap.String("job_id", job.ID), zap.String("remote", job.Remote))
	log.Info("job accepted")
	s.notifier.Publish(notify.New(notify.EventJobStarted, map[string]interface{}{
		"job_id": job.ID,
		"remote": job.Remote,
	}))

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			s.fail(job, log, fmt.Errorf("internal error: %v", r))
		}
	}()

	labels, warnings, err := s.receive(conn, job, settings)
	s.jobs.update(job, func(j *Job) {
		for _, w := range warnings {
			j.Warnings = append(j.Warnings, w.Error())
		}
	})
	for _, w := range warnings {
		log.Warn("interpreter warning", zap.String("command", w.Command), zap.String("reason", w.Reason.Error()), zap.String("detail", w.Detail))
	}
	if err != nil {
		s.fail(job, log, err)
		return
	}

	s.jobs.update(job, func(j *Job) { j.Status = JobRendering })
	rendered, err := renderLabels(context.Background(), gate, settings, labels)
	if err != nil {
		s.fail(job, log, err)
		return
	}

	// all labels rendered before any is stored
	ids := make([]string, 0, len(rendered))
	for _, r := range rendered {
		r.Metadata.JobID = job.ID
		r.Metadata.Remote = job.Remote

		id, err := s.store.Store(r.Image, r.Metadata)
		if err != nil {
			// a failed job leaves nothing behind in the cache
			for _, stored := range ids {
				if derr := s.store.Delete(stored); derr != nil {
					log.Warn("failed to remove partial label", zap.String("label_id", stored), zap.Error(derr))
				}
			}
			s.fail(job, log, fmt.Errorf("failed to store label %d: %w", r.Metadata.Index, err))
			return
		}
		ids = append(ids, id)

		s.notifier.Publish(notify.New(notify.EventLabelRendered, map[string]interface{}{
			"label_id": id,
			"job_id":   job.ID,
			"index":    r.Metadata.Index,
			"width":    r.Metadata.Width,
			"height":   r.Metadata.Height,
			"degraded": r.Metadata.Degraded,
		}))
	}

	var bytes int64
	s.jobs.update(job, func(j *Job) {
		bytes = j.Bytes
		j.Labels = ids
		j.Status = JobCompleted
		j.FinishedAt = time.Now()
	})
	log.Info("job completed", zap.Int("labels", len(ids)), zap.Int64("bytes", bytes), zap.Int("warnings", len(warnings)))
	s.notifier.Publish(notify.New(notify.EventJobCompleted, map[string]interface{}{
		"job_id":   job.ID,
		"labels":   ids,
		"warnings": len(warnings),
	}))
}

func (s *Server) fail(job *Job, log *zap.Logger, err error) {
	s.jobs.update(job, func(j *Job) {
		j.Status = JobFailed
		j.Err = err
		j.Error = err.Error()
		j.FinishedAt = time.Now()
	})
	log.Warn("job failed", zap.Error(err))
	s.notifier.Publish(notify.New(notify.EventJobFailed, map[string]interface{}{
		"job_id": job.ID,
		"error":  err.Error(),
	}))
}

// receive reads the connection until EOF or the idle timeout and returns the
// completed labels. The idle window restarts only when a read advances the
// command stream; bytes outside any command and bare line breaks do not count.
// A quiet connection only counts as finished when it sits between formats with
// at least one label done.
func (s *Server) receive(conn net.Conn, job *Job, settings Settings) ([]*parser.Label, []parser.Warning, error) {
	tok := zpl.NewTokenizer(zpl.Options{MaxCommandBytes: settings.MaxCommandBytes})
	interp := parser.New(parser.Options{Density: settings.Format.Density})

	var labels []*parser.Label
	apply := func(cmds []zpl.Command) {
		for _, cmd := range cmds {
			if label := interp.Apply(cmd); label != nil {
				labels = append(labels, label)
			}
		}
	}
	finish := func() error {
		s.jobs.update(job, func(j *Job) { j.Status = JobParsing })
		rest, err := tok.Flush()
		apply(rest)
		if err != nil {
			interp.Fault(err)
			return err
		}
		interp.Finish()
		return nil
	}

	s.jobs.update(job, func(j *Job) { j.Status = JobReceiving })

	var total int64
	buf := make([]byte, readChunk)
	progress := time.Now()
	for {
		if err := conn.SetReadDeadline(progress.Add(settings.IdleTimeout)); err != nil {
			return nil, interp.Warnings(), err
		}

		n, err := conn.Read(buf)
		if n > 0 {
			total += int64(n)
			s.jobs.update(job, func(j *Job) { j.Bytes = total })
			if total > settings.MaxJobBytes {
				return nil, interp.Warnings(), fmt.Errorf("%w: job exceeds %d bytes", ErrResourceExhausted, settings.MaxJobBytes)
			}

			pending := tok.Pending()
			cmds, ferr := tok.Feed(buf[:n])
			if len(cmds) > 0 || tok.Pending() != pending {
				progress = time.Now()
			}
			apply(cmds)
			if ferr != nil {
				interp.Fault(ferr)
				return nil, interp.Warnings(), ferr
			}
		}
		if err == nil {
			continue
		}

		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if ferr := finishQuiet(tok, interp, apply); ferr != nil {
				return nil, interp.Warnings(), ferr
			}
			if interp.Phase() != parser.Idle || len(labels) == 0 {
				return nil, interp.Warnings(), fmt.Errorf("%w: no command data for %s after %d bytes", ErrTimeout, settings.IdleTimeout, total)
			}
			break
		}
		if !errors.Is(err, io.EOF) {
			s.log.Debug("read ended", zap.String("job_id", job.ID), zap.Error(err))
		}
		if ferr := finish(); ferr != nil {
			return nil, interp.Warnings(), ferr
		}
		break
	}

	if len(labels) == 0 {
		return nil, interp.Warnings(), ErrNoLabels
	}
	return labels, interp.Warnings(), nil
}

// finishQuiet emits whatever the tokenizer still holds without closing the
// format, so an open format is left InFormat
func finishQuiet(tok *zpl.Tokenizer, interp *parser.Interpreter, apply func([]zpl.Command)) error {
	rest, err := tok.Flush()
	apply(rest)
	if err != nil {
		interp.Fault(err)
	}
	return err
}

// renderLabels rasterizes every label while holding one render slot
func renderLabels(ctx context.Context, gate *Gate, settings Settings, labels []*parser.Label) ([]RenderedLabel, error) {
	canvas, err := settings.Format.Resolve()
	if err != nil {
		return nil, err
	}
	r, err := renderer.New(canvas)
	if err != nil {
		return nil, err
	}

	if err := gate.Acquire(ctx, settings.SlotWait); err != nil {
		return nil, err
	}
	defer gate.Release()

	out := make([]RenderedLabel, 0, len(labels))
	for i, label := range labels {
		img, err := r.Render(label)
		if err != nil {
			return nil, fmt.Errorf("label %d: %w", i, err)
		}
		out = append(out, RenderedLabel{
			Image:    img,
			Warnings: label.Warnings,
			Metadata: labelformat.Metadata{
				Index:      i,
				Width:      img.Bounds().Dx(),
				Height:     img.Bounds().Dy(),
				Density:    settings.Format.Density,
				Format:     settings.Format,
				Quantity:   label.Quantity,
				Warnings:   len(label.Warnings),
				Degraded:   label.Degraded(),
				RenderedAt: time.Now(),
			},
		})
	}
	return out, nil
}

// RenderOnce runs a complete job held in memory through the same pipeline as a
// network connection, without storing anything
func (s *Server) RenderOnce(ctx context.Context, data []byte) ([]RenderedLabel, []parser.Warning, error) {
	settings := s.Settings()
	if int64(len(data)) > settings.MaxJobBytes {
		return nil, nil, fmt.Errorf("%w: job exceeds %d bytes", ErrResourceExhausted, settings.MaxJobBytes)
	}

	cmds, err := zpl.Tokenize(data, zpl.Options{MaxCommandBytes: settings.MaxCommandBytes})
	if err != nil {
		return nil, nil, err
	}
	labels, warnings := parser.Execute(cmds, parser.Options{Density: settings.Format.Density})
	if len(labels) == 0 {
		return nil, warnings, ErrNoLabels
	}

	rendered, err := renderLabels(ctx, s.gate.Load(), settings, labels)
	return rendered, warnings, err
}
