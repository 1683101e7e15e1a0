package command

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/notify"
)

// stopTimeout bounds how long "printer stop" waits for in-flight jobs
const stopTimeout = 30 * time.Second

// handleStatus handles the status command
// Usage: status
func (e *Executor) handleStatus(args []string) *Result {
	st := e.server.Status()

	state := "stopped"
	if st.Running {
		state = "listening"
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Printer %s on %s, label %s, %d active job(s), %d/%d render slots in use",
			state, st.Address, st.Format, st.ActiveJobs, st.SlotsInUse, st.SlotsTotal),
		Data: map[string]interface{}{
			"running":       st.Running,
			"address":       st.Address,
			"format":        st.Format.String(),
			"active_jobs":   st.ActiveJobs,
			"slots_in_use":  st.SlotsInUse,
			"slots_total":   st.SlotsTotal,
			"slots_waiting": st.SlotsWaiting,
			"jobs":          st.Jobs,
		},
	}
}

// handlePrinter handles printer commands
// Usage: printer start | stop | port <port>
func (e *Executor) handlePrinter(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: printer <start|stop|port>")
	}

	switch args[0] {
	case "start":
		if err := e.server.Start(); err != nil {
			return failure("failed to start printer: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Printer listening on %s", e.server.Addr()),
		}

	case "stop":
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := e.server.Stop(ctx); err != nil {
			return failure("failed to stop printer: %v", err)
		}
		return &Result{
			Success: true,
			Message: "Printer stopped",
		}

	case "port":
		if len(args) < 2 {
			return failure("usage: printer port <port>")
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return failure("invalid port: %s", args[1])
		}
		if _, err := e.UpdateSettings(func(c *config.Config) error {
			c.Printer.Port = port
			return nil
		}); err != nil {
			return failure("failed to change port: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Printer port set to %d", port),
		}

	default:
		return failure("unknown printer subcommand: %s. Use: start, stop, port", args[0])
	}
}

// handleJob handles job commands
// Usage: job list | status <id> | clear
func (e *Executor) handleJob(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: job <list|status|clear>")
	}

	jobs := e.server.Jobs()

	switch args[0] {
	case "list":
		all := jobs.All()
		jobList := make([]map[string]interface{}, len(all))
		for i, job := range all {
			jobList[i] = map[string]interface{}{
				"id":         job.ID,
				"remote":     job.Remote,
				"status":     job.Status,
				"labels":     len(job.Labels),
				"warnings":   len(job.Warnings),
				"created_at": job.CreatedAt,
			}
			if job.Error != "" {
				jobList[i]["error"] = job.Error
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d job(s)", len(all)),
			Data: map[string]interface{}{
				"jobs": jobList,
			},
		}

	case "status":
		if len(args) < 2 {
			return failure("usage: job status <id>")
		}
		job := jobs.Get(args[1])
		if job == nil {
			return failure("job not found: %s", args[1])
		}
		jobData := map[string]interface{}{
			"id":         job.ID,
			"remote":     job.Remote,
			"status":     job.Status,
			"bytes":      job.Bytes,
			"labels":     job.Labels,
			"warnings":   job.Warnings,
			"created_at": job.CreatedAt,
		}
		if job.Error != "" {
			jobData["error"] = job.Error
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Job %s is %s", job.ID, job.Status),
			Data:    jobData,
		}

	case "clear":
		n := jobs.ClearFinished()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Cleared %d finished job(s)", n),
		}

	default:
		return failure("unknown job subcommand: %s. Use: list, status, clear", args[0])
	}
}

// handleLabel handles label commands
// Usage: label list | show <id> | delete <id> | clear | sync
func (e *Executor) handleLabel(args []string) *Result {
	if len(args) == 0 {
		return failure("usage: label <list|show|delete|clear|sync>")
	}

	switch args[0] {
	case "list":
		entries, err := e.cache.List()
		if err != nil {
			return failure("failed to list labels: %v", err)
		}
		labels := make([]map[string]interface{}, len(entries))
		for i, entry := range entries {
			labels[i] = map[string]interface{}{
				"id":          entry.LabelID,
				"job_id":      entry.JobID,
				"width":       entry.Width,
				"height":      entry.Height,
				"degraded":    entry.Degraded,
				"rendered_at": entry.RenderedAt,
			}
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Found %d label(s)", len(entries)),
			Data: map[string]interface{}{
				"labels": labels,
			},
		}

	case "show":
		if len(args) < 2 {
			return failure("usage: label show <id>")
		}
		entry, err := e.cache.Get(args[1])
		if err != nil {
			return failure("label not found: %s", args[1])
		}
		path, _ := e.cache.Path(entry.LabelID)
		return &Result{
			Success: true,
			Message: path,
			Data: map[string]interface{}{
				"label": entry,
				"path":  path,
			},
		}

	case "delete":
		if len(args) < 2 {
			return failure("usage: label delete <id>")
		}
		if err := e.cache.Delete(args[1]); err != nil {
			return failure("failed to delete label: %v", err)
		}
		e.notifier.Publish(notify.New(notify.EventLabelDeleted, map[string]interface{}{
			"label_id": args[1],
		}))
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Deleted label %s", args[1]),
		}

	case "clear":
		if err := e.cache.Clear(); err != nil {
			return failure("failed to clear labels: %v", err)
		}
		e.notifier.Publish(notify.New(notify.EventRefresh, nil))
		return &Result{
			Success: true,
			Message: "Cleared all labels",
		}

	case "sync":
		n, err := e.cache.Sync()
		if err != nil {
			return failure("failed to sync labels: %v", err)
		}
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Dropped %d label(s) with missing images", n),
		}

	default:
		return failure("unknown label subcommand: %s. Use: list, show, delete, clear, sync", args[0])
	}
}

var setters = map[string]func(c *config.Config, v string) error{
	"ip_address": func(c *config.Config, v string) error {
		c.Printer.IPAddress = v
		return nil
	},
	"port": func(c *config.Config, v string) error {
		return setInt(&c.Printer.Port, v)
	},
	"auto_start": func(c *config.Config, v string) error {
		b, err := strconv.ParseBool(v)
		c.Printer.AutoStart = b
		return err
	},
	"unit": func(c *config.Config, v string) error {
		c.Label.Unit = v
		return nil
	},
	"width": func(c *config.Config, v string) error {
		return setFloat(&c.Label.Width, v)
	},
	"height": func(c *config.Config, v string) error {
		return setFloat(&c.Label.Height, v)
	},
	"dpmm": func(c *config.Config, v string) error {
		return setInt(&c.Label.Dpmm, v)
	},
	"idle_timeout": func(c *config.Config, v string) error {
		return setDuration(&c.Limits.IdleTimeout, v)
	},
	"slot_wait": func(c *config.Config, v string) error {
		return setDuration(&c.Limits.SlotWait, v)
	},
	"render_slots": func(c *config.Config, v string) error {
		return setInt(&c.Limits.RenderSlots, v)
	},
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid number: %s", v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, v string) error {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid number: %s", v)
	}
	*dst = f
	return nil
}

func setDuration(dst *config.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration: %s", v)
	}
	*dst = config.Duration(d)
	return nil
}

// handleSettings handles settings commands
// Usage: settings [show] | set <key> <value>
func (e *Executor) handleSettings(args []string) *Result {
	if len(args) == 0 || args[0] == "show" {
		c := e.config.Get()
		return &Result{
			Success: true,
			Message: fmt.Sprintf("%s:%d, %gx%g %s @ %d dpmm, idle %s, %d render slots",
				c.Printer.IPAddress, c.Printer.Port, c.Label.Width, c.Label.Height, c.Label.Unit,
				c.Label.Dpmm, c.Limits.IdleTimeout, c.Limits.RenderSlots),
			Data: map[string]interface{}{
				"settings": c,
				"path":     e.config.Path(),
			},
		}
	}

	if args[0] != "set" {
		return failure("unknown settings subcommand: %s. Use: show, set", args[0])
	}
	if len(args) < 3 {
		keys := make([]string, 0, len(setters))
		for k := range setters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return failure("usage: settings set <key> <value> (keys: %s)", strings.Join(keys, ", "))
	}

	key, value := args[1], args[2]
	set, ok := setters[key]
	if !ok {
		return failure("unknown setting: %s", key)
	}

	if _, err := e.UpdateSettings(func(c *config.Config) error {
		return set(c, value)
	}); err != nil {
		return failure("failed to update %s: %v", key, err)
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Set %s to %s", key, value),
	}
}

// handleRender renders a file without storing it
// Usage: render <file>
func (e *Executor) handleRender(args []string) *Result {
	if len(args) < 1 {
		return failure("usage: render <file>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return failure("failed to read label file: %v", err)
	}

	labels, warnings, err := e.server.RenderOnce(context.Background(), data)
	if err != nil {
		return failure("failed to render: %v", err)
	}

	sizes := make([]string, len(labels))
	for i, l := range labels {
		sizes[i] = fmt.Sprintf("%dx%d", l.Metadata.Width, l.Metadata.Height)
	}
	messages := make([]string, len(warnings))
	for i, w := range warnings {
		messages[i] = w.Error()
	}

	return &Result{
		Success: true,
		Message: fmt.Sprintf("Rendered %d label(s) with %d warning(s)", len(labels), len(warnings)),
		Data: map[string]interface{}{
			"labels":   sizes,
			"warnings": messages,
		},
	}
}

// handleHelp handles help command
func (e *Executor) handleHelp(args []string) *Result {
	helpText := `Available Commands:

  status
    Show listener state, active jobs and render slots

  printer start | stop
    Start or stop the label listener (stop waits for running jobs)

  printer port <port>
    Change the listener port (running jobs are not interrupted)

  job list
    List recent print jobs

  job status <id>
    Get status, warnings and labels of a job

  job clear
    Forget finished jobs

  label list
    List rendered labels, newest first

  label show <id>
    Show a label's metadata and image path

  label delete <id> | clear | sync
    Delete one label, all labels, or drop labels whose image is gone

  settings [show]
    Show the current settings

  settings set <key> <value>
    Change a setting (ip_address, port, auto_start, unit, width, height,
    dpmm, idle_timeout, slot_wait, render_slots)

  render <file>
    Render a label file without storing it

  help
    Show this help message

Examples:
  settings set unit mm
  settings set width 100
  settings set dpmm 12
  printer port 9101
  render ./shipping.zpl
`

	return &Result{
		Success: true,
		Message: helpText,
	}
}
