package screens

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/zpl-printer/internal/printer"
)

// JobsView shows detailed information about print jobs
type JobsView struct {
	app     *tview.Application
	jobs    *printer.JobTracker
	table   *tview.Table
	details *tview.TextView
	layout  *tview.Flex
	shown   []*printer.Job
}

// NewJobsView creates a new jobs view screen
func NewJobsView(app *tview.Application, jobs *printer.JobTracker) *JobsView {
	j := &JobsView{
		app:  app,
		jobs: jobs,
	}

	j.setupUI()
	return j
}

func (j *JobsView) setupUI() {
	j.table = tview.NewTable()
	j.table.SetBorder(true)
	j.table.SetTitle("Print Jobs")
	j.table.SetSelectable(true, false)
	j.table.SetFixed(1, 0)
	j.table.SetSelectedFunc(func(row, column int) {
		j.selectJob(row)
	})
	j.table.SetSelectionChangedFunc(func(row, column int) {
		j.selectJob(row)
	})

	j.details = tview.NewTextView()
	j.details.SetBorder(true)
	j.details.SetTitle("Job Details")
	j.details.SetDynamicColors(true)
	j.details.SetWrap(true)

	j.layout = tview.NewFlex().
		AddItem(j.table, 0, 2, true).
		AddItem(j.details, 0, 1, false)

	j.table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				j.Refresh()
				return nil
			case 'c':
				j.jobs.ClearFinished()
				j.Refresh()
				return nil
			}
		}
		return event
	})

	j.Refresh()
}

// Refresh reloads the job table
func (j *JobsView) Refresh() {
	j.table.Clear()

	j.table.SetCell(0, 0, tview.NewTableCell("ID").SetAlign(tview.AlignCenter).SetSelectable(false))
	j.table.SetCell(0, 1, tview.NewTableCell("Remote").SetAlign(tview.AlignCenter).SetSelectable(false))
	j.table.SetCell(0, 2, tview.NewTableCell("Status").SetAlign(tview.AlignCenter).SetSelectable(false))
	j.table.SetCell(0, 3, tview.NewTableCell("Labels").SetAlign(tview.AlignCenter).SetSelectable(false))
	j.table.SetCell(0, 4, tview.NewTableCell("Age").SetAlign(tview.AlignCenter).SetSelectable(false))

	j.shown = j.jobs.All()

	for i, job := range j.shown {
		row := i + 1

		j.table.SetCell(row, 0, tview.NewTableCell(job.ID[:8]))
		j.table.SetCell(row, 1, tview.NewTableCell(job.Remote))
		j.table.SetCell(row, 2, tview.NewTableCell(StatusIcon(job.Status)+" "+string(job.Status)))
		j.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", len(job.Labels))).SetAlign(tview.AlignRight))
		j.table.SetCell(row, 4, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}

	if len(j.shown) == 0 {
		j.details.SetText("[yellow]No jobs yet[white]")
	}
}

func (j *JobsView) selectJob(row int) {
	if row == 0 || row-1 >= len(j.shown) {
		return
	}
	j.details.SetText(JobDetails(j.shown[row-1]))
}

// JobDetails formats a job for a text view
func JobDetails(job *printer.Job) string {
	var details strings.Builder
	details.WriteString(fmt.Sprintf("[yellow]Job ID:[white] %s\n", job.ID))
	details.WriteString(fmt.Sprintf("[yellow]Remote:[white] %s\n", job.Remote))
	details.WriteString(fmt.Sprintf("[yellow]Status:[white] %s %s\n", StatusIcon(job.Status), job.Status))
	details.WriteString(fmt.Sprintf("[yellow]Bytes:[white] %d\n", job.Bytes))
	details.WriteString(fmt.Sprintf("[yellow]Created:[white] %s\n", job.CreatedAt.Format("2006-01-02 15:04:05")))
	if !job.FinishedAt.IsZero() {
		details.WriteString(fmt.Sprintf("[yellow]Took:[white] %s\n", job.FinishedAt.Sub(job.CreatedAt).Round(time.Millisecond)))
	}

	if len(job.Labels) > 0 {
		details.WriteString("\n[yellow]Labels:[white]\n")
		for _, id := range job.Labels {
			details.WriteString("  " + id + "\n")
		}
	}
	if len(job.Warnings) > 0 {
		details.WriteString("\n[yellow]Warnings:[white]\n")
		for _, w := range job.Warnings {
			details.WriteString("  " + tview.Escape(w) + "\n")
		}
	}
	if job.Error != "" {
		details.WriteString(fmt.Sprintf("\n[red]Error:[white] %s\n", tview.Escape(job.Error)))
	}

	details.WriteString("\n[yellow]Press 'r' to refresh, 'c' to clear finished[white]")
	return details.String()
}

// StatusIcon decorates a job status
func StatusIcon(status printer.JobStatus) string {
	switch status {
	case printer.JobAccepted, printer.JobReceiving:
		return "⏳"
	case printer.JobParsing, printer.JobRendering:
		return "🟡"
	case printer.JobCompleted:
		return "✅"
	case printer.JobFailed:
		return "❌"
	default:
		return "⚪"
	}
}

// GetRoot returns the root primitive for this screen
func (j *JobsView) GetRoot() tview.Primitive {
	return j.layout
}
