// Package tui is the terminal front end of the virtual printer
package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/zpl-printer/internal/command"
	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/printer"
	"github.com/thereceipt/zpl-printer/internal/tui/screens"
)

// TViewApp is the main TUI application using tview
type TViewApp struct {
	App      *tview.Application
	server   *printer.Server
	cache    *labelcache.Cache
	store    *config.Store
	hub      *notify.Hub
	executor *command.Executor
	apiAddr  string

	// Main layout
	flex *tview.Flex

	// Panels
	labelsList   *tview.List
	jobsTable    *tview.Table
	statusBox    *tview.TextView
	logsArea     *tview.TextView
	commandInput *tview.InputField

	// State
	logs      []string
	logsMu    sync.Mutex
	maxLogs   int
	startTime time.Time
	labelIDs  []string

	// Screens
	currentScreen  string // "main", "labels", "jobs", "settings"
	labelsScreen   *screens.LabelsView
	jobsScreen     *screens.JobsView
	settingsScreen *screens.SettingsForm
}

// NewTViewApp creates a new tview-based TUI
func NewTViewApp(server *printer.Server, cache *labelcache.Cache, store *config.Store, hub *notify.Hub, apiAddr string) *TViewApp {
	app := tview.NewApplication()

	t := &TViewApp{
		App:           app,
		server:        server,
		cache:         cache,
		store:         store,
		hub:           hub,
		executor:      command.NewExecutor(server, cache, store, hub),
		apiAddr:       apiAddr,
		logs:          make([]string, 0),
		maxLogs:       200,
		startTime:     time.Now(),
		currentScreen: "main",
	}

	t.setupUI()
	t.setupScreens()
	return t
}

func (t *TViewApp) setupScreens() {
	t.labelsScreen = screens.NewLabelsView(t.App, t.cache)
	t.labelsScreen.OnDelete = func(id string) {
		t.hub.Publish(notify.New(notify.EventLabelDeleted, map[string]interface{}{"label_id": id}))
	}
	t.jobsScreen = screens.NewJobsView(t.App, t.server.Jobs())
	t.settingsScreen = screens.NewSettingsForm(t.App, t.store, t.executor.UpdateSettings)
}

func (t *TViewApp) setupUI() {
	t.labelsList = tview.NewList()
	t.labelsList.SetBorder(true)
	t.labelsList.SetTitle("Labels")
	t.labelsList.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		if index < len(t.labelIDs) {
			t.showLabel(t.labelIDs[index])
		}
	})

	t.jobsTable = tview.NewTable()
	t.jobsTable.SetBorder(true)
	t.jobsTable.SetTitle("Jobs")

	t.statusBox = tview.NewTextView()
	t.statusBox.SetBorder(true)
	t.statusBox.SetTitle("Printer Status")
	t.statusBox.SetDynamicColors(true)

	t.logsArea = tview.NewTextView()
	t.logsArea.SetBorder(true)
	t.logsArea.SetTitle("Logs")
	t.logsArea.SetDynamicColors(true)
	t.logsArea.SetScrollable(true)
	t.logsArea.SetChangedFunc(func() {
		t.App.Draw()
	})

	t.commandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0).
		SetPlaceholder("Type a command (e.g., 'help')").
		SetDoneFunc(func(key tcell.Key) {
			if key == tcell.KeyEnter {
				t.executeCommand(t.commandInput.GetText())
				t.commandInput.SetText("")
			}
		})

	topRow := tview.NewFlex().
		AddItem(t.labelsList, 0, 1, false).
		AddItem(t.jobsTable, 0, 1, false).
		AddItem(t.statusBox, 0, 1, false)

	bottom := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.logsArea, 0, 3, false).
		AddItem(t.commandInput, 1, 0, true)

	t.flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 1, false).
		AddItem(bottom, 0, 1, false)

	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.currentScreen != "main" {
			if event.Key() == tcell.KeyEsc {
				t.showMainScreen()
				return nil
			}
			return event
		}

		// typing a command must not trigger the screen shortcuts
		if t.commandInput.HasFocus() {
			if event.Key() == tcell.KeyEsc {
				t.App.SetFocus(t.labelsList)
				return nil
			}
			return event
		}

		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			t.App.Stop()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case ':':
				t.App.SetFocus(t.commandInput)
				return nil
			case 'q':
				t.App.Stop()
				return nil
			case 'l':
				t.showScreen("labels")
				return nil
			case 'j':
				t.showScreen("jobs")
				return nil
			case 's':
				t.showScreen("settings")
				return nil
			}
		}
		return event
	})

	t.App.SetRoot(t.flex, true)
}

// Run starts the TUI
func (t *TViewApp) Run() error {
	t.refreshAll()

	events, cancel := t.hub.Subscribe(128)
	defer cancel()
	go t.watchEvents(events)

	t.AddLog("🏷️  Virtual label printer ready", "info")
	return t.App.Run()
}

// watchEvents redraws on printer events; the refresh event from the monitor
// keeps relative times current
func (t *TViewApp) watchEvents(events <-chan notify.Event) {
	for e := range events {
		switch e.Type {
		case notify.EventJobCompleted:
			t.AddLog(fmt.Sprintf("✅ Job %v completed with %v label(s)", short(e.Data["job_id"]), countOf(e.Data["labels"])), "info")
		case notify.EventJobFailed:
			t.AddLog(fmt.Sprintf("Job %v failed: %v", short(e.Data["job_id"]), e.Data["error"]), "error")
		case notify.EventPrinterStarted:
			t.AddLog(fmt.Sprintf("🟢 Listening on %v", e.Data["address"]), "info")
		case notify.EventPrinterStopped:
			t.AddLog("🔴 Printer stopped", "warning")
		case notify.EventSettingsChanged:
			t.AddLog(fmt.Sprintf("Settings changed: %v %v", e.Data["address"], e.Data["format"]), "info")
		}

		t.App.QueueUpdateDraw(func() {
			t.refreshAll()
		})
	}
}

func (t *TViewApp) refreshAll() {
	t.refreshLabels()
	t.refreshJobs()
	t.refreshStatus()

	switch t.currentScreen {
	case "labels":
		t.labelsScreen.Refresh()
	case "jobs":
		t.jobsScreen.Refresh()
	}
}

func (t *TViewApp) refreshLabels() {
	current := t.labelsList.GetCurrentItem()
	t.labelsList.Clear()
	t.labelIDs = t.labelIDs[:0]

	entries, err := t.cache.List()
	if err != nil {
		t.labelsList.AddItem("Error loading labels", err.Error(), 0, nil)
		return
	}

	if len(entries) == 0 {
		t.labelsList.AddItem("No labels yet", "", 0, nil)
		return
	}

	for _, e := range entries {
		details := fmt.Sprintf("%dx%d • %s", e.Width, e.Height, e.RenderedAt.Format("15:04:05"))
		if e.Degraded {
			details += " • ⚠️"
		}
		t.labelsList.AddItem(e.LabelID, details, 0, nil)
		t.labelIDs = append(t.labelIDs, e.LabelID)
	}
	if current < len(entries) {
		t.labelsList.SetCurrentItem(current)
	}
}

func (t *TViewApp) refreshJobs() {
	t.jobsTable.Clear()

	t.jobsTable.SetCell(0, 0, tview.NewTableCell("Status").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.jobsTable.SetCell(0, 1, tview.NewTableCell("Remote").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.jobsTable.SetCell(0, 2, tview.NewTableCell("Labels").SetAlign(tview.AlignCenter).SetSelectable(false))
	t.jobsTable.SetCell(0, 3, tview.NewTableCell("Age").SetAlign(tview.AlignCenter).SetSelectable(false))

	jobs := t.server.Jobs().All()
	for i, job := range jobs {
		row := i + 1
		t.jobsTable.SetCell(row, 0, tview.NewTableCell(screens.StatusIcon(job.Status)+" "+string(job.Status)))
		t.jobsTable.SetCell(row, 1, tview.NewTableCell(job.Remote))
		t.jobsTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprintf("%d", len(job.Labels))))
		t.jobsTable.SetCell(row, 3, tview.NewTableCell(time.Since(job.CreatedAt).Truncate(time.Second).String()))
	}
}

func (t *TViewApp) refreshStatus() {
	st := t.server.Status()
	uptime := time.Since(t.startTime)

	state := "[red]🔴 Stopped[white]"
	if st.Running {
		state = "[green]🟢 Listening[white]"
	}

	canvas, _ := st.Format.Resolve()
	status := fmt.Sprintf(`%s

Address: %s
Label: %dx%d dots @ %d dpmm
Active jobs: %d
Render slots: %d/%d (%d waiting)
Completed: %d  Failed: %d
API: %s
Uptime: %dh %dm`,
		state, st.Address, canvas.Width, canvas.Height, st.Format.Density,
		st.ActiveJobs, st.SlotsInUse, st.SlotsTotal, st.SlotsWaiting,
		st.Jobs[printer.JobCompleted], st.Jobs[printer.JobFailed],
		t.apiAddr, int(uptime.Hours()), int(uptime.Minutes())%60)

	t.statusBox.SetText(status)
}

func (t *TViewApp) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	t.AddLog(fmt.Sprintf("> %s", cmd), "command")

	switch strings.ToLower(parts[0]) {
	case "labels", "l":
		t.showScreen("labels")
	case "jobs", "j":
		t.showScreen("jobs")
	case "settings", "s":
		if len(parts) == 1 {
			t.showScreen("settings")
			return
		}
		t.runConsole(cmd)
	case "preview":
		if len(parts) < 2 {
			t.AddLog("usage: preview <label-id>", "error")
			return
		}
		t.showLabel(parts[1])
	case "clear":
		t.logsMu.Lock()
		t.logs = make([]string, 0)
		t.logsMu.Unlock()
		t.logsArea.Clear()
	case "refresh":
		t.refreshAll()
	case "quit", "q":
		t.App.Stop()
	case "help", "h", "?":
		t.showHelp()
		t.runConsole("help")
	default:
		t.runConsole(cmd)
	}
}

// runConsole hands a command to the shared console
func (t *TViewApp) runConsole(cmd string) {
	result := t.executor.Execute(cmd)
	if !result.Success {
		t.AddLog(result.Error, "error")
		return
	}
	if result.Message != "" {
		t.AddLog(tview.Escape(result.Message), "info")
	}
	t.refreshAll()
}

func (t *TViewApp) showHelp() {
	help := []string{
		"Screens:",
		"  labels, l            - Label list with preview",
		"  jobs, j              - Job history",
		"  settings, s          - Settings form",
		"  preview <label-id>   - Preview one label",
		"  clear                - Clear logs",
		"  refresh              - Refresh all panels",
		"  quit, q              - Exit application",
		"",
		"Keyboard shortcuts:",
		"  :   - Command line",
		"  l   - Labels",
		"  j   - Jobs",
		"  s   - Settings",
		"  Esc - Back to main",
	}
	t.AddLog(strings.Join(help, "\n"), "info")
}

func (t *TViewApp) showLabel(id string) {
	t.showScreen("labels")
	if !t.labelsScreen.Show(id) {
		t.showMainScreen()
		t.AddLog(fmt.Sprintf("Label not found: %s", id), "error")
	}
}

func (t *TViewApp) showScreen(screenName string) {
	t.currentScreen = screenName

	switch screenName {
	case "labels":
		t.labelsScreen.Refresh()
		t.App.SetRoot(t.labelsScreen.GetRoot(), true)
		t.App.SetFocus(t.labelsScreen.GetRoot())
	case "jobs":
		t.jobsScreen.Refresh()
		t.App.SetRoot(t.jobsScreen.GetRoot(), true)
		t.App.SetFocus(t.jobsScreen.GetRoot())
	case "settings":
		t.settingsScreen.Load()
		t.App.SetRoot(t.settingsScreen.GetRoot(), true)
		t.App.SetFocus(t.settingsScreen.GetRoot())
	case "main":
		t.showMainScreen()
	}
}

func (t *TViewApp) showMainScreen() {
	t.currentScreen = "main"
	t.refreshAll()
	t.App.SetRoot(t.flex, true)
	t.App.SetFocus(t.labelsList)
}

// AddLog adds a log entry. Safe to call from any goroutine.
func (t *TViewApp) AddLog(message string, level string) {
	var color string
	var icon string

	switch level {
	case "error":
		color = "[red]"
		icon = "❌"
	case "warning":
		color = "[yellow]"
		icon = "⚠️"
	case "command":
		color = "[cyan]"
		icon = ">"
	default:
		color = "[white]"
		icon = "ℹ️"
	}

	timeStr := time.Now().Format("15:04:05")
	logEntry := fmt.Sprintf("%s[%s] %s %s[white]\n", color, timeStr, icon, message)

	t.logsMu.Lock()
	defer t.logsMu.Unlock()

	t.logs = append(t.logs, logEntry)
	if len(t.logs) > t.maxLogs {
		t.logs = t.logs[len(t.logs)-t.maxLogs:]
	}

	t.logsArea.Clear()
	fmt.Fprint(t.logsArea, strings.Join(t.logs, ""))
	t.logsArea.ScrollToEnd()
}

func short(v interface{}) string {
	s := fmt.Sprint(v)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func countOf(v interface{}) int {
	if ids, ok := v.([]string); ok {
		return len(ids)
	}
	return 0
}

// LogWriter creates an io.Writer that writes to the logs panel
func (t *TViewApp) LogWriter() io.Writer {
	return &tviewLogWriter{app: t}
}

type tviewLogWriter struct {
	app *TViewApp
}

func (w *tviewLogWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		if line == "" {
			continue
		}
		level := "info"
		switch {
		case strings.Contains(line, "ERROR"):
			level = "error"
		case strings.Contains(line, "WARN"):
			level = "warning"
		}
		w.app.AddLog(tview.Escape(line), level)
	}
	return len(p), nil
}
