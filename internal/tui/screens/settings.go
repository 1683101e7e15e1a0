package screens

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rivo/tview"
	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

var (
	unitOptions    = []string{string(labelformat.UnitInch), string(labelformat.UnitMillimeter), string(labelformat.UnitCentimeter)}
	densityOptions = []string{"6", "8", "12", "24"}
)

// ApplyFunc persists and applies a settings change
type ApplyFunc func(fn func(c *config.Config) error) (config.Config, error)

// SettingsForm edits the printer settings
type SettingsForm struct {
	app    *tview.Application
	store  *config.Store
	apply  ApplyFunc
	form   *tview.Form
	status *tview.TextView
	layout *tview.Flex

	host        *tview.InputField
	port        *tview.InputField
	autoStart   *tview.Checkbox
	unit        *tview.DropDown
	width       *tview.InputField
	height      *tview.InputField
	density     *tview.DropDown
	idleTimeout *tview.InputField
	slots       *tview.InputField
}

// NewSettingsForm creates the settings screen
func NewSettingsForm(app *tview.Application, store *config.Store, apply ApplyFunc) *SettingsForm {
	s := &SettingsForm{
		app:   app,
		store: store,
		apply: apply,
	}

	s.setupUI()
	return s
}

func (s *SettingsForm) setupUI() {
	s.host = tview.NewInputField().SetLabel("IP address: ").SetFieldWidth(20)
	s.port = tview.NewInputField().SetLabel("Port: ").SetFieldWidth(8).SetAcceptanceFunc(tview.InputFieldInteger)
	s.autoStart = tview.NewCheckbox().SetLabel("Start automatically: ")
	s.unit = tview.NewDropDown().SetLabel("Unit: ").SetOptions(unitOptions, nil)
	s.width = tview.NewInputField().SetLabel("Width: ").SetFieldWidth(10).SetAcceptanceFunc(tview.InputFieldFloat)
	s.height = tview.NewInputField().SetLabel("Height: ").SetFieldWidth(10).SetAcceptanceFunc(tview.InputFieldFloat)
	s.density = tview.NewDropDown().SetLabel("Resolution (dpmm): ").SetOptions(densityOptions, nil)
	s.idleTimeout = tview.NewInputField().SetLabel("Idle timeout: ").SetFieldWidth(10)
	s.slots = tview.NewInputField().SetLabel("Render slots: ").SetFieldWidth(6).SetAcceptanceFunc(tview.InputFieldInteger)

	s.status = tview.NewTextView()
	s.status.SetBorder(true)
	s.status.SetTitle("Result")
	s.status.SetDynamicColors(true)

	s.form = tview.NewForm()
	s.form.SetBorder(true)
	s.form.SetTitle("Printer Settings")
	s.form.AddFormItem(s.host)
	s.form.AddFormItem(s.port)
	s.form.AddFormItem(s.autoStart)
	s.form.AddFormItem(s.unit)
	s.form.AddFormItem(s.width)
	s.form.AddFormItem(s.height)
	s.form.AddFormItem(s.density)
	s.form.AddFormItem(s.idleTimeout)
	s.form.AddFormItem(s.slots)
	s.form.AddButton("Save", func() {
		s.save()
	})
	s.form.AddButton("Reset", func() {
		s.Load()
	})

	s.layout = tview.NewFlex().
		AddItem(s.form, 0, 1, true).
		AddItem(s.status, 0, 1, false)

	s.Load()
}

// Load fills the form from the stored settings
func (s *SettingsForm) Load() {
	c := s.store.Get()

	s.host.SetText(c.Printer.IPAddress)
	s.port.SetText(strconv.Itoa(c.Printer.Port))
	s.autoStart.SetChecked(c.Printer.AutoStart)
	s.unit.SetCurrentOption(indexOf(unitOptions, c.Label.Unit))
	s.width.SetText(strconv.FormatFloat(c.Label.Width, 'f', -1, 64))
	s.height.SetText(strconv.FormatFloat(c.Label.Height, 'f', -1, 64))
	s.density.SetCurrentOption(indexOf(densityOptions, strconv.Itoa(c.Label.Dpmm)))
	s.idleTimeout.SetText(c.Limits.IdleTimeout.String())
	s.slots.SetText(strconv.Itoa(c.Limits.RenderSlots))

	s.status.SetText(fmt.Sprintf("[yellow]File:[white] %s", s.store.Path()))
}

func (s *SettingsForm) save() {
	c, err := s.apply(func(c *config.Config) error {
		var err error
		c.Printer.IPAddress = strings.TrimSpace(s.host.GetText())
		if c.Printer.Port, err = strconv.Atoi(s.port.GetText()); err != nil {
			return fmt.Errorf("invalid port")
		}
		c.Printer.AutoStart = s.autoStart.IsChecked()
		_, c.Label.Unit = s.unit.GetCurrentOption()
		if c.Label.Width, err = strconv.ParseFloat(s.width.GetText(), 64); err != nil {
			return fmt.Errorf("invalid width")
		}
		if c.Label.Height, err = strconv.ParseFloat(s.height.GetText(), 64); err != nil {
			return fmt.Errorf("invalid height")
		}
		_, dpmm := s.density.GetCurrentOption()
		c.Label.Dpmm, _ = strconv.Atoi(dpmm)
		idle, err := time.ParseDuration(strings.TrimSpace(s.idleTimeout.GetText()))
		if err != nil {
			return fmt.Errorf("invalid idle timeout")
		}
		c.Limits.IdleTimeout = config.Duration(idle)
		if c.Limits.RenderSlots, err = strconv.Atoi(s.slots.GetText()); err != nil {
			return fmt.Errorf("invalid render slots")
		}
		return nil
	})
	if err != nil {
		s.status.SetText(fmt.Sprintf("[red]Not saved: %s[white]", tview.Escape(err.Error())))
		return
	}

	format, _ := c.Format()
	canvas, _ := format.Resolve()
	s.status.SetText(fmt.Sprintf("[green]✓ Settings saved[white]\n\n[yellow]Listening on:[white] %s:%d\n[yellow]Canvas:[white] %dx%d dots",
		c.Printer.IPAddress, c.Printer.Port, canvas.Width, canvas.Height))
}

func indexOf(options []string, value string) int {
	for i, o := range options {
		if o == value {
			return i
		}
	}
	return 0
}

// GetRoot returns the root primitive for this screen
func (s *SettingsForm) GetRoot() tview.Primitive {
	return s.layout
}
