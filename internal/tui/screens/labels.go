package screens

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
)

// LabelsView lists rendered labels next to a preview of the selected one
type LabelsView struct {
	app     *tview.Application
	cache   *labelcache.Cache
	list    *tview.List
	preview *tview.TextView
	layout  *tview.Flex
	entries []labelcache.Entry

	// OnDelete is called after a label was removed from the cache
	OnDelete func(id string)
}

// NewLabelsView creates a new labels screen
func NewLabelsView(app *tview.Application, cache *labelcache.Cache) *LabelsView {
	l := &LabelsView{
		app:   app,
		cache: cache,
	}

	l.setupUI()
	return l
}

func (l *LabelsView) setupUI() {
	l.list = tview.NewList()
	l.list.SetBorder(true)
	l.list.SetTitle("Labels")
	l.list.SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		l.selectLabel(index)
	})
	l.list.SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
		l.selectLabel(index)
	})

	l.preview = tview.NewTextView()
	l.preview.SetBorder(true)
	l.preview.SetTitle("Preview")
	l.preview.SetDynamicColors(true)

	l.layout = tview.NewFlex().
		AddItem(l.list, 0, 1, true).
		AddItem(l.preview, 0, 3, false)

	l.list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEsc:
			return event // Let parent handle
		case tcell.KeyDelete:
			l.deleteSelected()
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'r':
				l.Refresh()
				return nil
			case 'd':
				l.deleteSelected()
				return nil
			}
		}
		return event
	})

	l.Refresh()
}

// Refresh reloads the label list, keeping the selection when possible
func (l *LabelsView) Refresh() {
	current := l.list.GetCurrentItem()
	l.list.Clear()

	entries, err := l.cache.List()
	if err != nil {
		l.list.AddItem("Error loading labels", err.Error(), 0, nil)
		return
	}
	l.entries = entries

	if len(entries) == 0 {
		l.list.AddItem("No labels yet", "send a job to the printer port", 0, nil)
		l.preview.SetText("")
		return
	}

	for _, e := range entries {
		secondary := fmt.Sprintf("%dx%d • %s", e.Width, e.Height, e.RenderedAt.Format("15:04:05"))
		if e.Degraded {
			secondary += " • degraded"
		}
		l.list.AddItem(e.LabelID, secondary, 0, nil)
	}

	if current >= len(entries) {
		current = len(entries) - 1
	}
	l.list.SetCurrentItem(current)
	l.selectLabel(current)
}

// Show selects a label by id
func (l *LabelsView) Show(id string) bool {
	for i, e := range l.entries {
		if e.LabelID == id {
			l.list.SetCurrentItem(i)
			l.selectLabel(i)
			return true
		}
	}
	return false
}

func (l *LabelsView) selectLabel(index int) {
	if index < 0 || index >= len(l.entries) {
		return
	}
	e := l.entries[index]

	data, err := l.cache.Image(e.LabelID)
	if err != nil {
		l.preview.SetText(fmt.Sprintf("[red]%s[white]", tview.Escape(err.Error())))
		return
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		l.preview.SetText(fmt.Sprintf("[red]%s[white]", tview.Escape(err.Error())))
		return
	}

	_, _, width, height := l.preview.GetInnerRect()
	if width <= 0 || height <= 2 {
		width, height = 80, 24
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("[yellow]%s[white]  job %s  %d dpmm\n", e.LabelID, e.JobID, e.Density))
	text.WriteString(HalfBlocks(img, width, height-1))
	l.preview.SetText(text.String())
	l.preview.ScrollToBeginning()
}

func (l *LabelsView) deleteSelected() {
	index := l.list.GetCurrentItem()
	if index < 0 || index >= len(l.entries) {
		return
	}
	id := l.entries[index].LabelID
	if err := l.cache.Delete(id); err != nil {
		l.preview.SetText(fmt.Sprintf("[red]%s[white]", tview.Escape(err.Error())))
		return
	}
	if l.OnDelete != nil {
		l.OnDelete(id)
	}
	l.Refresh()
}

// GetRoot returns the root primitive for this screen
func (l *LabelsView) GetRoot() tview.Primitive {
	return l.layout
}
