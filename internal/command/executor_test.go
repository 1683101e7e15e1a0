package command

import (
	"image"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/printer"
	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

type fixture struct {
	exec   *Executor
	server *printer.Server
	cache  *labelcache.Cache
	store  *config.Store
	hub    *notify.Hub
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := config.Open(filepath.Join(dir, config.FileName))
	if err != nil {
		t.Fatalf("Failed to open config: %v", err)
	}
	_, err = store.Update(func(c *config.Config) error {
		c.Printer.IPAddress = "127.0.0.1"
		c.Printer.Port = 0
		c.Cache.ImagePath = filepath.Join(dir, "labels")
		c.Limits.IdleTimeout = config.Duration(100 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to update config: %v", err)
	}

	cache, err := labelcache.Open(store.Get().Cache.ImagePath, labelcache.IndexJSON, nil)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	settings, err := store.Get().PrinterSettings()
	if err != nil {
		t.Fatalf("Invalid settings: %v", err)
	}
	hub := notify.NewHub(nil)
	server, err := printer.NewServer(settings, cache, hub, nil)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	return &fixture{
		exec:   NewExecutor(server, cache, store, hub),
		server: server,
		cache:  cache,
		store:  store,
		hub:    hub,
		dir:    dir,
	}
}

func (f *fixture) storeLabel(t *testing.T) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	id, err := f.cache.Store(img, labelformat.Metadata{JobID: "job", Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("Failed to store label: %v", err)
	}
	return id
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"  status  ", []string{"status"}},
		{"settings set unit mm", []string{"settings", "set", "unit", "mm"}},
		{`render "my label.zpl"`, []string{"render", "my label.zpl"}},
		{`render 'it"s.zpl'`, []string{"render", `it"s.zpl`}},
		{"job\tlist", []string{"job", "list"}},
	}

	for _, tt := range tests {
		if got := parseCommand(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExecute_UnknownAndEmpty(t *testing.T) {
	f := newFixture(t)

	if r := f.exec.Execute(""); r.Success || r.Error != "empty command" {
		t.Errorf("Unexpected result for empty command: %+v", r)
	}
	if r := f.exec.Execute("frobnicate"); r.Success || !strings.Contains(r.Error, "unknown command") {
		t.Errorf("Unexpected result for unknown command: %+v", r)
	}
	if r := f.exec.Execute("help"); !r.Success || !strings.Contains(r.Message, "printer start") {
		t.Errorf("Help should list commands: %+v", r)
	}
}

func TestExecute_PrinterLifecycle(t *testing.T) {
	f := newFixture(t)

	r := f.exec.Execute("status")
	if !r.Success || r.Data["running"] != false {
		t.Fatalf("Expected stopped printer: %+v", r)
	}

	if r := f.exec.Execute("printer start"); !r.Success {
		t.Fatalf("Start failed: %s", r.Error)
	}
	if !f.server.Running() {
		t.Fatal("Server should be running")
	}
	if r := f.exec.Execute("printer start"); r.Success {
		t.Error("Starting twice should fail")
	}

	if r := f.exec.Execute("printer stop"); !r.Success {
		t.Fatalf("Stop failed: %s", r.Error)
	}
	if f.server.Running() {
		t.Error("Server should be stopped")
	}
}

func TestExecute_Jobs(t *testing.T) {
	f := newFixture(t)

	r := f.exec.Execute("job list")
	if !r.Success || len(r.Data["jobs"].([]map[string]interface{})) != 0 {
		t.Errorf("Expected no jobs: %+v", r)
	}
	if r := f.exec.Execute("job status nope"); r.Success {
		t.Error("Expected missing job error")
	}
	if r := f.exec.Execute("job clear"); !r.Success {
		t.Errorf("Clear failed: %s", r.Error)
	}
	if r := f.exec.Execute("job"); r.Success {
		t.Error("Expected usage error")
	}
}

func TestExecute_Labels(t *testing.T) {
	f := newFixture(t)
	events, cancel := f.hub.Subscribe(4)
	defer cancel()

	id := f.storeLabel(t)
	f.storeLabel(t)

	r := f.exec.Execute("label list")
	if !r.Success || len(r.Data["labels"].([]map[string]interface{})) != 2 {
		t.Fatalf("Expected 2 labels: %+v", r)
	}

	r = f.exec.Execute("label show " + id)
	if !r.Success || !strings.HasSuffix(r.Message, id+".png") {
		t.Errorf("Unexpected show result: %+v", r)
	}

	if r := f.exec.Execute("label delete " + id); !r.Success {
		t.Fatalf("Delete failed: %s", r.Error)
	}
	select {
	case e := <-events:
		if e.Type != notify.EventLabelDeleted || e.Data["label_id"] != id {
			t.Errorf("Unexpected event %+v", e)
		}
	case <-time.After(time.Second):
		t.Error("Expected label_deleted event")
	}

	if r := f.exec.Execute("label show " + id); r.Success {
		t.Error("Deleted label should be gone")
	}
	if r := f.exec.Execute("label clear"); !r.Success {
		t.Fatalf("Clear failed: %s", r.Error)
	}
	entries, _ := f.cache.List()
	if len(entries) != 0 {
		t.Errorf("Expected empty cache, got %d", len(entries))
	}
}

func TestExecute_SettingsApplyToServer(t *testing.T) {
	f := newFixture(t)

	if r := f.exec.Execute("settings set dpmm 12"); !r.Success {
		t.Fatalf("Set failed: %s", r.Error)
	}
	if f.server.Settings().Format.Density != labelformat.Density12 {
		t.Errorf("Server density not updated: %d", f.server.Settings().Format.Density)
	}
	if f.store.Get().Label.Dpmm != 12 {
		t.Error("Config not updated")
	}
	if _, err := os.Stat(f.store.Path()); err != nil {
		t.Errorf("Config not saved: %v", err)
	}

	if r := f.exec.Execute("settings set dpmm 7"); r.Success {
		t.Error("Unsupported density should be rejected")
	}
	if f.store.Get().Label.Dpmm != 12 {
		t.Error("Rejected setting must not persist")
	}

	if r := f.exec.Execute("settings set idle_timeout soon"); r.Success {
		t.Error("Invalid duration should be rejected")
	}
	if r := f.exec.Execute("settings set colour blue"); r.Success {
		t.Error("Unknown key should be rejected")
	}

	r := f.exec.Execute("settings")
	if !r.Success || !strings.Contains(r.Message, "12 dpmm") {
		t.Errorf("Unexpected settings output: %+v", r)
	}
}

func TestExecute_PortChangeRebinds(t *testing.T) {
	f := newFixture(t)
	if r := f.exec.Execute("printer start"); !r.Success {
		t.Fatalf("Start failed: %s", r.Error)
	}
	defer f.exec.Execute("printer stop")

	if r := f.exec.Execute("printer port 0"); !r.Success {
		t.Fatalf("Port change failed: %s", r.Error)
	}
	if !f.server.Running() {
		t.Error("Server should still be running")
	}
	if r := f.exec.Execute("printer port abc"); r.Success {
		t.Error("Expected invalid port error")
	}
}

func TestExecute_Render(t *testing.T) {
	f := newFixture(t)

	path := filepath.Join(f.dir, "label.zpl")
	os.WriteFile(path, []byte("^XA^FO20,20^GB100,50,3^FS^XZ"), 0644)

	r := f.exec.Execute("render " + path)
	if !r.Success {
		t.Fatalf("Render failed: %s", r.Error)
	}
	if sizes := r.Data["labels"].([]string); len(sizes) != 1 || sizes[0] != "812x406" {
		t.Errorf("Unexpected sizes %v", sizes)
	}
	if entries, _ := f.cache.List(); len(entries) != 0 {
		t.Error("render must not store labels")
	}

	if r := f.exec.Execute("render " + filepath.Join(f.dir, "missing.zpl")); r.Success {
		t.Error("Expected error for missing file")
	}
}
