package labelcache

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

func testImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	img.Pix[0] = 0
	return img
}

func testMeta(job string) labelformat.Metadata {
	return labelformat.Metadata{
		JobID:      job,
		Width:      8,
		Height:     4,
		Density:    labelformat.Density8,
		RenderedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func openCache(t *testing.T, dir string, kind IndexKind) *Cache {
	t.Helper()
	c, err := Open(dir, kind, nil)
	if err != nil {
		if kind == IndexSQLite {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Fatalf("Failed to open cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func testStoreAndRead(t *testing.T, kind IndexKind) {
	c := openCache(t, t.TempDir(), kind)

	first, err := c.Store(testImage(), testMeta("job-1"))
	if err != nil {
		t.Fatalf("Failed to store label: %v", err)
	}
	second, err := c.Store(testImage(), testMeta("job-2"))
	if err != nil {
		t.Fatalf("Failed to store label: %v", err)
	}

	if !strings.HasPrefix(first, "000001-") || !strings.HasPrefix(second, "000002-") {
		t.Errorf("Expected sequential ids, got %s and %s", first, second)
	}

	entries, err := c.List()
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(entries) != 2 || entries[0].LabelID != second {
		t.Fatalf("Expected newest first, got %+v", entries)
	}
	if entries[1].JobID != "job-1" || entries[1].Density != labelformat.Density8 {
		t.Errorf("Metadata not preserved: %+v", entries[1].Metadata)
	}

	data, err := c.Image(first)
	if err != nil {
		t.Fatalf("Failed to read image: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Stored file is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Errorf("Unexpected image size %v", img.Bounds())
	}

	if err := c.Delete(first); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := c.Get(first); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	third, _ := c.Store(testImage(), testMeta("job-3"))
	if !strings.HasPrefix(third, "000003-") {
		t.Errorf("Sequence must not be reused, got %s", third)
	}
}

func TestCache_JSON(t *testing.T) {
	testStoreAndRead(t, IndexJSON)
}

func TestCache_SQLite(t *testing.T) {
	testStoreAndRead(t, IndexSQLite)
}

func TestCache_SequenceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, IndexJSON, nil)
	if err != nil {
		t.Fatalf("Failed to open cache: %v", err)
	}
	c.Store(testImage(), testMeta("a"))
	c.Store(testImage(), testMeta("b"))
	if err := c.Clear(); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	c.Close()

	c = openCache(t, dir, IndexJSON)
	entries, _ := c.List()
	if len(entries) != 0 {
		t.Errorf("Expected empty cache after clear, got %d", len(entries))
	}
	id, _ := c.Store(testImage(), testMeta("c"))
	if !strings.HasPrefix(id, "000003-") {
		t.Errorf("Expected sequence to continue at 3, got %s", id)
	}
}

func TestCache_Sync(t *testing.T) {
	c := openCache(t, t.TempDir(), IndexJSON)
	id, _ := c.Store(testImage(), testMeta("a"))
	c.Store(testImage(), testMeta("b"))

	path, err := c.Path(id)
	if err != nil {
		t.Fatalf("Failed to get path: %v", err)
	}
	os.Remove(path)

	dropped, err := c.Sync()
	if err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}
	if dropped != 1 {
		t.Errorf("Expected 1 dropped entry, got %d", dropped)
	}
	if entries, _ := c.List(); len(entries) != 1 {
		t.Errorf("Expected 1 remaining entry, got %d", len(entries))
	}
}

func TestCache_RejectsPathIDs(t *testing.T) {
	c := openCache(t, t.TempDir(), IndexJSON)
	for _, id := range []string{"", "../index", "a/b", `a\b`} {
		if _, err := c.Path(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound for %q, got %v", id, err)
		}
	}
}

func TestOpen_UnknownIndex(t *testing.T) {
	if _, err := Open(t.TempDir(), IndexKind("xml"), nil); err == nil {
		t.Error("Expected error for unknown index kind")
	}
}
