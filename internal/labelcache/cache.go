// Package labelcache persists rendered labels as PNG files with an index of
// their metadata
package labelcache

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/thereceipt/zpl-printer/pkg/labelformat"
)

// ErrNotFound is returned for identifiers the index does not know
var ErrNotFound = errors.New("label not found")

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Entry is one stored label
type Entry struct {
	Seq  int64  `json:"seq"`
	File string `json:"file"`
	labelformat.Metadata
}

// Cache stores label images in a folder. Identifiers are append-only: a
// sequence number that is never reused plus a random suffix.
type Cache struct {
	folder string
	index  Index
	log    *zap.Logger
	mu     sync.Mutex
}

// DefaultFolder is used when no image path is configured
func DefaultFolder() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "zpl-printer", "labels")
}

// Open creates the folder if needed and opens its index
func Open(folder string, kind IndexKind, log *zap.Logger) (*Cache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if folder == "" {
		folder = DefaultFolder()
	}
	if err := os.MkdirAll(folder, 0755); err != nil {
		return nil, fmt.Errorf("failed to create label folder: %w", err)
	}

	index, err := openIndex(folder, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s index: %w", kind, err)
	}

	log.Info("label cache opened", zap.String("folder", folder), zap.String("index", string(kind)))
	return &Cache{folder: folder, index: index, log: log}, nil
}

// Folder returns the directory images are written to
func (c *Cache) Folder() string {
	return c.folder
}

// Store writes img as PNG and records meta. The returned identifier is also
// set as meta.LabelID.
func (c *Cache) Store(img image.Image, meta labelformat.Metadata) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seq, err := c.index.Next()
	if err != nil {
		return "", fmt.Errorf("failed to allocate label id: %w", err)
	}
	suffix, err := gonanoid.Generate(idAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("failed to generate label id: %w", err)
	}

	id := fmt.Sprintf("%06d-%s", seq, suffix)
	file := id + ".png"
	meta.LabelID = id

	if err := c.writePNG(file, img); err != nil {
		return "", err
	}

	if err := c.index.Put(Entry{Seq: seq, File: file, Metadata: meta}); err != nil {
		os.Remove(filepath.Join(c.folder, file))
		return "", fmt.Errorf("failed to index label: %w", err)
	}

	c.log.Debug("label stored", zap.String("label_id", id), zap.String("job_id", meta.JobID))
	return id, nil
}

// writePNG goes through a temporary file so readers never see a partial image
func (c *Cache) writePNG(file string, img image.Image) error {
	tmp, err := os.CreateTemp(c.folder, ".label-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := imaging.Encode(tmp, img, imaging.PNG); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode label image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write label image: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(c.folder, file))
}

// List returns every stored label, newest first
func (c *Cache) List() ([]Entry, error) {
	return c.index.List()
}

// Get returns the entry for id
func (c *Cache) Get(id string) (Entry, error) {
	if !validID(id) {
		return Entry{}, ErrNotFound
	}
	return c.index.Get(id)
}

// Path returns the image file of id
func (c *Cache) Path(id string) (string, error) {
	e, err := c.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(c.folder, e.File), nil
}

// Image reads the PNG bytes of id
func (c *Cache) Image(id string) ([]byte, error) {
	path, err := c.Path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

// Delete removes one label and its image
func (c *Cache) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, err := c.Get(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(c.folder, e.File)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove label image: %w", err)
	}
	return c.index.Delete(id)
}

// Clear removes every label. Sequence numbers keep counting.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.index.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(c.folder, e.File)); err != nil && !os.IsNotExist(err) {
			c.log.Warn("failed to remove label image", zap.String("file", e.File), zap.Error(err))
		}
	}
	return c.index.Clear()
}

// Sync drops index entries whose image was removed from the folder by hand.
// It returns the number of entries dropped.
func (c *Cache) Sync() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.index.List()
	if err != nil {
		return 0, err
	}
	dropped := 0
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(c.folder, e.File)); !os.IsNotExist(err) {
			continue
		}
		if err := c.index.Delete(e.LabelID); err != nil {
			return dropped, err
		}
		dropped++
	}
	if dropped > 0 {
		c.log.Info("label index synced", zap.Int("dropped", dropped))
	}
	return dropped, nil
}

// Close releases the index
func (c *Cache) Close() error {
	return c.index.Close()
}

// validID keeps identifiers from escaping the folder
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\.`)
}
