package labelcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// IndexKind selects the metadata index backend
type IndexKind string

const (
	IndexJSON   IndexKind = "json"
	IndexSQLite IndexKind = "sqlite"
)

// Index keeps label metadata and the identifier sequence
type Index interface {
	// Next reserves the next sequence number
	Next() (int64, error)
	Put(e Entry) error
	// List returns entries newest first
	List() ([]Entry, error)
	Get(id string) (Entry, error)
	Delete(id string) error
	Clear() error
	Close() error
}

func openIndex(folder string, kind IndexKind) (Index, error) {
	switch kind {
	case "", IndexJSON:
		return newJSONIndex(filepath.Join(folder, "index.json"))
	case IndexSQLite:
		return newSQLiteIndex(filepath.Join(folder, "index.db"))
	default:
		return nil, fmt.Errorf("unknown index kind %q", kind)
	}
}

type jsonFile struct {
	Seq     int64            `json:"seq"`
	Entries map[string]Entry `json:"entries"`
}

// jsonIndex is a whole-file JSON document rewritten on every change
type jsonIndex struct {
	filePath string
	data     jsonFile
	mu       sync.RWMutex
}

func newJSONIndex(filePath string) (*jsonIndex, error) {
	x := &jsonIndex{
		filePath: filePath,
		data:     jsonFile{Entries: make(map[string]Entry)},
	}

	if err := x.load(); err != nil {
		// a missing file is created on first save
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load index: %w", err)
		}
	}
	return x, nil
}

func (x *jsonIndex) Next() (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.data.Seq++
	if err := x.save(); err != nil {
		x.data.Seq--
		return 0, err
	}
	return x.data.Seq, nil
}

func (x *jsonIndex) Put(e Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.data.Entries[e.LabelID] = e
	return x.save()
}

func (x *jsonIndex) List() ([]Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make([]Entry, 0, len(x.data.Entries))
	for _, e := range x.data.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (x *jsonIndex) Get(id string) (Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	e, ok := x.data.Entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (x *jsonIndex) Delete(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.data.Entries[id]; !ok {
		return ErrNotFound
	}
	delete(x.data.Entries, id)
	return x.save()
}

func (x *jsonIndex) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.data.Entries = make(map[string]Entry)
	return x.save()
}

func (x *jsonIndex) Close() error {
	return nil
}

func (x *jsonIndex) load() error {
	data, err := os.ReadFile(x.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &x.data); err != nil {
		return err
	}
	if x.data.Entries == nil {
		x.data.Entries = make(map[string]Entry)
	}
	return nil
}

func (x *jsonIndex) save() error {
	data, err := json.MarshalIndent(x.data, "", "  ")
	if err != nil {
		return err
	}

	tmp := x.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, x.filePath)
}
