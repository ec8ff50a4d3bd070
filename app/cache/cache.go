// Package cache keeps parsed CV/JD payloads keyed by the uploaded file identity (name, size and
// modification time) so the same document is not sent to the backend twice.
// The whole cache is a single JSON document stored under one fixed location. Storage failures never
// propagate to callers, a broken store just behaves like an empty cache.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
)

// Kind partitions the cache by document type
type Kind string

// supported kinds
const (
	KindJD Kind = "jd"
	KindCV Kind = "cv"
)

// FileMeta is the identity of an uploaded file. LastModified is unix milliseconds.
type FileMeta struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
}

// Key returns cache key in name|size|lastModified form
func (m FileMeta) Key() string {
	return m.Name + "|" + strconv.FormatInt(m.Size, 10) + "|" + strconv.FormatInt(m.LastModified, 10)
}

// MetaOf makes FileMeta from os.FileInfo
func MetaOf(fi os.FileInfo) FileMeta {
	return FileMeta{Name: fi.Name(), Size: fi.Size(), LastModified: fi.ModTime().UnixMilli()}
}

// EntryMeta is FileMeta plus the time entry was stored
type EntryMeta struct {
	FileMeta
	StoredAt time.Time `json:"storedAt"`
}

// Entry is a single cached payload
type Entry struct {
	Payload json.RawMessage `json:"payload"`
	Meta    EntryMeta       `json:"meta"`
}

// Stats reports number of entries per kind
type Stats struct {
	JD       int       `json:"jd"`
	CV       int       `json:"cv"`
	Location string    `json:"location"`
	Oldest   time.Time `json:"oldest,omitzero"`
}

// Storage is a blob store holding the serialized cache
type Storage interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Remove() error
	String() string
}

type document map[Kind]map[string]Entry

// ParseCache is a thread-safe cache of parse results. Nil *ParseCache is valid and always misses.
type ParseCache struct {
	store Storage
	lock  sync.Mutex
}

// New makes ParseCache on top of the given storage
func New(store Storage) *ParseCache {
	return &ParseCache{store: store}
}

// NewFile makes ParseCache stored in the file at path
func NewFile(path string) *ParseCache {
	return New(&FileStorage{Path: path})
}

// Get returns cached payload for the kind and file identity
func (c *ParseCache) Get(kind Kind, meta FileMeta) (json.RawMessage, bool) {
	if c == nil {
		return nil, false
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	doc := c.load()
	entry, ok := doc[kind][meta.Key()]
	if !ok || len(entry.Payload) == 0 {
		return nil, false
	}
	log.Printf("[DEBUG] cache hit %s %s", kind, meta.Key())
	return entry.Payload, true
}

// Set stores payload for the kind and file identity, replacing any previous entry
func (c *ParseCache) Set(kind Kind, meta FileMeta, payload json.RawMessage) {
	if c == nil || len(payload) == 0 {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	doc := c.load()
	if doc[kind] == nil {
		doc[kind] = map[string]Entry{}
	}
	doc[kind][meta.Key()] = Entry{Payload: payload, Meta: EntryMeta{FileMeta: meta, StoredAt: time.Now().UTC()}}
	c.save(doc)
}

// Clear drops all entries
func (c *ParseCache) Clear() {
	if c == nil {
		return
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.store.Remove(); err != nil {
		log.Printf("[DEBUG] can't clear parse cache %s, %v", c.store, err)
	}
}

// Stats returns entry counts
func (c *ParseCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.lock.Lock()
	defer c.lock.Unlock()

	doc := c.load()
	res := Stats{JD: len(doc[KindJD]), CV: len(doc[KindCV]), Location: c.store.String()}
	for _, part := range doc {
		for _, e := range part {
			if res.Oldest.IsZero() || e.Meta.StoredAt.Before(res.Oldest) {
				res.Oldest = e.Meta.StoredAt
			}
		}
	}
	return res
}

func (c *ParseCache) load() document {
	doc := document{}
	data, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("[DEBUG] can't read parse cache %s, %v", c.store, err)
		}
		return doc
	}
	if len(data) == 0 {
		return doc
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("[DEBUG] can't decode parse cache %s, %v", c.store, err)
		return document{}
	}
	return doc
}

func (c *ParseCache) save(doc document) {
	data, err := json.Marshal(doc)
	if err != nil {
		log.Printf("[DEBUG] can't encode parse cache, %v", err)
		return
	}
	if err := c.store.Save(data); err != nil {
		log.Printf("[DEBUG] can't write parse cache %s, %v", c.store, err)
	}
}

// FileStorage keeps the cache document in a single file, written atomically
type FileStorage struct {
	Path string
}

// Load reads the file
func (f *FileStorage) Load() ([]byte, error) {
	return os.ReadFile(f.Path)
}

// Save writes data to temp file in the same directory and renames it over the target
func (f *FileStorage) Save(data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("can't make cache dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".parse-cache-*")
	if err != nil {
		return fmt.Errorf("can't create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("can't write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("can't close %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), f.Path)
}

// Remove deletes the file, missing file is not an error
func (f *FileStorage) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileStorage) String() string {
	return f.Path
}
