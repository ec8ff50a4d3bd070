package cache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMeta_Key(t *testing.T) {
	m := FileMeta{Name: "cv.pdf", Size: 1234, LastModified: 1700000000123}
	assert.Equal(t, "cv.pdf|1234|1700000000123", m.Key())
}

func TestMetaOf(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "jd.txt")
	require.NoError(t, os.WriteFile(fname, []byte("some jd"), 0o600))
	mt := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	require.NoError(t, os.Chtimes(fname, mt, mt))

	fi, err := os.Stat(fname)
	require.NoError(t, err)
	meta := MetaOf(fi)
	assert.Equal(t, FileMeta{Name: "jd.txt", Size: 7, LastModified: mt.UnixMilli()}, meta)
}

func TestParseCache_SetGet(t *testing.T) {
	c := NewFile(filepath.Join(t.TempDir(), "parse-cache.json"))
	meta := FileMeta{Name: "cv.pdf", Size: 100, LastModified: 42}
	payload := json.RawMessage(`{"name":"John"}`)

	_, ok := c.Get(KindCV, meta)
	assert.False(t, ok, "empty cache misses")

	c.Set(KindCV, meta, payload)
	res, ok := c.Get(KindCV, meta)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"John"}`, string(res))

	tbl := []struct {
		name string
		kind Kind
		meta FileMeta
	}{
		{"other size", KindCV, FileMeta{Name: "cv.pdf", Size: 101, LastModified: 42}},
		{"other mtime", KindCV, FileMeta{Name: "cv.pdf", Size: 100, LastModified: 43}},
		{"other name", KindCV, FileMeta{Name: "cv2.pdf", Size: 100, LastModified: 42}},
		{"other kind", KindJD, meta},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := c.Get(tt.kind, tt.meta)
			assert.False(t, ok)
		})
	}
}

func TestParseCache_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "parse-cache.json")
	meta := FileMeta{Name: "jd.docx", Size: 10, LastModified: 1}

	NewFile(path).Set(KindJD, meta, json.RawMessage(`{"title":"Go dev"}`))

	res, ok := NewFile(path).Get(KindJD, meta)
	require.True(t, ok)
	assert.JSONEq(t, `{"title":"Go dev"}`, string(res))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]Entry
	require.NoError(t, json.Unmarshal(data, &doc))
	entry := doc["jd"]["jd.docx|10|1"]
	assert.Equal(t, "jd.docx", entry.Meta.Name)
	assert.False(t, entry.Meta.StoredAt.IsZero())
}

func TestParseCache_Clear(t *testing.T) {
	c := NewFile(filepath.Join(t.TempDir(), "parse-cache.json"))
	meta := FileMeta{Name: "a.txt", Size: 1, LastModified: 1}
	c.Set(KindCV, meta, json.RawMessage(`1`))
	c.Set(KindJD, meta, json.RawMessage(`2`))
	st := c.Stats()
	assert.Equal(t, 1, st.CV)
	assert.Equal(t, 1, st.JD)
	assert.False(t, st.Oldest.IsZero())

	c.Clear()
	_, ok := c.Get(KindCV, meta)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().CV)

	c.Clear() // clearing empty cache is fine
}

func TestParseCache_Unavailable(t *testing.T) {
	c := New(brokenStorage{})
	meta := FileMeta{Name: "a.txt", Size: 1, LastModified: 1}
	assert.NotPanics(t, func() {
		c.Set(KindCV, meta, json.RawMessage(`{}`))
		c.Clear()
	})
	_, ok := c.Get(KindCV, meta)
	assert.False(t, ok)
	assert.Equal(t, Stats{Location: "broken"}, c.Stats())
}

func TestParseCache_CorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parse-cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	c := NewFile(path)
	meta := FileMeta{Name: "a.txt", Size: 1, LastModified: 1}

	_, ok := c.Get(KindCV, meta)
	assert.False(t, ok)

	c.Set(KindCV, meta, json.RawMessage(`{"ok":true}`))
	res, ok := c.Get(KindCV, meta)
	require.True(t, ok, "corrupted document replaced on write")
	assert.JSONEq(t, `{"ok":true}`, string(res))
}

func TestParseCache_Nil(t *testing.T) {
	var c *ParseCache
	meta := FileMeta{Name: "a.txt", Size: 1, LastModified: 1}
	c.Set(KindCV, meta, json.RawMessage(`{}`))
	_, ok := c.Get(KindCV, meta)
	assert.False(t, ok)
	c.Clear()
	assert.Equal(t, Stats{}, c.Stats())
}

type brokenStorage struct{}

func (brokenStorage) Load() ([]byte, error) { return nil, errors.New("storage disabled") }
func (brokenStorage) Save([]byte) error     { return errors.New("storage disabled") }
func (brokenStorage) Remove() error         { return errors.New("storage disabled") }
func (brokenStorage) String() string        { return "broken" }
