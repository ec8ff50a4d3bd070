// Package upload reads local documents before they are sent to the backend and rejects
// what the backend would refuse anyway (unsupported type, too large).
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/atsdesk/atsdesk/app/cache"
)

// MaxSize is the largest document the backend accepts
const MaxSize = 20 * 1024 * 1024

// Purpose defines which endpoint the document is for
type Purpose string

// enum of purposes
const (
	PurposeCV  Purpose = "cv"
	PurposeJD  Purpose = "jd"
	PurposeKPI Purpose = "kpi"
)

var (
	// ErrUnsupported returned for files with extension or content the backend can't parse
	ErrUnsupported = errors.New("unsupported file type")
	// ErrTooLarge returned for files over MaxSize
	ErrTooLarge = errors.New("file too large (max 20MB)")
)

var allowedExt = map[Purpose][]string{
	PurposeCV:  {".pdf", ".docx", ".txt"},
	PurposeJD:  {".pdf", ".docx", ".txt"},
	PurposeKPI: {".pdf"},
}

// File is a document loaded in memory
type File struct {
	Name    string
	Size    int64
	ModTime time.Time
	MIME    string
	Data    []byte
}

// Open reads and validates file at path for the given purpose
func Open(path string, purpose Purpose) (*File, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("can't stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%s is a directory: %w", path, ErrUnsupported)
	}
	if err := checkExt(fi.Name(), purpose); err != nil {
		return nil, err
	}
	if fi.Size() > MaxSize {
		return nil, fmt.Errorf("%s: %w", fi.Name(), ErrTooLarge)
	}

	data, err := os.ReadFile(path) //nolint:gosec // user-provided document path
	if err != nil {
		return nil, fmt.Errorf("can't read %s: %w", path, err)
	}

	mt := mimetype.Detect(data)
	if !contentMatches(filepath.Ext(fi.Name()), mt) {
		return nil, fmt.Errorf("%s detected as %s: %w", fi.Name(), mt.String(), ErrUnsupported)
	}

	return &File{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime(), MIME: mt.String(), Data: data}, nil
}

// Meta returns cache identity of the file
func (f *File) Meta() cache.FileMeta {
	return cache.FileMeta{Name: f.Name, Size: f.Size, LastModified: f.ModTime.UnixMilli()}
}

// Reader returns a fresh reader over file content
func (f *File) Reader() io.Reader {
	return bytes.NewReader(f.Data)
}

func checkExt(name string, purpose Purpose) error {
	ext := strings.ToLower(filepath.Ext(name))
	allowed, ok := allowedExt[purpose]
	if !ok {
		return fmt.Errorf("unknown purpose %q", purpose)
	}
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return fmt.Errorf("%s, expected one of %s: %w", name, strings.Join(allowed, ","), ErrUnsupported)
}

// contentMatches checks sniffed type against the extension family.
// docx is a zip container and may be detected as either.
func contentMatches(ext string, mt *mimetype.MIME) bool {
	switch strings.ToLower(ext) {
	case ".pdf":
		return mt.Is("application/pdf")
	case ".docx":
		return mt.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document") || mt.Is("application/zip")
	case ".txt":
		for m := mt; m != nil; m = m.Parent() {
			if m.Is("text/plain") {
				return true
			}
		}
		return false
	}
	return false
}
