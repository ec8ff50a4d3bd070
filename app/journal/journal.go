// Package journal keeps a marker file for every batch job in flight. Markers left behind
// by a killed process are interrupted runs, Recover records them as failed.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/atsdesk/atsdesk/app/store"
)

const markerExt = ".job"

// Recorder saves runs
type Recorder interface {
	Record(ctx context.Context, r store.Run) (int64, error)
}

// Entry is a job in flight
type Entry struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Detail    string    `json:"detail"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"started_at"`
	PID       int32     `json:"pid"`
}

// Journal tracks jobs in flight as <key>.job files in location
type Journal struct {
	location string
	maxAge   time.Duration
	alive    func(ctx context.Context, pid int32) (bool, error)
}

// New makes journal for given location, entries older than maxAge are dropped by List.
// Zero maxAge means a week.
func New(location string, maxAge time.Duration) *Journal {
	if err := os.MkdirAll(location, 0o700); err != nil {
		log.Printf("[DEBUG] can't make %s, %s", location, err)
	}
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Journal{location: location, maxAge: maxAge, alive: process.PidExistsWithContext}
}

// OnStart writes marker for started job, owned by the current process
func (j *Journal) OnStart(key, label, detail string, total int, started time.Time) error {
	e := Entry{Key: key, Label: label, Detail: detail, Total: total, StartedAt: started, PID: int32(os.Getpid())} //nolint:gosec // pid fits
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("can't marshal journal entry %s: %w", key, err)
	}
	fname := j.fname(key)
	log.Printf("[DEBUG] create journal file %s", fname)
	return os.WriteFile(fname, data, 0o600)
}

// OnFinish removes marker of finished job
func (j *Journal) OnFinish(key string) error {
	fname := j.fname(key)
	log.Printf("[DEBUG] delete journal file %s", fname)
	if err := os.Remove(fname); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns entries in flight, old and broken markers are removed
func (j *Journal) List() []Entry {
	entries, err := os.ReadDir(j.location)
	if err != nil {
		log.Printf("[WARN] can't list journal %s, %s", j.location, err)
		return []Entry{}
	}

	res := []Entry{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), markerExt) {
			continue
		}
		fname := filepath.Join(j.location, entry.Name())
		finfo, err := entry.Info()
		if err != nil {
			log.Printf("[WARN] can't get journal info for %s, %s", fname, err)
			continue
		}
		if finfo.ModTime().Add(j.maxAge).Before(time.Now()) {
			log.Printf("[DEBUG] journal file %s too old", fname)
			j.remove(fname)
			continue
		}
		data, err := os.ReadFile(fname) //nolint:gosec // file from own location
		if err != nil {
			log.Printf("[WARN] failed to read journal file %s, %s", fname, err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil || e.Key == "" {
			log.Printf("[WARN] broken journal file %s, removed", fname)
			j.remove(fname)
			continue
		}
		res = append(res, e)
	}
	return res
}

// Recover records entries left by dead processes as failed runs and removes their markers.
// Entries of live processes, including the current one, are skipped. Returns number of recovered runs.
func (j *Journal) Recover(ctx context.Context, rec Recorder) (int, error) {
	var count int
	for _, e := range j.List() {
		if e.PID == int32(os.Getpid()) { //nolint:gosec // pid fits
			continue
		}
		if alive, err := j.alive(ctx, e.PID); err == nil && alive {
			log.Printf("[DEBUG] job %s still running in pid %d", e.Key, e.PID)
			continue
		}
		run := store.Run{JobKey: e.Key, Label: e.Label, Detail: e.Detail, Status: store.StatusFailed, Total: e.Total,
			Error: "interrupted", StartedAt: e.StartedAt, FinishedAt: time.Now()}
		if _, err := rec.Record(ctx, run); err != nil {
			return count, fmt.Errorf("can't record interrupted job %s: %w", e.Key, err)
		}
		log.Printf("[INFO] job %s (%s) was interrupted, recorded as failed", e.Key, e.Label)
		j.remove(j.fname(e.Key))
		count++
	}
	return count, nil
}

func (j *Journal) fname(key string) string {
	return filepath.Join(j.location, key+markerExt)
}

func (j *Journal) remove(fname string) {
	if err := os.Remove(fname); err != nil {
		log.Printf("[WARN] can't delete %s, %s", fname, err)
	}
}

func (j *Journal) String() string {
	return fmt.Sprintf("location:%s, max age:%v", j.location, j.maxAge)
}
