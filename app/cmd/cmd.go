// Package cmd implements atsdesk subcommands. Each command gets CommonOpts from main before Execute.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"github.com/umputun/go-flags"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/cache"
	"github.com/atsdesk/atsdesk/app/journal"
	"github.com/atsdesk/atsdesk/app/notify"
	"github.com/atsdesk/atsdesk/app/session"
	"github.com/atsdesk/atsdesk/app/store"
)

// CommonOptionsCommander extends flags.Commander with SetCommon
type CommonOptionsCommander interface {
	flags.Commander
	SetCommon(commonOpts CommonOpts)
}

// NotifyOpts configures run notifications
type NotifyOpts struct {
	Destinations []string
	OnError      bool
	OnCompletion bool
	Timeout      time.Duration
	SMTP         notify.SMTPParams
	Attempts     int
	Delay        time.Duration
}

// CommonOpts sets externally from main, shared across all commands
type CommonOpts struct {
	Ctx      context.Context
	Backend  string
	Token    string
	Username string
	Password string
	Timeout  time.Duration
	StateDir string
	NoCache  bool
	HostName string
	Revision string
	Notify   NotifyOpts
	Stdout   io.Writer
}

// SetCommon satisfies CommonOptionsCommander interface and sets common option fields
func (c *CommonOpts) SetCommon(commonOpts CommonOpts) {
	*c = commonOpts
}

func (c *CommonOpts) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// client makes backend client, logs in with username and password if token not set
func (c *CommonOpts) client() (*api.Client, *session.Session, error) {
	sess := session.New(c.Token)
	cl := api.New(api.Params{BaseURL: c.Backend, Timeout: c.Timeout, Tokens: sess})
	if c.Token == "" && c.Username != "" {
		if _, err := sess.Login(c.context(), cl, c.Username, c.Password); err != nil {
			return nil, nil, err
		}
	}
	return cl, sess, nil
}

// parseCache returns file-backed cache in state dir, nil if disabled
func (c *CommonOpts) parseCache() *cache.ParseCache {
	if c.NoCache {
		return nil
	}
	if err := os.MkdirAll(c.StateDir, 0o750); err != nil {
		log.Printf("[DEBUG] can't make state dir %s, %v", c.StateDir, err)
	}
	return cache.NewFile(filepath.Join(c.StateDir, "parse-cache.json"))
}

// batchCache converts parse cache to batch.Cache, keeping nil as untyped nil
func (c *CommonOpts) batchCache() batch.Cache {
	pc := c.parseCache()
	if pc == nil {
		return nil
	}
	return pc
}

// openStore opens run history database in state dir
func (c *CommonOpts) openStore() (*store.SQLiteStore, error) {
	if err := os.MkdirAll(c.StateDir, 0o750); err != nil {
		return nil, fmt.Errorf("can't make state dir %s: %w", c.StateDir, err)
	}
	return store.NewSQLiteStore(filepath.Join(c.StateDir, "runs.db"))
}

// journal makes job journal in state dir and records jobs interrupted by earlier crashes
func (c *CommonOpts) journal(rec journal.Recorder) *journal.Journal {
	j := journal.New(filepath.Join(c.StateDir, "jobs"), 0)
	n, err := j.Recover(c.context(), rec)
	if err != nil {
		log.Printf("[WARN] %v", err)
	}
	if n > 0 {
		log.Printf("[INFO] %d interrupted jobs recorded", n)
	}
	return j
}

// notifier makes notification service with retries, nil if notifications disabled
func (c *CommonOpts) notifier() *notify.Service {
	var rptr notify.Repeater
	if c.Notify.Attempts > 1 {
		rptr = repeater.New(&strategy.Backoff{Repeats: c.Notify.Attempts, Duration: c.Notify.Delay, Factor: 2, Jitter: true})
	}
	return notify.NewService(notify.Params{
		Destinations: c.Notify.Destinations,
		OnError:      c.Notify.OnError,
		OnCompletion: c.Notify.OnCompletion,
		Timeout:      c.Notify.Timeout,
		HostName:     c.HostName,
		SMTP:         c.Notify.SMTP,
		Repeater:     rptr,
	})
}

// printJSON writes indented json to stdout
func (c *CommonOpts) printJSON(v any) error {
	out := c.Stdout
	if out == nil {
		out = os.Stdout
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("can't encode output: %w", err)
	}
	return nil
}

// parseOne parses a single document, cache-aware
func (c *CommonOpts) parseOne(p batch.Parser, kind cache.Kind, path string) (json.RawMessage, error) {
	res := batch.ParseMany(c.context(), p, c.batchCache(), kind, []string{path}, 1)
	if res[0].Error != "" {
		return nil, errors.New(res[0].Error)
	}
	log.Printf("[DEBUG] parsed %s %s, cached: %v", kind, res[0].File, res[0].Cached)
	return res[0].Payload, nil
}
