package cmd

import (
	log "github.com/go-pkgz/lgr"

	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/web"
)

// ServeCmd runs the local dashboard server
type ServeCmd struct {
	Address      string `long:"address" env:"ATSDESK_ADDRESS" default:":8080" description:"listen address"`
	PasswordHash string `long:"password-hash" env:"ATSDESK_PASSWORD_HASH" description:"bcrypt hash of dashboard password, auth disabled if empty"`
	KeepRuns     int    `long:"keep-runs" env:"ATSDESK_KEEP_RUNS" default:"500" description:"number of runs kept in history, 0 to keep all"`

	CommonOpts
}

// Execute serve command
func (c *ServeCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}

	runs, err := c.openStore()
	if err != nil {
		return err
	}
	defer runs.Close() //nolint:errcheck // shutdown

	if c.KeepRuns > 0 {
		if err := runs.Cleanup(c.context(), c.KeepRuns); err != nil {
			log.Printf("[WARN] can't prune run history, %v", err)
		}
	}

	runner := &batch.Runner{Backend: cl, Cache: c.batchCache(), Recorder: runs, Journal: c.journal(runs)}
	if ntf := c.notifier(); ntf != nil {
		runner.Notifier = ntf
		runner.NotifyTimeout = c.Notify.Timeout
	}

	cfg := web.Config{
		Version:      c.Revision,
		Hostname:     c.HostName,
		PasswordHash: c.PasswordHash,
		Runner:       runner,
		Runs:         runs,
		Backend:      cl,
	}
	if pc := c.parseCache(); pc != nil {
		cfg.Cache = pc
	}

	srv, err := web.New(cfg)
	if err != nil {
		return err
	}
	log.Printf("[INFO] dashboard on %s, backend %s", c.Address, c.Backend)
	return srv.Run(c.context(), c.Address)
}
