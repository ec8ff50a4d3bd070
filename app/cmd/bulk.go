package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"

	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/export"
)

// BulkCmd runs a batch job: parse JD, parse every CV, match all of them at once.
// Ctrl-C cancels the job, nothing is printed or exported for cancelled jobs.
type BulkCmd struct {
	Manifest string             `short:"f" long:"file" description:"yaml manifest with label, jd, cvs, weights and export"`
	Label    string             `short:"l" long:"label" description:"run label"`
	Weights  map[string]float64 `long:"weight" description:"matching weight, component:value"`
	Export   string             `short:"x" long:"export" description:"write xlsx report to this path"`
	NoRecord bool               `long:"no-record" description:"don't record run in local history"`
	Progress time.Duration      `long:"progress" default:"2s" description:"progress log interval"`
	Args     struct {
		Files []string `positional-arg-name:"JD CV"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute bulk command
func (c *BulkCmd) Execute(_ []string) error {
	req, exportPath, err := c.request()
	if err != nil {
		return err
	}

	cl, _, err := c.client()
	if err != nil {
		return err
	}
	runner := &batch.Runner{Backend: cl, Cache: c.batchCache()}
	if !c.NoRecord {
		runs, e := c.openStore()
		if e != nil {
			return e
		}
		defer runs.Close() //nolint:errcheck // read-only after the run
		runner.Recorder = runs
		runner.Journal = c.journal(runs)
	}
	if ntf := c.notifier(); ntf != nil {
		runner.Notifier = ntf
		runner.NotifyTimeout = c.Notify.Timeout
	}

	job, err := runner.Start(c.context(), req)
	if err != nil {
		return err
	}
	res, err := c.wait(job)
	if err != nil {
		return err
	}

	if exportPath != "" {
		out, e := export.ToExcel(res.Report(job.Label, time.Now()), exportPath)
		if e != nil {
			return e
		}
		log.Printf("[INFO] report saved to %s", out)
	}
	return c.printJSON(res)
}

// request makes job request from manifest or from positional args, flags override manifest values
func (c *BulkCmd) request() (req batch.Request, exportPath string, err error) {
	switch {
	case c.Manifest != "":
		m, e := batch.LoadManifest(c.Manifest)
		if e != nil {
			return req, "", e
		}
		req, exportPath = m.Request(), m.Export
	case len(c.Args.Files) >= 2:
		cvs, e := batch.ExpandPaths("", c.Args.Files[1:])
		if e != nil {
			return req, "", e
		}
		req = batch.Request{JD: c.Args.Files[0], CVs: cvs}
	default:
		return req, "", errors.New("either manifest or JD and at least one CV are required")
	}

	if c.Label != "" {
		req.Label = c.Label
	}
	if w := weights(c.Weights); w != nil {
		req.Weights = w
	}
	if c.Export != "" {
		exportPath = c.Export
	}
	return req, exportPath, nil
}

// wait logs job progress till it is finished
func (c *BulkCmd) wait(job *batch.Job) (batch.Result, error) {
	interval := c.Progress
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-job.Done():
			res, err := job.Wait(context.Background()) // already done
			if errors.Is(err, batch.ErrCancelled) {
				return res, fmt.Errorf("bulk match %q: %w", job.Label, err)
			}
			return res, err
		case <-ticker.C:
			p := job.Info().Progress
			log.Printf("[INFO] %s: %d/%d %s", job.Label, p.Done, p.Total, p.Message)
		}
	}
}
