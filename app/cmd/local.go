package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	log "github.com/go-pkgz/lgr"

	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/export"
	"github.com/atsdesk/atsdesk/app/store"
)

// CacheCmd groups parse cache commands
type CacheCmd struct {
	Stats CacheStatsCmd `command:"stats" description:"show cached entries"`
	Clear CacheClearCmd `command:"clear" description:"drop all cached entries"`
}

// CacheStatsCmd prints cache stats
type CacheStatsCmd struct {
	CommonOpts
}

// Execute cache stats command
func (c *CacheStatsCmd) Execute(_ []string) error {
	c.NoCache = false
	return c.printJSON(c.parseCache().Stats())
}

// CacheClearCmd clears cache
type CacheClearCmd struct {
	CommonOpts
}

// Execute cache clear command
func (c *CacheClearCmd) Execute(_ []string) error {
	c.NoCache = false
	pc := c.parseCache()
	pc.Clear()
	log.Printf("[INFO] parse cache cleared")
	return c.printJSON(pc.Stats())
}

// RunsCmd groups local run history commands
type RunsCmd struct {
	List   RunsListCmd   `command:"list" description:"list recorded runs"`
	Show   RunsShowCmd   `command:"show" description:"show run with ranked candidates"`
	Export RunsExportCmd `command:"export" description:"export run results to xlsx"`
	Prune  RunsPruneCmd  `command:"prune" description:"keep only the latest runs"`
}

// RunsListCmd lists runs
type RunsListCmd struct {
	Limit int `short:"n" long:"limit" default:"20" description:"max number of runs"`

	CommonOpts
}

// Execute runs list command
func (c *RunsListCmd) Execute(_ []string) error {
	runs, err := c.openStore()
	if err != nil {
		return err
	}
	defer runs.Close() //nolint:errcheck // read only

	res, err := runs.List(c.context(), c.Limit)
	if err != nil {
		return err
	}
	return c.printJSON(res)
}

// RunsShowCmd shows single run
type RunsShowCmd struct {
	Args struct {
		ID string `positional-arg-name:"ID" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute runs show command
func (c *RunsShowCmd) Execute(_ []string) error {
	run, res, err := loadRun(&c.CommonOpts, c.Args.ID)
	if err != nil {
		return err
	}
	out := struct {
		store.Run
		Results *batch.Result `json:"results,omitempty"`
	}{Run: run, Results: res}
	return c.printJSON(out)
}

// RunsExportCmd exports completed run
type RunsExportCmd struct {
	Output string `short:"o" long:"output" description:"output file, run-<id>.xlsx by default"`
	Args   struct {
		ID string `positional-arg-name:"ID" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute runs export command
func (c *RunsExportCmd) Execute(_ []string) error {
	run, res, err := loadRun(&c.CommonOpts, c.Args.ID)
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("run %d is %s, nothing to export", run.ID, run.Status)
	}
	output := c.Output
	if output == "" {
		output = fmt.Sprintf("run-%d.xlsx", run.ID)
	}
	path, err := export.ToExcel(res.Report(run.Label, run.FinishedAt), output)
	if err != nil {
		return err
	}
	return c.printJSON(map[string]string{"report": path})
}

// RunsPruneCmd removes old runs
type RunsPruneCmd struct {
	Keep int `long:"keep" default:"100" description:"number of latest runs to keep"`

	CommonOpts
}

// Execute runs prune command
func (c *RunsPruneCmd) Execute(_ []string) error {
	if c.Keep < 1 {
		return errors.New("keep must be positive")
	}
	runs, err := c.openStore()
	if err != nil {
		return err
	}
	defer runs.Close() //nolint:errcheck // nothing to flush
	return runs.Cleanup(c.context(), c.Keep)
}

func loadRun(c *CommonOpts, idStr string) (store.Run, *batch.Result, error) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("invalid run ID %q", idStr)
	}
	runs, err := c.openStore()
	if err != nil {
		return store.Run{}, nil, err
	}
	defer runs.Close() //nolint:errcheck // read only

	run, err := runs.Get(c.context(), id)
	if err != nil {
		return store.Run{}, nil, fmt.Errorf("can't load run %d: %w", id, err)
	}
	if len(run.Results) == 0 {
		return run, nil, nil
	}
	var res batch.Result
	if err := json.Unmarshal(run.Results, &res); err != nil {
		return run, nil, fmt.Errorf("can't decode results of run %d: %w", id, err)
	}
	res.RunID = run.ID
	run.Results = nil
	return run, &res, nil
}

// SchemaCmd prints json schema of the batch manifest
type SchemaCmd struct {
	Output string `short:"o" long:"output" description:"write schema to file instead of stdout"`

	CommonOpts
}

// Execute schema command
func (c *SchemaCmd) Execute(_ []string) error {
	data, err := batch.ManifestSchema()
	if err != nil {
		return err
	}
	if c.Output != "" {
		if err := os.WriteFile(c.Output, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
			return fmt.Errorf("failed to write schema file: %w", err)
		}
		log.Printf("[INFO] schema generated at %s", c.Output)
		return nil
	}
	return c.printJSON(json.RawMessage(data))
}
