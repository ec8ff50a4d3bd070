package cmd

import (
	"fmt"

	"github.com/atsdesk/atsdesk/app/batch"
	"github.com/atsdesk/atsdesk/app/cache"
)

// ParseCmd groups document parse commands
type ParseCmd struct {
	CV ParseCVCmd `command:"cv" description:"parse CV files"`
	JD ParseJDCmd `command:"jd" description:"parse job description files"`
}

// ParseFilesCmd has options shared by parse commands
type ParseFilesCmd struct {
	Concurrency int `short:"c" long:"concurrency" default:"2" description:"parallel uploads"`
	Args        struct {
		Files []string `positional-arg-name:"FILE" required:"1"`
	} `positional-args:"yes"`

	CommonOpts
}

// ParseCVCmd parses CV files
type ParseCVCmd struct {
	ParseFilesCmd
}

// Execute parse cv command
func (c *ParseCVCmd) Execute(_ []string) error {
	return c.parse(cache.KindCV)
}

// ParseJDCmd parses job description files
type ParseJDCmd struct {
	ParseFilesCmd
}

// Execute parse jd command
func (c *ParseJDCmd) Execute(_ []string) error {
	return c.parse(cache.KindJD)
}

// parse prints per-file results, fails if any file failed
func (c *ParseFilesCmd) parse(kind cache.Kind) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	files, err := batch.ExpandPaths("", c.Args.Files)
	if err != nil {
		return err
	}
	res := batch.ParseMany(c.context(), cl, c.batchCache(), kind, files, c.Concurrency)
	if err := c.printJSON(res); err != nil {
		return err
	}
	var failed int
	for _, r := range res {
		if r.Error != "" {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(res))
	}
	return nil
}
