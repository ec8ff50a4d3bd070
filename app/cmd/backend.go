package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/cache"
	"github.com/atsdesk/atsdesk/app/upload"
)

// HealthCmd checks backend health
type HealthCmd struct {
	CommonOpts
}

// Execute health command
func (c *HealthCmd) Execute(_ []string) error {
	cl := api.New(api.Params{BaseURL: c.Backend, Timeout: c.Timeout})
	res, err := cl.Health(c.context())
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return c.printJSON(res)
}

// LoginCmd exchanges username and password for a token, prints token and user
type LoginCmd struct {
	CommonOpts
}

// Execute login command
func (c *LoginCmd) Execute(_ []string) error {
	if c.Username == "" || c.Password == "" {
		return errors.New("username and password are required")
	}
	c.Token = ""
	_, sess, err := c.client()
	if err != nil {
		return err
	}
	return c.printJSON(api.LoginResponse{Token: sess.Token(), User: sess.User()})
}

// MatchCmd scores a single CV against a JD
type MatchCmd struct {
	Weights map[string]float64 `long:"weight" description:"matching weight, component:value"`
	Args    struct {
		CV string `positional-arg-name:"CV" required:"true"`
		JD string `positional-arg-name:"JD" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute match command
func (c *MatchCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	cv, err := c.parseOne(cl, cache.KindCV, c.Args.CV)
	if err != nil {
		return err
	}
	jd, err := c.parseOne(cl, cache.KindJD, c.Args.JD)
	if err != nil {
		return err
	}
	res, err := cl.Match(c.context(), api.MatchRequest{CV: cv, JD: jd, Weights: weights(c.Weights)})
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}
	return c.printJSON(res)
}

// TestsCmd generates interview questions for a JD
type TestsCmd struct {
	Args struct {
		JD string `positional-arg-name:"JD" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute tests command
func (c *TestsCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	jd, err := c.parseOne(cl, cache.KindJD, c.Args.JD)
	if err != nil {
		return err
	}
	res, err := cl.GenerateTests(c.context(), jd)
	if err != nil {
		return fmt.Errorf("test generation failed: %w", err)
	}
	return c.printJSON(res)
}

// HistoryCmd lists backend activity
type HistoryCmd struct {
	Limit int    `short:"n" long:"limit" default:"50" description:"max number of events, 1..500"`
	Kind  string `short:"k" long:"kind" description:"event kind filter (cv, jd, match, tests, ...)"`

	CommonOpts
}

// Execute history command
func (c *HistoryCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.History(c.context(), c.Limit, c.Kind)
	if err != nil {
		return fmt.Errorf("can't load history: %w", err)
	}
	return c.printJSON(res)
}

// SummaryCmd shows backend dashboard counters and recent events
type SummaryCmd struct {
	CommonOpts
}

// Execute summary command
func (c *SummaryCmd) Execute(_ []string) error {
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.DashboardSummary(c.context())
	if err != nil {
		return fmt.Errorf("can't load summary: %w", err)
	}
	return c.printJSON(res)
}

// KPICmd groups KPI document commands
type KPICmd struct {
	Load KPILoadCmd `command:"load" description:"upload KPI pdf and start a Q&A session"`
	Ask  KPIAskCmd  `command:"ask" description:"ask a question in a KPI session"`
}

// KPILoadCmd uploads KPI pdf
type KPILoadCmd struct {
	Args struct {
		File string `positional-arg-name:"FILE" required:"true"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute kpi load command
func (c *KPILoadCmd) Execute(_ []string) error {
	f, err := upload.Open(c.Args.File, upload.PurposeKPI)
	if err != nil {
		return err
	}
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.KPILoad(c.context(), api.Upload{Name: f.Name, Content: f.Reader()})
	if err != nil {
		return fmt.Errorf("can't load %s: %w", f.Name, err)
	}
	return c.printJSON(res)
}

// KPIAskCmd asks a question about loaded KPI document
type KPIAskCmd struct {
	Args struct {
		Session  string   `positional-arg-name:"SESSION" required:"true"`
		Question []string `positional-arg-name:"QUESTION" required:"1"`
	} `positional-args:"yes"`

	CommonOpts
}

// Execute kpi ask command
func (c *KPIAskCmd) Execute(_ []string) error {
	question := strings.TrimSpace(strings.Join(c.Args.Question, " "))
	if question == "" {
		return errors.New("question is required")
	}
	cl, _, err := c.client()
	if err != nil {
		return err
	}
	res, err := cl.KPIAsk(c.context(), c.Args.Session, question)
	if err != nil {
		return fmt.Errorf("can't ask: %w", err)
	}
	return c.printJSON(res)
}

func weights(w map[string]float64) api.Weights {
	if len(w) == 0 {
		return nil
	}
	return api.Weights(w)
}
