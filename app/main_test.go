package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"
)

func Test_makeHostName(t *testing.T) {
	opts.HostName = "test"
	assert.Equal(t, "test", makeHostName())

	opts.HostName = ""
	exp, err := os.Hostname()
	require.NoError(t, err)
	assert.Equal(t, exp, makeHostName())
}

func Test_stateDir(t *testing.T) {
	opts.StateDir = "/tmp/state"
	assert.Equal(t, "/tmp/state", stateDir())

	opts.StateDir = ""
	t.Setenv("HOME", "/home/tester")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".atsdesk"), stateDir())
}

func Test_setupLogsDisabled(t *testing.T) {
	opts.Log.Enabled, opts.Dbg = false, false
	assert.Equal(t, io.Discard, setupLogs())
}

func Test_setupLogsToStderr(t *testing.T) {
	opts.Log.Enabled, opts.Dbg = true, false
	opts.Log.Filename = ""
	assert.Equal(t, os.Stderr, setupLogs())
}

func Test_setupLogsToFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "atsdesk.log")

	opts.Log.Enabled = true
	opts.Log.Filename = fname
	opts.Log.MaxSize = 100
	opts.Log.MaxBackups = 7
	opts.Log.MaxAge = 0
	opts.Log.EnabledCompress = false
	defer func() { opts.Log.Filename, opts.Log.Enabled = "", false }()

	out := setupLogs()
	assert.IsType(t, &lumberjack.Logger{}, out)

	logger := out.(*lumberjack.Logger)
	assert.Equal(t, fname, logger.Filename)
	assert.Equal(t, 100, logger.MaxSize)
	assert.Equal(t, 7, logger.MaxBackups)
	assert.Equal(t, 0, logger.MaxAge)
	assert.False(t, logger.Compress)
}

func Test_commonOpts(t *testing.T) {
	var o Opts
	p := flags.NewParser(&o, flags.Default&^flags.PrintErrors)
	p.CommandHandler = func(flags.Commander, []string) error { return nil }
	_, err := p.ParseArgs([]string{
		"--backend=http://ats.example.com", "--token=tkn", "--timeout=5s", "--state-dir=/tmp/st", "--no-cache",
		"--host=box1", "--notify.dest=https://hooks.example.com/x", "--notify.dest=mailto:hr@example.com",
		"--notify.on-error", "--notify.attempts=3", "--notify.smtp-host=smtp.example.com", "--notify.smtp-port=587",
		"--notify.smtp-starttls", "health",
	})
	require.NoError(t, err)

	saved := opts
	opts = o
	defer func() { opts = saved }()

	ctx := context.Background()
	c := commonOpts(ctx)
	assert.Equal(t, ctx, c.Ctx)
	assert.Equal(t, "http://ats.example.com", c.Backend)
	assert.Equal(t, "tkn", c.Token)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, "/tmp/st", c.StateDir)
	assert.True(t, c.NoCache)
	assert.Equal(t, "box1", c.HostName)
	assert.Equal(t, []string{"https://hooks.example.com/x", "mailto:hr@example.com"}, c.Notify.Destinations)
	assert.True(t, c.Notify.OnError)
	assert.False(t, c.Notify.OnCompletion)
	assert.Equal(t, 3, c.Notify.Attempts)
	assert.Equal(t, 30*time.Second, c.Notify.Timeout)
	assert.Equal(t, "smtp.example.com", c.Notify.SMTP.Host)
	assert.Equal(t, 587, c.Notify.SMTP.Port)
	assert.True(t, c.Notify.SMTP.StartTLS)
	assert.Equal(t, 10*time.Second, c.Notify.SMTP.TimeOut)
}

func Test_commandsParse(t *testing.T) {
	tbl := []struct {
		args []string
		cmd  string
	}{
		{[]string{"health"}, "health"},
		{[]string{"parse", "cv", "a.pdf", "b.pdf"}, "cv"},
		{[]string{"parse", "jd", "-c", "4", "jd.txt"}, "jd"},
		{[]string{"match", "--weight=skills:0.6", "cv.pdf", "jd.txt"}, "match"},
		{[]string{"bulk", "-f", "batch.yml"}, "bulk"},
		{[]string{"bulk", "jd.txt", "cv1.pdf", "cv2.pdf"}, "bulk"},
		{[]string{"kpi", "ask", "s1", "what", "is", "the", "target"}, "ask"},
		{[]string{"users", "update", "--role=admin", "bob"}, "update"},
		{[]string{"runs", "export", "-o", "out.xlsx", "12"}, "export"},
		{[]string{"cache", "clear"}, "clear"},
		{[]string{"serve", "--address=:9090"}, "serve"},
		{[]string{"schema"}, "schema"},
	}

	for _, tt := range tbl {
		t.Run(tt.cmd, func(t *testing.T) {
			var o Opts
			p := flags.NewParser(&o, flags.Default&^flags.PrintErrors)
			var executed string
			p.CommandHandler = func(_ flags.Commander, _ []string) error {
				for c := p.Active; c != nil; c = c.Active {
					executed = c.Name
				}
				return nil
			}
			_, err := p.ParseArgs(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.cmd, executed)
		})
	}
}

func Test_commandsParseValues(t *testing.T) {
	var o Opts
	p := flags.NewParser(&o, flags.Default&^flags.PrintErrors)
	p.CommandHandler = func(flags.Commander, []string) error { return nil }

	_, err := p.ParseArgs([]string{"match", "--weight=skills:0.6", "--weight=experience:0.4", "cv.pdf", "jd.txt"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"skills": 0.6, "experience": 0.4}, o.MatchCmd.Weights)
	assert.Equal(t, "cv.pdf", o.MatchCmd.Args.CV)
	assert.Equal(t, "jd.txt", o.MatchCmd.Args.JD)

	_, err = p.ParseArgs([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, ":8080", o.ServeCmd.Address)
	assert.Equal(t, 500, o.ServeCmd.KeepRuns)
}
