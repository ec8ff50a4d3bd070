package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/joho/godotenv"
	"github.com/umputun/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/atsdesk/atsdesk/app/cmd"
	"github.com/atsdesk/atsdesk/app/notify"
)

// Opts with all cli commands and flags
type Opts struct {
	HealthCmd  cmd.HealthCmd  `command:"health" description:"check backend health"`
	LoginCmd   cmd.LoginCmd   `command:"login" description:"log in and print token"`
	ParseCmd   cmd.ParseCmd   `command:"parse" description:"parse CV or JD files"`
	MatchCmd   cmd.MatchCmd   `command:"match" description:"match a single CV against a JD"`
	BulkCmd    cmd.BulkCmd    `command:"bulk" description:"match many CVs against a JD, cancellable"`
	TestsCmd   cmd.TestsCmd   `command:"tests" description:"generate interview questions for a JD"`
	HistoryCmd cmd.HistoryCmd `command:"history" description:"show backend activity history"`
	SummaryCmd cmd.SummaryCmd `command:"summary" description:"show backend dashboard summary"`
	KPICmd     cmd.KPICmd     `command:"kpi" description:"KPI document Q&A"`
	UsersCmd   cmd.UsersCmd   `command:"users" description:"manage backend users"`
	CacheCmd   cmd.CacheCmd   `command:"cache" description:"local parse cache"`
	RunsCmd    cmd.RunsCmd    `command:"runs" description:"local history of batch runs"`
	ServeCmd   cmd.ServeCmd   `command:"serve" description:"run local dashboard"`
	SchemaCmd  cmd.SchemaCmd  `command:"schema" description:"print json schema of batch manifest"`

	Backend  string        `short:"b" long:"backend" env:"ATSDESK_BACKEND" default:"http://localhost:8000" description:"backend base url"`
	Token    string        `short:"t" long:"token" env:"ATSDESK_TOKEN" description:"bearer token"`
	Username string        `short:"u" long:"username" env:"ATSDESK_USERNAME" description:"log in with this user if token not set"`
	Password string        `short:"p" long:"password" env:"ATSDESK_PASSWORD" description:"password for username"`
	Timeout  time.Duration `long:"timeout" env:"ATSDESK_TIMEOUT" default:"2m" description:"backend request timeout"`
	StateDir string        `long:"state-dir" env:"ATSDESK_STATE_DIR" description:"directory for parse cache and run history, ~/.atsdesk by default"`
	NoCache  bool          `long:"no-cache" env:"ATSDESK_NO_CACHE" description:"don't use parse cache"`
	HostName string        `long:"host" env:"ATSDESK_HOSTNAME" description:"host name used in notifications"`
	Dbg      bool          `long:"dbg" env:"ATSDESK_DEBUG" description:"debug mode"`

	Log struct {
		Enabled         bool   `long:"enabled" env:"ENABLED" description:"enable logging"`
		Filename        string `long:"filename" env:"FILENAME" description:"file to write logs, stderr if not set"`
		MaxSize         int    `long:"max-size" env:"MAX_SIZE" default:"100" description:"max size of log file in megabytes"`
		MaxBackups      int    `long:"max-backups" env:"MAX_BACKUPS" default:"7" description:"max number of old log files"`
		MaxAge          int    `long:"max-age" env:"MAX_AGE" default:"0" description:"max days to keep old log files"`
		EnabledCompress bool   `long:"compress" env:"COMPRESS" description:"compress rotated log files"`
	} `group:"log" namespace:"log" env-namespace:"ATSDESK_LOG"`

	Notify struct {
		Destinations []string      `long:"dest" env:"DEST" env-delim:"," description:"webhook url or mailto: address, repeat for multiple"`
		OnError      bool          `long:"on-error" env:"ON_ERROR" description:"notify about failed runs"`
		OnCompletion bool          `long:"on-complete" env:"ON_COMPLETE" description:"notify about finished and cancelled runs"`
		Timeout      time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"notification delivery timeout"`
		Attempts     int           `long:"attempts" env:"ATTEMPTS" default:"1" description:"delivery attempts"`
		Delay        time.Duration `long:"delay" env:"DELAY" default:"1s" description:"initial delay between attempts"`
		SMTPHost     string        `long:"smtp-host" env:"SMTP_HOST" description:"SMTP host"`
		SMTPPort     int           `long:"smtp-port" env:"SMTP_PORT" default:"25" description:"SMTP port"`
		SMTPUsername string        `long:"smtp-username" env:"SMTP_USERNAME" description:"SMTP user name"`
		SMTPPassword string        `long:"smtp-password" env:"SMTP_PASSWORD" description:"SMTP password"`
		SMTPTLS      bool          `long:"smtp-tls" env:"SMTP_TLS" description:"enable SMTP TLS"`
		SMTPStartTLS bool          `long:"smtp-starttls" env:"SMTP_STARTTLS" description:"enable SMTP STARTTLS"`
		SMTPTimeOut  time.Duration `long:"smtp-timeout" env:"SMTP_TIMEOUT" default:"10s" description:"SMTP TCP connection timeout"`
	} `group:"notify" namespace:"notify" env-namespace:"ATSDESK_NOTIFY"`
}

var opts Opts

var revision = "unknown"

func main() {
	loadEnv()
	p := flags.NewParser(&opts, flags.Default)
	p.CommandHandler = func(command flags.Commander, args []string) error {
		logOut := setupLogs()
		log.Printf("[DEBUG] atsdesk %s", revision)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		signals(cancel, logOut)

		c := command.(cmd.CommonOptionsCommander)
		c.SetCommon(commonOpts(ctx))
		if err := c.Execute(args); err != nil {
			log.Printf("[ERROR] failed with %+v", err)
			return err
		}
		return nil
	}

	if _, err := p.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// loadEnv reads .env files from the current directory, missing files are ignored
func loadEnv() {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err == nil {
			log.Printf("[DEBUG] loaded env from %s", f)
		}
	}
}

func commonOpts(ctx context.Context) cmd.CommonOpts {
	return cmd.CommonOpts{
		Ctx:      ctx,
		Backend:  opts.Backend,
		Token:    opts.Token,
		Username: opts.Username,
		Password: opts.Password,
		Timeout:  opts.Timeout,
		StateDir: stateDir(),
		NoCache:  opts.NoCache,
		HostName: makeHostName(),
		Revision: revision,
		Notify: cmd.NotifyOpts{
			Destinations: opts.Notify.Destinations,
			OnError:      opts.Notify.OnError,
			OnCompletion: opts.Notify.OnCompletion,
			Timeout:      opts.Notify.Timeout,
			Attempts:     opts.Notify.Attempts,
			Delay:        opts.Notify.Delay,
			SMTP: notify.SMTPParams{
				Host:     opts.Notify.SMTPHost,
				Port:     opts.Notify.SMTPPort,
				TLS:      opts.Notify.SMTPTLS,
				StartTLS: opts.Notify.SMTPStartTLS,
				Username: opts.Notify.SMTPUsername,
				Password: opts.Notify.SMTPPassword,
				TimeOut:  opts.Notify.SMTPTimeOut,
			},
		},
	}
}

func stateDir() string {
	if opts.StateDir != "" {
		return opts.StateDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".atsdesk"
	}
	return filepath.Join(home, ".atsdesk")
}

func makeHostName() string {
	if opts.HostName != "" {
		return opts.HostName
	}
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return host
}

// setupLogs configures logger and returns where the logs go
func setupLogs() io.Writer {
	if !opts.Log.Enabled && !opts.Dbg {
		log.Setup(log.Out(io.Discard), log.Err(io.Discard))
		return io.Discard
	}

	var out io.Writer = os.Stderr
	if opts.Log.Filename != "" {
		out = &lumberjack.Logger{
			Filename:   opts.Log.Filename,
			MaxSize:    opts.Log.MaxSize,
			MaxBackups: opts.Log.MaxBackups,
			MaxAge:     opts.Log.MaxAge,
			Compress:   opts.Log.EnabledCompress,
		}
	}

	if opts.Dbg {
		log.Setup(log.Debug, log.Msec, log.CallerFunc, log.CallerPkg, log.CallerFile, log.Out(out), log.Err(out))
		return out
	}
	log.Setup(log.Msec, log.Out(out), log.Err(out))
	return out
}

func signals(cancel context.CancelFunc, out io.Writer) {
	sigChan := make(chan os.Signal, 1)
	go func() {
		stacktrace := make([]byte, 8192)
		for sig := range sigChan {
			if sig == syscall.SIGQUIT { // catch SIGQUIT and print stack traces
				length := runtime.Stack(stacktrace, true)
				_, _ = fmt.Fprintln(out, string(stacktrace[:length]))
				continue
			}
			log.Printf("[INFO] %s received, cancelling", sig)
			cancel() // terminate on SIGINT and SIGTERM, cancels running batch job
		}
	}()
	signal.Notify(sigChan, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGINT)
}
