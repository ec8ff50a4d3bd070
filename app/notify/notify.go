// Package notify announces batch run outcomes to webhooks and email
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/notify"
)

// Repeater repeats failed function
type Repeater interface {
	Do(ctx context.Context, fun func() error, errors ...error) (err error)
}

// Event is a finished batch run
type Event struct {
	JobKey   string
	Label    string
	Detail   string
	Status   string // done, cancelled or failed
	Message  string
	Error    string
	Total    int
	Done     int
	Started  time.Time
	Finished time.Time
	Top      []string // best candidates, already formatted
}

// Failed checks if event is an error
func (e Event) Failed() bool {
	return e.Status == "failed"
}

// SMTPParams for email destinations
type SMTPParams struct {
	Host     string
	Port     int
	TLS      bool
	StartTLS bool
	Username string
	Password string
	TimeOut  time.Duration
}

// Params to make Service
type Params struct {
	Destinations []string // https://… webhooks, mailto:… emails
	OnError      bool
	OnCompletion bool
	Timeout      time.Duration
	HostName     string
	SMTP         SMTPParams
	Repeater     Repeater
}

// Service sends notifications. Nil service is valid and sends nothing.
type Service struct {
	Params
	notifiers []notify.Notifier
}

const msgTemplate = `atsdesk run {{.Status}} on {{.Host}}: {{.Label}}
{{- if .Detail}} ({{.Detail}}){{end}}
progress: {{.Done}}/{{.Total}}, took {{.Took}}
{{- if .Message}}
{{.Message}}{{end}}
{{- if .Error}}
error: {{.Error}}{{end}}
{{- range .Top}}
  {{.}}{{end}}
`

var msgTmpl = template.Must(template.New("msg").Parse(msgTemplate))

// NewService makes notification service, returns nil if there are no destinations or all events are disabled
func NewService(p Params) *Service {
	if len(p.Destinations) == 0 || (!p.OnError && !p.OnCompletion) {
		return nil
	}
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	res := &Service{Params: p}

	var needEmail bool
	for _, d := range p.Destinations {
		if strings.HasPrefix(d, "mailto:") {
			needEmail = true
		}
	}
	res.notifiers = append(res.notifiers, notify.NewWebhook(notify.WebhookParams{Timeout: p.Timeout}))
	if needEmail {
		res.notifiers = append(res.notifiers, notify.NewEmail(notify.SMTPParams{
			Host:        p.SMTP.Host,
			Port:        p.SMTP.Port,
			TLS:         p.SMTP.TLS,
			StartTLS:    p.SMTP.StartTLS,
			Username:    p.SMTP.Username,
			Password:    p.SMTP.Password,
			TimeOut:     p.SMTP.TimeOut,
			ContentType: "text/plain",
		}))
	}
	log.Printf("[INFO] notifications enabled, %d destinations, on-error: %v, on-completion: %v",
		len(p.Destinations), p.OnError, p.OnCompletion)
	return res
}

// Send delivers event to all destinations if enabled for its status.
// Errors of individual destinations are collected, delivery continues for the rest.
func (s *Service) Send(ctx context.Context, ev Event) error {
	if s == nil {
		return nil
	}
	if ev.Failed() && !s.OnError {
		return nil
	}
	if !ev.Failed() && !s.OnCompletion {
		return nil
	}

	text, err := s.MakeText(ev)
	if err != nil {
		return err
	}
	subj := fmt.Sprintf("atsdesk: %s %s", ev.Label, ev.Status)

	var errs []string
	for _, dest := range s.Destinations {
		dest = withSubject(dest, subj)
		send := func() error {
			ctxTimeout, cancel := context.WithTimeout(ctx, s.Timeout)
			defer cancel()
			return notify.Send(ctxTimeout, s.notifiers, dest, text)
		}
		if s.Repeater != nil {
			err = s.Repeater.Do(ctx, send)
		} else {
			err = send()
		}
		if err != nil {
			log.Printf("[WARN] can't notify %s, %v", redact(dest), err)
			errs = append(errs, fmt.Sprintf("%s: %v", redact(dest), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notification failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MakeText renders notification body
func (s *Service) MakeText(ev Event) (string, error) {
	host := "localhost"
	if s != nil && s.HostName != "" {
		host = s.HostName
	}
	data := struct {
		Event
		Host string
		Took time.Duration
	}{Event: ev, Host: host, Took: ev.Finished.Sub(ev.Started).Round(time.Millisecond)}

	buf := bytes.Buffer{}
	if err := msgTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to apply template: %w", err)
	}
	return buf.String(), nil
}

// withSubject adds subject to mailto destination unless already set
func withSubject(dest, subj string) string {
	if !strings.HasPrefix(dest, "mailto:") {
		return dest
	}
	u, err := url.Parse(dest)
	if err != nil {
		return dest
	}
	q := u.Query()
	if q.Get("subject") != "" {
		return dest
	}
	q.Set("subject", subj)
	u.RawQuery = q.Encode()
	return u.String()
}

// redact hides query and credentials of the destination for logs
func redact(dest string) string {
	u, err := url.Parse(dest)
	if err != nil {
		return "destination"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
