// Package batch runs bulk match jobs: parse JD, parse each CV in order, then match all CVs against the JD.
// Only one job may be active at a time. Cancelling a job aborts the in-flight backend call,
// skips the remaining steps and discards partial results. Failed steps are not retried.
package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/google/uuid"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/cache"
	"github.com/atsdesk/atsdesk/app/export"
	"github.com/atsdesk/atsdesk/app/notify"
	"github.com/atsdesk/atsdesk/app/store"
	"github.com/atsdesk/atsdesk/app/upload"
)

//go:generate moq -out mocks/backend.go -pkg mocks -skip-ensure -fmt goimports . Backend
//go:generate moq -out mocks/recorder.go -pkg mocks -skip-ensure -fmt goimports . Recorder
//go:generate moq -out mocks/notifier.go -pkg mocks -skip-ensure -fmt goimports . Notifier
//go:generate moq -out mocks/journal.go -pkg mocks -skip-ensure -fmt goimports . Journal

var (
	// ErrBusy returned by Start when another job is active
	ErrBusy = errors.New("another batch job is running")
	// ErrCancelled returned for jobs cancelled before completion
	ErrCancelled = errors.New("batch job cancelled")
)

// Backend parses documents and matches them
type Backend interface {
	Parser
	MatchBulk(ctx context.Context, req api.BulkMatchRequest) (api.BulkMatchResponse, error)
}

// Cache keeps parsed payloads by file metadata
type Cache interface {
	Get(kind cache.Kind, meta cache.FileMeta) (json.RawMessage, bool)
	Set(kind cache.Kind, meta cache.FileMeta, payload json.RawMessage)
}

// Recorder stores finished runs
type Recorder interface {
	Record(ctx context.Context, r store.Run) (int64, error)
}

// Notifier announces finished runs
type Notifier interface {
	Send(ctx context.Context, ev notify.Event) error
}

// Journal tracks jobs in flight, so jobs killed with the process can be found later
type Journal interface {
	OnStart(key, label, detail string, total int, started time.Time) error
	OnFinish(key string) error
}

// Request to start a job
type Request struct {
	Label   string      `json:"label"`
	JD      string      `json:"jd"`
	CVs     []string    `json:"cvs"`
	Weights api.Weights `json:"weights,omitempty"`
}

// Result of a completed job, candidates ranked by global score
type Result struct {
	RunID      int64              `json:"run_id,omitempty"`
	JDFile     string             `json:"jd_file"`
	JDTitle    string             `json:"jd_title,omitempty"`
	RequestID  string             `json:"request_id,omitempty"`
	Candidates []export.Candidate `json:"candidates"`
}

// Report makes exportable report from the result
func (r Result) Report(label string, generated time.Time) export.Report {
	return export.Report{Label: label, JDFile: r.JDFile, JDTitle: r.JDTitle, Generated: generated,
		Candidates: r.Candidates}
}

// Runner executes one job at a time. Cache, Recorder, Notifier and Journal are optional.
type Runner struct {
	Backend       Backend
	Cache         Cache
	Recorder      Recorder
	Notifier      Notifier
	Journal       Journal
	NotifyTimeout time.Duration

	mu  sync.Mutex
	job *Job
}

// Start validates request and launches the job in background. ctx bounds the job lifetime.
// Returns ErrBusy if another job is active.
func (r *Runner) Start(ctx context.Context, req Request) (*Job, error) {
	if req.JD == "" {
		return nil, errors.New("job description file is required")
	}
	if len(req.CVs) == 0 {
		return nil, api.ErrNoCVs
	}
	if len(req.CVs) > api.MaxBulkCVs {
		return nil, api.ErrTooManyCVs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.job != nil {
		return nil, ErrBusy
	}

	label := req.Label
	if label == "" {
		label = filepath.Base(req.JD)
	}
	detail := fmt.Sprintf("%s + %d CVs", filepath.Base(req.JD), len(req.CVs))
	jobCtx, cancel := context.WithCancel(ctx)
	job := newJob(uuid.NewString(), label, detail, len(req.CVs)+2, cancel)
	r.job = job
	if r.Journal != nil {
		if err := r.Journal.OnStart(job.Key, label, detail, len(req.CVs)+2, job.started); err != nil {
			log.Printf("[WARN] can't journal job %s, %v", job.Key, err)
		}
	}

	log.Printf("[INFO] batch job %s started: %s (%s)", job.Key, label, detail)
	go r.execute(jobCtx, job, req)
	return job, nil
}

// Current returns snapshot of the active job
func (r *Runner) Current() (Info, bool) {
	r.mu.Lock()
	job := r.job
	r.mu.Unlock()
	if job == nil {
		return Info{}, false
	}
	return job.Info(), true
}

// Cancel requests cancellation of the active job, returns false if there is nothing to cancel
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	job := r.job
	r.mu.Unlock()
	if job == nil {
		return false
	}
	if !job.requestCancel() {
		return false
	}
	log.Printf("[INFO] batch job %s cancellation requested", job.Key)
	return true
}

// Wait blocks till the active job, if any, is finished
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	job := r.job
	r.mu.Unlock()
	if job == nil {
		return nil
	}
	select {
	case <-job.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) execute(ctx context.Context, job *Job, req Request) {
	res, err := r.run(ctx, job, req)

	outcome := store.StatusDone
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled):
		outcome = store.StatusCancelled
		res = Result{} // partial results are not committed
		log.Printf("[INFO] batch job %s cancelled", job.Key)
	default:
		outcome = store.StatusFailed
		res = Result{}
		log.Printf("[WARN] batch job %s failed, %v", job.Key, err)
	}

	info := job.Info()
	finished := time.Now()
	if id := r.record(ctx, job, info, outcome, res, err, finished); id > 0 && outcome == store.StatusDone {
		res.RunID = id
	}
	r.announce(ctx, info, outcome, res, err, finished)
	if r.Journal != nil {
		if e := r.Journal.OnFinish(job.Key); e != nil {
			log.Printf("[WARN] can't remove journal entry of %s, %v", job.Key, e)
		}
	}

	r.mu.Lock()
	r.job = nil
	r.mu.Unlock()
	job.finish(outcome, res, err)
	if outcome == store.StatusDone {
		log.Printf("[INFO] batch job %s completed, %d candidates ranked", job.Key, len(res.Candidates))
	}
}

// run performs JD parse, CV parses and bulk match sequentially, checking for cancellation before each step
func (r *Runner) run(ctx context.Context, job *Job, req Request) (Result, error) {
	total := len(req.CVs) + 2

	if ctx.Err() != nil {
		return Result{}, ErrCancelled
	}
	job.step(0, fmt.Sprintf("parsing job description %s", filepath.Base(req.JD)))
	jd, _, err := parseDoc(ctx, r.Backend, r.Cache, cache.KindJD, req.JD)
	if err != nil {
		return Result{}, stepError(ctx, "parse job description", err)
	}

	cvs := make([]json.RawMessage, 0, len(req.CVs))
	names := make([]string, 0, len(req.CVs))
	for i, path := range req.CVs {
		if ctx.Err() != nil {
			return Result{}, ErrCancelled
		}
		job.step(i+1, fmt.Sprintf("parsing CV %d/%d %s", i+1, len(req.CVs), filepath.Base(path)))
		cv, _, err := parseDoc(ctx, r.Backend, r.Cache, cache.KindCV, path)
		if err != nil {
			return Result{}, stepError(ctx, fmt.Sprintf("parse CV %s", filepath.Base(path)), err)
		}
		cvs = append(cvs, cv)
		names = append(names, filepath.Base(path))
	}

	if ctx.Err() != nil {
		return Result{}, ErrCancelled
	}
	job.step(total-1, fmt.Sprintf("matching %d CVs", len(cvs)))
	resp, err := r.Backend.MatchBulk(ctx, api.BulkMatchRequest{CVs: cvs, JD: jd, Weights: req.Weights})
	if err != nil {
		return Result{}, stepError(ctx, "bulk match", err)
	}
	if ctx.Err() != nil {
		return Result{}, ErrCancelled
	}
	return rank(filepath.Base(req.JD), names, resp), nil
}

// rank joins match results with CV file names and orders them by global score, ties keep request order
func rank(jdFile string, names []string, resp api.BulkMatchResponse) Result {
	res := Result{JDFile: jdFile, RequestID: resp.RequestID, Candidates: make([]export.Candidate, 0, len(resp.Results))}
	items := append([]api.BulkMatchItem(nil), resp.Results...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Result.GlobalScore > items[j].Result.GlobalScore })
	for _, it := range items {
		file := fmt.Sprintf("#%d", it.Index)
		if it.Index >= 0 && it.Index < len(names) {
			file = names[it.Index]
		}
		if res.JDTitle == "" {
			res.JDTitle = it.Result.JDTitle
		}
		res.Candidates = append(res.Candidates, export.Candidate{Rank: len(res.Candidates) + 1, File: file, Match: it.Result})
	}
	return res
}

func stepError(ctx context.Context, step string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return fmt.Errorf("failed to %s: %w", step, err)
}

func (r *Runner) record(ctx context.Context, job *Job, info Info, outcome store.Status, res Result, err error, finished time.Time) int64 {
	if r.Recorder == nil {
		return 0
	}
	run := store.Run{JobKey: job.Key, Label: job.Label, Detail: job.Detail, Status: outcome,
		Total: info.Progress.Total, Done: info.Progress.Done, Message: info.Progress.Message,
		StartedAt: info.StartedAt, FinishedAt: finished}
	if err != nil && outcome == store.StatusFailed {
		run.Error = err.Error()
	}
	if outcome == store.StatusDone {
		run.Done = run.Total
		run.Message = fmt.Sprintf("matched %d CVs", len(res.Candidates))
		data, e := json.Marshal(res)
		if e != nil {
			log.Printf("[WARN] can't marshal results of %s, %v", job.Key, e)
		}
		run.Results = data
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	id, e := r.Recorder.Record(recCtx, run)
	if e != nil {
		log.Printf("[WARN] can't record run %s, %v", job.Key, e)
		return 0
	}
	return id
}

func (r *Runner) announce(ctx context.Context, info Info, outcome store.Status, res Result, err error, finished time.Time) {
	if r.Notifier == nil {
		return
	}
	ev := notify.Event{JobKey: info.Key, Label: info.Label, Detail: info.Detail, Status: string(outcome),
		Message: info.Progress.Message, Total: info.Progress.Total, Done: info.Progress.Done,
		Started: info.StartedAt, Finished: finished}
	if outcome == store.StatusFailed && err != nil {
		ev.Error = err.Error()
	}
	if outcome == store.StatusDone {
		ev.Done = ev.Total
		ev.Message = fmt.Sprintf("matched %d CVs", len(res.Candidates))
		for i, c := range res.Candidates {
			if i >= 3 {
				break
			}
			ev.Top = append(ev.Top, fmt.Sprintf("%d. %s (%s) %.1f%%", c.Rank, c.Match.CandidateName, c.File,
				c.Match.GlobalScore*100))
		}
	}

	timeout := r.NotifyTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	nCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if e := r.Notifier.Send(nCtx, ev); e != nil {
		log.Printf("[WARN] failed to notify about %s, %v", info.Key, e)
	}
}

// parseDoc opens file, returns cached payload if file metadata matches, otherwise parses it on the backend
// and caches the result. The second value is true for cache hits.
func parseDoc(ctx context.Context, b Parser, c Cache, kind cache.Kind, path string) (json.RawMessage, bool, error) {
	purpose := upload.PurposeCV
	if kind == cache.KindJD {
		purpose = upload.PurposeJD
	}
	f, err := upload.Open(path, purpose)
	if err != nil {
		return nil, false, err
	}
	if c != nil {
		if payload, ok := c.Get(kind, f.Meta()); ok {
			log.Printf("[DEBUG] %s %s loaded from cache", kind, f.Name)
			return payload, true, nil
		}
	}

	var payload json.RawMessage
	switch kind {
	case cache.KindJD:
		resp, err := b.ParseJD(ctx, api.Upload{Name: f.Name, Content: f.Reader()})
		if err != nil {
			return nil, false, err
		}
		payload = resp.JD
	default:
		resp, err := b.ParseCV(ctx, api.Upload{Name: f.Name, Content: f.Reader()})
		if err != nil {
			return nil, false, err
		}
		payload = resp.CV
	}
	if len(payload) == 0 || string(payload) == "null" {
		return nil, false, fmt.Errorf("backend returned no %s for %s", kind, f.Name)
	}
	if c != nil {
		c.Set(kind, f.Meta(), payload)
	}
	return payload, false, nil
}
