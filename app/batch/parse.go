package batch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"

	"github.com/atsdesk/atsdesk/app/api"
	"github.com/atsdesk/atsdesk/app/cache"
)

// Parser parses CV and JD documents on the backend
type Parser interface {
	ParseCV(ctx context.Context, u api.Upload) (api.CVParseResponse, error)
	ParseJD(ctx context.Context, u api.Upload) (api.JDParseResponse, error)
}

// Parsed is the outcome of a single file parse
type Parsed struct {
	File    string          `json:"file"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Cached  bool            `json:"cached"`
	Error   string          `json:"error,omitempty"`
}

// ParseMany parses files with bounded concurrency, results are in the order of paths.
// Per-file failures are reported in Parsed.Error and don't stop other files.
func ParseMany(ctx context.Context, p Parser, c Cache, kind cache.Kind, paths []string, concurrency int) []Parsed {
	if concurrency < 1 {
		concurrency = 1
	}
	res := make([]Parsed, len(paths))
	for i, path := range paths {
		res[i] = Parsed{File: filepath.Base(path), Error: ErrCancelled.Error()}
	}

	gr := syncs.NewSizedGroup(concurrency, syncs.Context(ctx))
	for i, path := range paths {
		gr.Go(func(ctx context.Context) {
			if ctx.Err() != nil {
				return
			}
			payload, cached, err := parseDoc(ctx, p, c, kind, path)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					err = ErrCancelled
				}
				log.Printf("[WARN] can't parse %s %s, %v", kind, path, err)
				res[i] = Parsed{File: filepath.Base(path), Error: err.Error()}
				return
			}
			res[i] = Parsed{File: filepath.Base(path), Payload: payload, Cached: cached}
		})
	}
	gr.Wait()
	return res
}
