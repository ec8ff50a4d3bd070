package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func TestClient_ParseCV(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cv/parse", r.URL.Path)
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		file, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "cv.txt", hdr.Filename)
		assert.Equal(t, "John Doe", string(data))
		_, _ = w.Write([]byte(`{"cv":{"name":"John"},"request_id":"r1","storage":{"raw_path":"/s/r1.txt"}}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL + "/", Tokens: staticToken("tok123")})
	res, err := c.ParseCV(context.Background(), Upload{Name: "cv.txt", Content: strings.NewReader("John Doe")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"John"}`, string(res.CV))
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, "/s/r1.txt", res.Storage.RawPath)
}

func TestClient_NoTokenNoAuthHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"ok","env":{"OLLAMA_BASE_URL":true},"routes":["/health"]}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL, Tokens: staticToken("")})
	res, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Status)
	assert.True(t, res.Env["OLLAMA_BASE_URL"])
}

func TestClient_Errors(t *testing.T) {
	tbl := []struct {
		name   string
		status int
		body   string
		msg    string
	}{
		{"detail string", 415, `{"detail":"Unsupported file type"}`, "Unsupported file type"},
		{"detail list", 422, `{"detail":[{"loc":["body","jd"],"msg":"field required"},{"msg":"bad cv"}]}`, "field required; bad cv"},
		{"raw text", 502, "Bad Gateway from proxy", "Bad Gateway from proxy"},
		{"json without detail", 500, `{"error":"boom"}`, `{"error":"boom"}`},
		{"empty body", 503, "", "503 Service Unavailable"},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := New(Params{BaseURL: ts.URL})
			_, err := c.DashboardSummary(context.Background())
			require.Error(t, err)
			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.msg, apiErr.Error())
		})
	}
}

func TestClient_Match(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/match", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req MatchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `{"a":1}`, string(req.CV))
		assert.JSONEq(t, `{"b":2}`, string(req.JD))
		assert.InDelta(t, 0.5, req.Weights["skills"], 0.0001)
		_, _ = w.Write([]byte(`{"result":{"candidate_name":"John Doe","global_score":0.71,
			"scores":{"title":0.9,"skills":0.6}},"request_id":"m1"}`))
	}))
	defer ts.Close()

	c := New(Params{BaseURL: ts.URL})
	res, err := c.Match(context.Background(), MatchRequest{CV: json.RawMessage(`{"a":1}`),
		JD: json.RawMessage(`{"b":2}`), Weights: Weights{"skills": 0.5}})
	require.NoError(t, err)
	assert.Equal(t, "John Doe", res.Result.CandidateName)
	assert.InDelta(t, 0.71, res.Result.GlobalScore, 0.0001)
	assert.InDelta(t, 0.9, res.Result.Scores.Title, 0.0001)
}

func TestClient_MatchBulkValidation(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"results":[{"index":0,"result":{"global_score":0.5}}],"count":1}`))
	}))
	defer ts.Close()
	c := New(Params{BaseURL: ts.URL})

	_, err := c.MatchBulk(context.Background(), BulkMatchRequest{JD: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, ErrNoCVs)

	cvs := make([]json.RawMessage, MaxBulkCVs+1)
	for i := range cvs {
		cvs[i] = json.RawMessage(`{}`)
	}
	_, err = c.MatchBulk(context.Background(), BulkMatchRequest{JD: json.RawMessage(`{}`), CVs: cvs})
	assert.ErrorIs(t, err, ErrTooManyCVs)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no network calls for invalid requests")

	res, err := c.MatchBulk(context.Background(), BulkMatchRequest{JD: json.RawMessage(`{}`), CVs: cvs[:1]})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.InDelta(t, 0.5, res.Results[0].Result.GlobalScore, 0.0001)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_History(t *testing.T) {
	tbl := []struct {
		limit int
		kind  string
		query string
	}{
		{0, "", "limit=1"},
		{50, "match", "kind=match&limit=50"},
		{1000, "", "limit=500"},
	}
	for _, tt := range tbl {
		t.Run(tt.query, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/history", r.URL.Path)
				assert.Equal(t, tt.query, r.URL.RawQuery)
				_, _ = w.Write([]byte(`{"items":[{"id":"e1","kind":"match","created_at":"2025-03-01T10:00:00.123456+00:00","payload":{}}]}`))
			}))
			defer ts.Close()
			res, err := New(Params{BaseURL: ts.URL}).History(context.Background(), tt.limit, tt.kind)
			require.NoError(t, err)
			require.Len(t, res.Items, 1)
			assert.Equal(t, 2025, res.Items[0].CreatedAt.Year())
		})
	}
}

func TestClient_Users(t *testing.T) {
	var lastMethod, lastPath, lastBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastMethod, lastPath, lastBody = r.Method, r.URL.EscapedPath(), string(body)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users":
			_, _ = w.Write([]byte(`[{"username":"admin","roles":["admin","user"],"display_name":"Administrator"}]`))
		case r.Method == http.MethodDelete:
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			_, _ = w.Write([]byte(`{"username":"bob","roles":["user"],"display_name":"Bob"}`))
		}
	}))
	defer ts.Close()
	c := New(Params{BaseURL: ts.URL, Tokens: staticToken("t")})
	ctx := context.Background()

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin())

	u, err := c.CreateUser(ctx, CreateUserRequest{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, u.IsAdmin())
	assert.Equal(t, "POST", lastMethod)
	assert.JSONEq(t, `{"username":"bob","password":"pw"}`, lastBody)

	name := "Bobby"
	_, err = c.UpdateUser(ctx, "bob smith", UpdateUserRequest{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "PATCH", lastMethod)
	assert.Equal(t, "/users/bob%20smith", lastPath)
	assert.JSONEq(t, `{"display_name":"Bobby"}`, lastBody)

	require.NoError(t, c.DeleteUser(ctx, "bob"))
	assert.Equal(t, "DELETE", lastMethod)

	pw := "new"
	_, err = c.UpdateSelf(ctx, UpdateSelfRequest{Password: &pw})
	require.NoError(t, err)
	assert.Equal(t, "/users/me", lastPath)
}

func TestClient_KPI(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/kpi/load":
			_, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "kpi.pdf", hdr.Filename)
			_, _ = w.Write([]byte(`{"session_id":"s1","pages":3,"bytes":100,"storage_path":"/kpi/s1.pdf","request_id":"r"}`))
		case "/kpi/ask":
			var req map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, map[string]string{"session_id": "s1", "question": "revenue?"}, req)
			_, _ = w.Write([]byte(`{"answer":"42","request_id":"r2"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()
	c := New(Params{BaseURL: ts.URL})

	sess, err := c.KPILoad(context.Background(), Upload{Name: "kpi.pdf", Content: strings.NewReader("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.SessionID)
	assert.Equal(t, 3, sess.Pages)

	ans, err := c.KPIAsk(context.Background(), "s1", "revenue?")
	require.NoError(t, err)
	assert.Equal(t, "42", ans.Answer)
}

func TestClient_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	st := time.Now()
	_, err := New(Params{BaseURL: ts.URL}).GenerateTests(ctx, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(st), 5*time.Second)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "nope", ErrorMessage(400, []byte(`{"detail":"nope"}`)))
	assert.Equal(t, `{"detail":null}`, ErrorMessage(400, []byte(`{"detail":null}`)))
	assert.Equal(t, `{"code":1}`, ErrorMessage(400, []byte(`{"detail":{"code":1}}`)))
	assert.Equal(t, "HTTP 799", ErrorMessage(799, nil))
}
