// Package api implements client for the ATS backend HTTP API.
// All calls take context and abort the in-flight request when the context is canceled.
// Non-2xx responses are returned as *Error with the message extracted from the response body.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
)

// MaxBulkCVs is the backend limit for a single bulk match request
const MaxBulkCVs = 100

var (
	// ErrNoCVs returned by MatchBulk called without CVs
	ErrNoCVs = errors.New("at least one CV is required")
	// ErrTooManyCVs returned by MatchBulk called with more than MaxBulkCVs
	ErrTooManyCVs = fmt.Errorf("too many CVs; max allowed is %d", MaxBulkCVs)
)

// TokenProvider returns bearer token for requests, empty string for anonymous calls
type TokenProvider interface {
	Token() string
}

// Params to make Client
type Params struct {
	BaseURL    string
	Timeout    time.Duration // per-request timeout, 0 means no timeout (parsing may take long)
	HTTPClient *http.Client  // optional, made from Timeout if nil
	Tokens     TokenProvider // optional
}

// Client talks to the backend
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
}

// Upload is a named file sent as multipart "file" field
type Upload struct {
	Name    string
	Content io.Reader
}

// Error is a non-2xx backend response
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// New makes Client
func New(p Params) *Client {
	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: p.Timeout}
	}
	return &Client{baseURL: strings.TrimSuffix(p.BaseURL, "/"), http: hc, tokens: p.Tokens}
}

// Health checks backend status
func (c *Client) Health(ctx context.Context) (res HealthResponse, err error) {
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &res)
	return res, err
}

// ParseCV uploads CV document for parsing
func (c *Client) ParseCV(ctx context.Context, u Upload) (res CVParseResponse, err error) {
	err = c.doUpload(ctx, "/cv/parse", u, &res)
	return res, err
}

// ParseJD uploads job description document for parsing
func (c *Client) ParseJD(ctx context.Context, u Upload) (res JDParseResponse, err error) {
	err = c.doUpload(ctx, "/jd/parse", u, &res)
	return res, err
}

// Match scores one parsed CV against parsed JD
func (c *Client) Match(ctx context.Context, req MatchRequest) (res MatchResponse, err error) {
	err = c.doJSON(ctx, http.MethodPost, "/match", req, &res)
	return res, err
}

// MatchBulk scores many parsed CVs against one parsed JD
func (c *Client) MatchBulk(ctx context.Context, req BulkMatchRequest) (res BulkMatchResponse, err error) {
	if len(req.CVs) == 0 {
		return res, ErrNoCVs
	}
	if len(req.CVs) > MaxBulkCVs {
		return res, ErrTooManyCVs
	}
	err = c.doJSON(ctx, http.MethodPost, "/match/bulk", req, &res)
	return res, err
}

// GenerateTests makes interview questions for parsed JD
func (c *Client) GenerateTests(ctx context.Context, jd json.RawMessage) (res TestsResponse, err error) {
	body := struct {
		JD json.RawMessage `json:"jd"`
	}{JD: jd}
	err = c.doJSON(ctx, http.MethodPost, "/tests/generate", body, &res)
	return res, err
}

// History returns recent backend events, newest first. Limit is clamped to 1..500, kind is optional filter.
func (c *Client) History(ctx context.Context, limit int, kind string) (res HistoryResponse, err error) {
	limit = max(1, min(limit, 500))
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if kind != "" {
		q.Set("kind", kind)
	}
	err = c.doJSON(ctx, http.MethodGet, "/history?"+q.Encode(), nil, &res)
	return res, err
}

// DashboardSummary returns event counts and recent events per kind
func (c *Client) DashboardSummary(ctx context.Context) (res SummaryResponse, err error) {
	err = c.doJSON(ctx, http.MethodGet, "/dashboard/summary", nil, &res)
	return res, err
}

// KPILoad uploads KPI pdf and opens chat session
func (c *Client) KPILoad(ctx context.Context, u Upload) (res KPISession, err error) {
	err = c.doUpload(ctx, "/kpi/load", u, &res)
	return res, err
}

// KPIAsk asks question in KPI chat session
func (c *Client) KPIAsk(ctx context.Context, sessionID, question string) (res KPIAnswer, err error) {
	body := struct {
		SessionID string `json:"session_id"`
		Question  string `json:"question"`
	}{SessionID: sessionID, Question: question}
	err = c.doJSON(ctx, http.MethodPost, "/kpi/ask", body, &res)
	return res, err
}

// Login exchanges credentials for a session token
func (c *Client) Login(ctx context.Context, username, password string) (res LoginResponse, err error) {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}
	err = c.doJSON(ctx, http.MethodPost, "/login", body, &res)
	return res, err
}

// ListUsers returns all accounts, admin only
func (c *Client) ListUsers(ctx context.Context) (res []User, err error) {
	err = c.doJSON(ctx, http.MethodGet, "/users", nil, &res)
	return res, err
}

// CreateUser adds account, admin only
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (res User, err error) {
	err = c.doJSON(ctx, http.MethodPost, "/users", req, &res)
	return res, err
}

// UpdateUser changes account, admin only
func (c *Client) UpdateUser(ctx context.Context, username string, req UpdateUserRequest) (res User, err error) {
	err = c.doJSON(ctx, http.MethodPatch, "/users/"+url.PathEscape(username), req, &res)
	return res, err
}

// DeleteUser removes account, admin only
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	return c.doJSON(ctx, http.MethodDelete, "/users/"+url.PathEscape(username), nil, nil)
}

// UpdateSelf changes password or display name of the logged-in user
func (c *Client) UpdateSelf(ctx context.Context, req UpdateSelfRequest) (res User, err error) {
	err = c.doJSON(ctx, http.MethodPatch, "/users/me", req, &res)
	return res, err
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, res any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("can't encode request for %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("can't make request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, res)
}

func (c *Client) doUpload(ctx context.Context, path string, u Upload, res any) error {
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", u.Name)
	if err != nil {
		return fmt.Errorf("can't make multipart for %s: %w", u.Name, err)
	}
	if _, err = io.Copy(part, u.Content); err != nil {
		return fmt.Errorf("can't read %s: %w", u.Name, err)
	}
	if err = mw.Close(); err != nil {
		return fmt.Errorf("can't close multipart for %s: %w", u.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("can't make request POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, res)
}

// do sends request, decodes JSON body of 2xx response into res (if not nil)
// and converts any other status to *Error
func (c *Client) do(req *http.Request, res any) error {
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	st := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	log.Printf("[DEBUG] %s %s -> %d in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(st).Round(time.Millisecond))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("can't read response of %s %s: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Message: ErrorMessage(resp.StatusCode, body)}
	}

	if res == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, res); err != nil {
		return fmt.Errorf("can't decode response of %s %s: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

// ErrorMessage extracts displayable message from error response body.
// Uses "detail" field of JSON body (string or list of validation errors), falls back to the raw text
// and to the status text for empty body.
func ErrorMessage(status int, body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Detail) > 0 {
		var s string
		if err := json.Unmarshal(parsed.Detail, &s); err == nil && s != "" {
			return s
		}
		var list []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(parsed.Detail, &list); err == nil && len(list) > 0 {
			msgs := make([]string, 0, len(list))
			for _, v := range list {
				if v.Msg != "" {
					msgs = append(msgs, v.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
		if string(parsed.Detail) != "null" {
			return string(parsed.Detail)
		}
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	if st := http.StatusText(status); st != "" {
		return fmt.Sprintf("%d %s", status, st)
	}
	return "HTTP " + strconv.Itoa(status)
}
