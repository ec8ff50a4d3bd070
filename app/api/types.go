package api

import (
	"encoding/json"
	"time"
)

// Weights overrides backend matching weights, keys are component names (title, skills,
// certifications, experience, location)
type Weights map[string]float64

// DefaultWeights are the weights the backend applies when none are passed
func DefaultWeights() Weights {
	return Weights{"title": 0.25, "skills": 0.25, "certifications": 0.15, "experience": 0.20, "location": 0.05}
}

// StoragePaths are backend-side locations of persisted artifacts
type StoragePaths struct {
	RawPath  string `json:"raw_path,omitempty"`
	JSONPath string `json:"json_path,omitempty"`
	Path     string `json:"path,omitempty"`
}

// HealthResponse from GET /health
type HealthResponse struct {
	Status string          `json:"status"`
	Env    map[string]bool `json:"env"`
	Routes []string        `json:"routes"`
}

// CVParseResponse from POST /cv/parse
type CVParseResponse struct {
	CV         json.RawMessage `json:"cv"`
	Evaluation json.RawMessage `json:"evaluation,omitempty"`
	RequestID  string          `json:"request_id"`
	Storage    StoragePaths    `json:"storage"`
}

// JDParseResponse from POST /jd/parse
type JDParseResponse struct {
	JD         json.RawMessage `json:"jd"`
	Evaluation json.RawMessage `json:"evaluation,omitempty"`
	RequestID  string          `json:"request_id"`
	Storage    StoragePaths    `json:"storage"`
}

// MatchRequest is the body of POST /match
type MatchRequest struct {
	CV      json.RawMessage `json:"cv"`
	JD      json.RawMessage `json:"jd"`
	Weights Weights         `json:"weights,omitempty"`
}

// Scores are per-component similarity scores, 0..1
type Scores struct {
	Title          float64 `json:"title"`
	Skills         float64 `json:"skills"`
	Certifications float64 `json:"certifications"`
	Experience     float64 `json:"experience"`
	Location       float64 `json:"location"`
}

// MatchResult is a single CV vs JD score
type MatchResult struct {
	CandidateName string  `json:"candidate_name"`
	CVTitle       string  `json:"cv_title"`
	JDTitle       string  `json:"jd_title"`
	Scores        Scores  `json:"scores"`
	GlobalScore   float64 `json:"global_score"`
}

// MatchResponse from POST /match
type MatchResponse struct {
	Result    MatchResult `json:"result"`
	RequestID string      `json:"request_id"`
}

// BulkMatchRequest is the body of POST /match/bulk
type BulkMatchRequest struct {
	CVs     []json.RawMessage `json:"cvs"`
	JD      json.RawMessage   `json:"jd"`
	Weights Weights           `json:"weights,omitempty"`
}

// BulkMatchItem is the result for CV at Index of the request
type BulkMatchItem struct {
	Index  int         `json:"index"`
	Result MatchResult `json:"result"`
}

// BulkMatchResponse from POST /match/bulk
type BulkMatchResponse struct {
	Results   []BulkMatchItem `json:"results"`
	Count     int             `json:"count"`
	RequestID string          `json:"request_id"`
}

// TestsResponse from POST /tests/generate
type TestsResponse struct {
	Questions []Question   `json:"questions"`
	RequestID string       `json:"request_id"`
	Storage   StoragePaths `json:"storage"`
}

// Question is a single generated interview question
type Question struct {
	Question string `json:"question"`
}

// HistoryEvent is a backend activity record
type HistoryEvent struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// HistoryResponse from GET /history
type HistoryResponse struct {
	Items []HistoryEvent `json:"items"`
}

// SummaryResponse from GET /dashboard/summary
type SummaryResponse struct {
	Counts  map[string]int            `json:"counts"`
	Recents map[string][]HistoryEvent `json:"recents"`
}

// KPISession from POST /kpi/load
type KPISession struct {
	SessionID   string `json:"session_id"`
	Pages       int    `json:"pages"`
	Bytes       int64  `json:"bytes"`
	StoragePath string `json:"storage_path"`
	RequestID   string `json:"request_id"`
}

// KPIAnswer from POST /kpi/ask
type KPIAnswer struct {
	Answer    string `json:"answer"`
	RequestID string `json:"request_id"`
}

// User is a backend account
type User struct {
	Username    string   `json:"username"`
	Roles       []string `json:"roles"`
	DisplayName string   `json:"display_name"`
}

// IsAdmin checks for admin role
func (u User) IsAdmin() bool {
	for _, r := range u.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// LoginResponse from POST /login
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CreateUserRequest is the body of POST /users
type CreateUserRequest struct {
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// UpdateUserRequest is the body of PATCH /users/{username}, nil fields are left unchanged
type UpdateUserRequest struct {
	NewUsername *string  `json:"new_username,omitempty"`
	Password    *string  `json:"password,omitempty"`
	DisplayName *string  `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

// UpdateSelfRequest is the body of PATCH /users/me
type UpdateSelfRequest struct {
	Password    *string `json:"password,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
}
