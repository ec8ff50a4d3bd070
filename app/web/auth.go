package web

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	log "github.com/go-pkgz/lgr"
)

const (
	authCookie = "atsdesk-auth"
	authUser   = "atsdesk"
)

// handleLogin checks password from JSON body {"password": "..."} or form field and sets auth cookie
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid login request")
			return
		}
		password = req.Password
	} else {
		if err := r.ParseForm(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		password = r.FormValue("password")
	}

	if password == "" {
		s.writeJSONError(w, http.StatusBadRequest, "password is required")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password)); err != nil {
		log.Printf("[WARN] failed login attempt from %s", r.RemoteAddr)
		s.writeJSONError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    s.authToken(),
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout clears the auth cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
	})
	w.WriteHeader(http.StatusNoContent)
}

// authMiddleware checks auth cookie or falls back to basic auth
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			next.ServeHTTP(w, r)
			return
		}

		if cookie, err := r.Cookie(authCookie); err == nil &&
			subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(s.authToken())) == 1 {
			next.ServeHTTP(w, r)
			return
		}

		if username, password, ok := r.BasicAuth(); ok && username == authUser {
			if err := bcrypt.CompareHashAndPassword([]byte(s.PasswordHash), []byte(password)); err == nil {
				next.ServeHTTP(w, r)
				return
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="atsdesk dashboard"`)
		s.writeJSONError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// authToken derives cookie value from the password hash, changing the password invalidates it
func (s *Server) authToken() string {
	h := sha256.Sum256([]byte(s.PasswordHash + "atsdesk-auth-token"))
	return hex.EncodeToString(h[:])
}
