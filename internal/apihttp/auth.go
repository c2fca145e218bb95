package apihttp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taipm/evalrouter/internal/apierrors"
)

// Token issuance, scope checks, and credential storage are an explicit
// non-goal (spec §1): there is no user store anywhere in this module. What
// follows is the minimal bearer-token gate the non-goal still requires
// something to exist behind — an HMAC-signed opaque token keyed on
// Auth.SecretKey, not OAuth2. See DESIGN.md for why this, and not a JWT
// library, backs it (none of the example repos import one).

const adminScope = "admin"

func (s *Server) signToken(subject, scope string, expires time.Time) string {
	payload := fmt.Sprintf("%s|%s|%d", subject, scope, expires.Unix())
	mac := hmac.New(sha256.New, []byte(s.settings.Auth.SecretKey))
	mac.Write([]byte(payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(payload)) + "." + sig
}

func (s *Server) verifyToken(token string) (subject, scope string, err error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", "", apierrors.InvalidCredentials("")
	}

	rawPayload, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", apierrors.InvalidCredentials("")
	}

	mac := hmac.New(sha256.New, []byte(s.settings.Auth.SecretKey))
	mac.Write(rawPayload)
	wantSig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(wantSig), []byte(parts[1])) {
		return "", "", apierrors.InvalidCredentials("")
	}

	fields := strings.SplitN(string(rawPayload), "|", 3)
	if len(fields) != 3 {
		return "", "", apierrors.InvalidCredentials("")
	}
	expiresUnix, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return "", "", apierrors.InvalidCredentials("")
	}
	if time.Now().After(time.Unix(expiresUnix, 0)) {
		return "", "", apierrors.InvalidCredentials(fields[0])
	}

	return fields[0], fields[1], nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// requireAuth gates a handler behind any valid, unexpired bearer token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apierrors.InvalidCredentials(""))
			return
		}
		if _, _, err := s.verifyToken(token); err != nil {
			writeError(w, err)
			return
		}
		next(w, r)
	}
}

// requireAdmin gates a handler behind a bearer token carrying the admin
// scope, per spec §6's "admin scope" note on the plugin-reload route.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apierrors.InvalidCredentials(""))
			return
		}
		subject, scope, err := s.verifyToken(token)
		if err != nil {
			writeError(w, err)
			return
		}
		if scope != adminScope {
			writeError(w, apierrors.InsufficientPermissions([]string{adminScope}, []string{scope}))
			return
		}
		_ = subject
		next(w, r)
	}
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Scope    string `json:"scope"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleAuthToken issues a bearer token for any non-empty username/password
// pair. Real credential verification (a user store, password hashing) is out
// of scope; this exists only so the bearer-token gate above has something
// upstream of it to issue tokens, matching the route spec §6 requires.
func (s *Server) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeFormOrJSON(r, &req); err != nil {
		writeError(w, apierrors.Validation("body", nil, "could not parse credentials"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, apierrors.InvalidCredentials(req.Username))
		return
	}

	scope := req.Scope
	if scope == "" {
		scope = "user"
	}
	expires := time.Now().Add(s.settings.Auth.AccessTokenExpires)
	token := s.signToken(req.Username, scope, expires)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.settings.Auth.AccessTokenExpires.Seconds()),
	})
}
