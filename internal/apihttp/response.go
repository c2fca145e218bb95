package apihttp

import (
	"encoding/json"
	"net/http"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/config"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to its status code (apierrors.StatusCode) and the
// {error, message, details, cause} wire shape (apierrors.ToPayload).
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apierrors.StatusCode(err), apierrors.ToPayload(err))
}

// decodeFormOrJSON supports both an OAuth2-style urlencoded form body (spec
// §6 names the token route as an "OAuth2 password form") and a plain JSON
// body, since the route table otherwise only ever uses JSON.
func decodeFormOrJSON(r *http.Request, dst *tokenRequest) error {
	contentType := r.Header.Get("Content-Type")
	if contentType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return err
		}
		dst.Username = r.PostForm.Get("username")
		dst.Password = r.PostForm.Get("password")
		dst.Scope = r.PostForm.Get("scope")
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

func withCORS(cors config.CORS, next http.Handler) http.Handler {
	origin := "*"
	if len(cors.Origins) > 0 {
		origin = cors.Origins[0]
	}
	methods := "GET,POST,DELETE"
	if len(cors.Methods) > 0 {
		methods = joinCSV(cors.Methods)
	}
	headers := "*"
	if len(cors.Headers) > 0 {
		headers = joinCSV(cors.Headers)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func joinCSV(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		out += item
	}
	return out
}
