// Package apihttp implements the HTTP surface (the route table from spec §6):
// a thin stdlib net/http layer over the core components (plugin manager,
// evaluator, router, LLM factory). No web framework is introduced — the
// teacher module carries none either, so this follows its example and wires
// routing through the standard library's pattern-matching ServeMux.
package apihttp

import (
	"log"
	"net/http"
	"time"

	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/evaluator"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/pluginmgr"
	"github.com/taipm/evalrouter/internal/router"
)

// Server bundles the core components the HTTP handlers dispatch into.
type Server struct {
	plugins   *pluginmgr.Manager
	llmf      *llm.Factory
	evaluator *evaluator.Evaluator
	router    *router.Router
	settings  config.Config
}

// New builds a Server from the already-constructed core components.
func New(plugins *pluginmgr.Manager, llmf *llm.Factory, eval *evaluator.Evaluator, rt *router.Router, settings config.Config) *Server {
	return &Server{plugins: plugins, llmf: llmf, evaluator: eval, router: rt, settings: settings}
}

// Handler builds the full route table from spec §6 and wraps it with the
// ambient request-logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/v1/auth/token", s.handleAuthToken)

	mux.HandleFunc("POST /api/v1/llm/openai", s.requireAuth(s.handleLLMProxy("openai")))
	mux.HandleFunc("POST /api/v1/llm/anthropic", s.requireAuth(s.handleLLMProxy("anthropic")))
	mux.HandleFunc("POST /api/v1/llm/evaluate", s.requireAuth(s.handleEvaluate))

	mux.HandleFunc("POST /api/v1/query", s.requireAuth(s.handleQuery))
	mux.HandleFunc("POST /api/v1/query/analyze", s.requireAuth(s.handleQueryAnalyze))

	mux.HandleFunc("GET /api/v1/plugins", s.requireAuth(s.handleListPlugins))
	mux.HandleFunc("GET /api/v1/plugins/{name}", s.requireAuth(s.handlePluginDetail))
	mux.HandleFunc("POST /api/v1/plugins/{name}/execute", s.requireAuth(s.handlePluginExecute))

	mux.HandleFunc("POST /api/v1/admin/plugins/reload", s.requireAdmin(s.handleReloadPlugins))
	mux.HandleFunc("DELETE /api/v1/admin/plugins/{name}", s.requireAdmin(s.handleUnloadPlugin))

	return withCORS(s.settings.CORS, withRequestLog(mux))
}

func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
