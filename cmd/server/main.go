package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taipm/evalrouter/internal/apihttp"
	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/evaluator"
	"github.com/taipm/evalrouter/internal/llm"
	"github.com/taipm/evalrouter/internal/pluginmgr"
	_ "github.com/taipm/evalrouter/internal/plugins"
	"github.com/taipm/evalrouter/internal/prompt"
	"github.com/taipm/evalrouter/internal/router"
)

func main() {
	settings := config.Load()

	llmf := llm.NewFactory()
	plugins := pluginmgr.NewManager()

	prompts, err := prompt.NewRegistry("internal/prompt/templates")
	if err != nil {
		log.Fatalf("loading prompt templates: %v", err)
	}

	eval := evaluator.New(plugins, prompts, llmf, settings)

	routerVendor := settings.OpenAI
	if settings.LLM.Provider == "anthropic" {
		routerVendor = settings.Anthropic
	}
	routerAdapter, err := llmf.Get(settings.LLM.Provider, routerVendor.APIKey, "", settings.LLM.Timeout)
	if err != nil {
		log.Fatalf("building router adapter: %v", err)
	}
	rt := router.New(plugins, routerAdapter, settings.LLM.Model)

	server := apihttp.New(plugins, llmf, eval, rt, settings)

	addr := ":" + envOr("PORT", "8080")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := plugins.ShutdownAll(ctx); err != nil {
		log.Printf("plugin shutdown error: %v", err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
