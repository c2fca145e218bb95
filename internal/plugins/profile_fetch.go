package plugins

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/taipm/evalrouter/internal/apierrors"
	"github.com/taipm/evalrouter/internal/config"
	"github.com/taipm/evalrouter/internal/logging"
	"github.com/taipm/evalrouter/internal/mcpclient"
	"github.com/taipm/evalrouter/internal/plugin"
	"github.com/taipm/evalrouter/internal/procsup"
)

func init() {
	plugin.RegisterPluginConstructor("linkedin_external", func() plugin.Plugin { return NewProfileFetchPlugin() })
}

// allowedProfileTools is the whitelist of external tool names the plugin
// will forward a call to. Anything else is rejected even if the external
// server happens to expose it.
var allowedProfileTools = map[string]bool{
	"get_person_profile":  true,
	"get_company_profile": true,
}

// ProfileFetchPlugin manages an external LinkedIn-scraping MCP server
// (via procsup/C3) and talks to it through the MCP client (C2). In Docker
// mode it connects to a pre-existing server instead of spawning one.
type ProfileFetchPlugin struct {
	cookie     string
	serverURL  string
	supervisor *procsup.Supervisor
	client     *mcpclient.Client
	logger     logging.Logger
}

func NewProfileFetchPlugin() *ProfileFetchPlugin {
	return &ProfileFetchPlugin{logger: logging.Noop{}}
}

func (p *ProfileFetchPlugin) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "linkedin_external",
		Version:     "1.0.0",
		Description: "Profile and company scraper via an external MCP server",
		Author:      "core",
		Capabilities: []string{
			"scrape_profile", "get_profile", "profile",
			"scrape_company", "get_company", "company",
		},
		OptionalParameters: map[string]string{
			"linkedin_username": "explicit username, overrides URL parsing",
			"profile":           "profile URL or username",
			"url":               "profile URL",
			"company_name":      "company name for company actions",
			"get_employees":     "whether to also fetch the employee list",
		},
	}
}

// Initialize reads the session cookie, then either connects to a
// pre-existing server (Docker mode) or spawns one via procsup, passing the
// cookie as a CLI flag plus --no-lazy-init so an invalid cookie fails fast.
func (p *ProfileFetchPlugin) Initialize(ctx context.Context, cfg map[string]interface{}) error {
	if v, ok := cfg["linkedin_cookie"].(string); ok && v != "" {
		p.cookie = v
	}
	settings := config.Load()
	if p.cookie == "" {
		p.cookie = settings.Profile.Cookie
	}
	if p.cookie == "" {
		return apierrors.Configuration("linkedin_cookie", "LINKEDIN_COOKIE environment variable is required")
	}

	if settings.Profile.DockerEnv {
		p.serverURL = settings.Profile.ExternalServerURL
		if p.serverURL == "" {
			return apierrors.Configuration("LINKEDIN_EXTERNAL_SERVER_URL", "required when DOCKER_ENV=true")
		}
	} else {
		serverPath, err := findLinkedInServer()
		if err != nil {
			return apierrors.Configuration("linkedin_server_path", err.Error())
		}
		host, port := "127.0.0.1", 9901
		p.supervisor = procsup.New(serverPath, []string{
			"run",
			"--transport", "streamable-http",
			"--host", host,
			"--port", fmt.Sprintf("%d", port),
			"--cookie", p.cookie,
			"--no-lazy-init",
		}, host, port, p.logger)
		p.serverURL = p.supervisor.ServerURL()
	}

	p.client = mcpclient.New(p.serverURL, mcpclient.DefaultTimeout, mcpclient.DefaultMaxRetries, mcpclient.WithLogger(p.logger))

	if p.supervisor != nil {
		if err := p.supervisor.Start(ctx, p.client, 30*time.Second); err != nil {
			return apierrors.PluginInitialization("linkedin_external", "failed to start external server", err)
		}
	}

	if err := p.client.InitializeSession(ctx); err != nil {
		p.logger.Warn(ctx, "profile-fetch session init deferred to first request", logging.F("error", err.Error()))
	}

	return nil
}

func (p *ProfileFetchPlugin) ValidateRequest(req *plugin.Request) error {
	return nil
}

func (p *ProfileFetchPlugin) Execute(ctx context.Context, req *plugin.Request) (*plugin.Response, error) {
	if p.client == nil {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: "plugin not initialized"}, nil
	}

	if !p.client.HealthCheck(ctx) && p.supervisor != nil {
		p.logger.Warn(ctx, "profile-fetch health check failed, reinitializing session")
		p.client.Close(ctx)
	}

	toolName, toolArgs, err := p.resolveToolCall(req)
	if err != nil {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
	}

	if !allowedProfileTools[toolName] {
		return &plugin.Response{
			RequestID: req.RequestID, Status: plugin.StatusError,
			Error: fmt.Sprintf("tool %q is not allowed", toolName),
		}, nil
	}

	resp, err := p.client.CallTool(ctx, toolName, toolArgs)
	if err != nil {
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: err.Error()}, nil
	}

	if resp.IsError {
		text := extractTextContent(resp.Content)
		if looksLikeLoginFailure(text) {
			text += " (hint: the session cookie may have expired; refresh LINKEDIN_COOKIE)"
		}
		return &plugin.Response{RequestID: req.RequestID, Status: plugin.StatusError, Error: "external MCP error: " + text}, nil
	}

	return &plugin.Response{
		RequestID: req.RequestID,
		Status:    plugin.StatusSuccess,
		Data:      extractTextContent(resp.Content),
		Metadata:  map[string]interface{}{"external_tool": toolName, "external_server": p.serverURL},
	}, nil
}

func (p *ProfileFetchPlugin) Shutdown(ctx context.Context) error {
	if p.client != nil {
		p.client.Close(ctx)
	}
	if p.supervisor != nil {
		return p.supervisor.Stop(ctx)
	}
	return nil
}

func (p *ProfileFetchPlugin) resolveToolCall(req *plugin.Request) (string, map[string]interface{}, error) {
	action := strings.ToLower(req.Action)

	switch action {
	case "get_person_profile":
		username, _ := req.Parameters["linkedin_username"].(string)
		if username == "" {
			return "", nil, apierrors.Validation("linkedin_username", nil, "missing required parameter: linkedin_username")
		}
		return "get_person_profile", map[string]interface{}{"linkedin_username": username}, nil

	case "scrape_profile", "get_profile", "profile":
		username, _ := req.Parameters["linkedin_username"].(string)
		if username == "" {
			profileInput, _ := req.Parameters["profile"].(string)
			if profileInput == "" {
				profileInput, _ = req.Parameters["url"].(string)
			}
			if profileInput == "" {
				profileInput, _ = req.Parameters["username"].(string)
			}
			if profileInput == "" {
				return "", nil, apierrors.Validation("profile", nil, "profile URL or username is required")
			}
			username = extractUsernameFromURL(profileInput)
			if username == "" {
				username = profileInput
			}
		}
		return "get_person_profile", map[string]interface{}{"linkedin_username": username}, nil

	case "scrape_company", "get_company", "company":
		companyName, _ := req.Parameters["company_name"].(string)
		if companyName == "" {
			return "", nil, apierrors.Validation("company_name", nil, "company_name parameter is required for company scraping")
		}
		args := map[string]interface{}{"company_name": companyName}
		if getEmployees, ok := req.Parameters["get_employees"].(bool); ok && getEmployees {
			args["get_employees"] = true
		}
		return "get_company_profile", args, nil

	default:
		return "", nil, apierrors.Validation("action", req.Action, "could not determine scraping type")
	}
}

func extractUsernameFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "in" {
		return parts[1]
	}
	return ""
}

func extractTextContent(content []map[string]interface{}) string {
	var b strings.Builder
	for _, part := range content {
		if text, ok := part["text"].(string); ok {
			b.WriteString(text)
		}
	}
	return b.String()
}

func looksLikeLoginFailure(text string) bool {
	lowered := strings.ToLower(text)
	return strings.Contains(lowered, "login") || strings.Contains(lowered, "authenticat") || strings.Contains(lowered, "unauthorized")
}

func findLinkedInServer() (string, error) {
	candidates := []string{
		"external/linkedin-mcp-server/main",
		"external/linkedin-mcp-server/linkedin-mcp-server",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("linkedin MCP server not found in expected locations: %v", candidates)
}
