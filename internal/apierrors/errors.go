// Package apierrors implements the service's typed failure hierarchy and its
// mapping to wire-level HTTP status codes.
package apierrors

import (
	"errors"
	"fmt"
)

// Category tags the kind of failure, mirroring the categories in the
// evaluation service's exception hierarchy (plugin, external MCP, routing,
// authentication, configuration, validation).
type Category string

const (
	CategoryPluginNotFound       Category = "plugin_not_found"
	CategoryPluginInit           Category = "plugin_initialization"
	CategoryPluginExecution      Category = "plugin_execution"
	CategoryPluginValidation     Category = "plugin_validation"
	CategoryPluginLoad           Category = "plugin_load"
	CategoryMCPConnection        Category = "mcp_connection"
	CategoryMCPSession           Category = "mcp_session"
	CategoryMCPProtocol          Category = "mcp_protocol"
	CategoryMCPTimeout           Category = "mcp_timeout"
	CategoryExternalProcess      Category = "external_process"
	CategoryNoPluginsAvailable   Category = "no_plugins_available"
	CategoryRoutingDecision      Category = "routing_decision"
	CategoryMultiStepExecution   Category = "multi_step_execution"
	CategoryInvalidCredentials   Category = "invalid_credentials"
	CategoryInactiveUser         Category = "inactive_user"
	CategoryInsufficientScopes   Category = "insufficient_permissions"
	CategoryUserExists           Category = "user_already_exists"
	CategoryConfiguration        Category = "configuration"
	CategoryValidation           Category = "validation"
	CategoryExpressionValidation Category = "expression_validation"
	CategoryProviderAuth         Category = "provider_authentication"
	CategoryProviderRateLimit    Category = "provider_rate_limit"
	CategoryProviderUpstream     Category = "provider_upstream"
	CategoryProviderTimeout      Category = "provider_timeout"
	CategoryProviderGeneric      Category = "provider_error"
)

// Error is the base typed error, carrying the category the API layer maps
// to an HTTP status. The LLM factory and adapters return plain wrapped
// errors in some failure paths.
type Error struct {
	Category Category
	Message  string
	Details  map[string]interface{}
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, apierrors.New(cat, "", nil, nil)) match on category alone
// when Details/Cause are irrelevant to the caller.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Category == t.Category
}

func New(category Category, message string, details map[string]interface{}, cause error) *Error {
	return &Error{Category: category, Message: message, Details: details, Cause: cause}
}

func PluginNotFound(name string) *Error {
	return New(CategoryPluginNotFound, fmt.Sprintf("plugin %q not found", name),
		map[string]interface{}{"plugin_name": name}, nil)
}

func PluginInitialization(name, reason string, cause error) *Error {
	return New(CategoryPluginInit, fmt.Sprintf("plugin %q failed to initialize: %s", name, reason),
		map[string]interface{}{"plugin_name": name}, cause)
}

func PluginExecution(name, action, reason string, cause error) *Error {
	return New(CategoryPluginExecution, fmt.Sprintf("plugin %q action %q failed: %s", name, action, reason),
		map[string]interface{}{"plugin_name": name, "action": action}, cause)
}

func PluginValidation(name string, validationErrors map[string]interface{}) *Error {
	return New(CategoryPluginValidation, fmt.Sprintf("plugin %q request validation failed", name),
		validationErrors, nil)
}

func PluginLoad(name, reason string, cause error) *Error {
	return New(CategoryPluginLoad, fmt.Sprintf("plugin %q failed to load: %s", name, reason),
		map[string]interface{}{"plugin_name": name}, cause)
}

func MCPConnection(serverURL, reason string, cause error) *Error {
	return New(CategoryMCPConnection, fmt.Sprintf("cannot reach MCP server %s: %s", serverURL, reason),
		map[string]interface{}{"server_url": serverURL}, cause)
}

func MCPSession(operation, reason, sessionID string) *Error {
	details := map[string]interface{}{"operation": operation}
	if sessionID != "" {
		details["session_id"] = sessionID
	}
	return New(CategoryMCPSession, fmt.Sprintf("MCP session error during %s: %s", operation, reason), details, nil)
}

func MCPProtocol(method, reason string, response map[string]interface{}) *Error {
	return New(CategoryMCPProtocol, fmt.Sprintf("MCP protocol error in %s: %s", method, reason),
		map[string]interface{}{"method": method, "response": response}, nil)
}

func MCPTimeout(operation string, timeoutSeconds int) *Error {
	return New(CategoryMCPTimeout, fmt.Sprintf("MCP operation %s timed out after %ds", operation, timeoutSeconds),
		map[string]interface{}{"operation": operation, "timeout_seconds": timeoutSeconds}, nil)
}

func ExternalProcess(command, reason string, exitCode *int) *Error {
	details := map[string]interface{}{"command": command}
	if exitCode != nil {
		details["exit_code"] = *exitCode
	}
	return New(CategoryExternalProcess, fmt.Sprintf("external process %q failed: %s", command, reason), details, nil)
}

func NoPluginsAvailable() *Error {
	return New(CategoryNoPluginsAvailable, "no plugins are available to handle this query", nil, nil)
}

func RoutingDecision(query, reason string, cause error) *Error {
	return New(CategoryRoutingDecision, fmt.Sprintf("could not route query: %s", reason),
		map[string]interface{}{"query": query}, cause)
}

func MultiStepExecution(stepIndex, totalSteps int, reason string) *Error {
	return New(CategoryMultiStepExecution, fmt.Sprintf("multi-step plan failed at step %d/%d: %s", stepIndex+1, totalSteps, reason),
		map[string]interface{}{"step_index": stepIndex, "total_steps": totalSteps}, nil)
}

func InvalidCredentials(username string) *Error {
	return New(CategoryInvalidCredentials, "invalid username or password",
		map[string]interface{}{"username": username}, nil)
}

func InactiveUser(username string) *Error {
	return New(CategoryInactiveUser, fmt.Sprintf("user %q is inactive", username),
		map[string]interface{}{"username": username}, nil)
}

func InsufficientPermissions(required, actual []string) *Error {
	return New(CategoryInsufficientScopes, "insufficient permissions for this operation",
		map[string]interface{}{"required_scopes": required, "user_scopes": actual}, nil)
}

func UserAlreadyExists(username string) *Error {
	return New(CategoryUserExists, fmt.Sprintf("user %q already exists", username),
		map[string]interface{}{"username": username}, nil)
}

func Configuration(key, reason string) *Error {
	return New(CategoryConfiguration, fmt.Sprintf("configuration error for %q: %s", key, reason),
		map[string]interface{}{"config_key": key}, nil)
}

func Validation(field string, value interface{}, reason string) *Error {
	return New(CategoryValidation, fmt.Sprintf("validation failed for %q: %s", field, reason),
		map[string]interface{}{"field": field, "value": value}, nil)
}

func ExpressionValidation(expression, reason string) *Error {
	return New(CategoryExpressionValidation, reason,
		map[string]interface{}{"expression": expression}, nil)
}

// ProviderAuth wraps an LLM provider's 401 response.
func ProviderAuth(provider string, cause error) *Error {
	return New(CategoryProviderAuth, fmt.Sprintf("provider %q rejected credentials", provider),
		map[string]interface{}{"provider": provider}, cause)
}

// ProviderRateLimit wraps an LLM provider's 429 response.
func ProviderRateLimit(provider string, cause error) *Error {
	return New(CategoryProviderRateLimit, fmt.Sprintf("provider %q rate-limited the request", provider),
		map[string]interface{}{"provider": provider}, cause)
}

// ProviderUpstream wraps an LLM provider's 5xx response.
func ProviderUpstream(provider string, statusCode int, cause error) *Error {
	return New(CategoryProviderUpstream, fmt.Sprintf("provider %q upstream error (%d)", provider, statusCode),
		map[string]interface{}{"provider": provider, "status_code": statusCode}, cause)
}

// ProviderTimeout wraps a timed-out provider request.
func ProviderTimeout(provider string, cause error) *Error {
	return New(CategoryProviderTimeout, fmt.Sprintf("provider %q request timed out", provider),
		map[string]interface{}{"provider": provider}, cause)
}

// ProviderGeneric wraps any other non-2xx provider response, carrying the
// decoded response body.
func ProviderGeneric(provider string, statusCode int, body string) *Error {
	return New(CategoryProviderGeneric, fmt.Sprintf("provider %q returned status %d", provider, statusCode),
		map[string]interface{}{"provider": provider, "status_code": statusCode, "body": body}, nil)
}

// As is a small convenience wrapper around errors.As for the common case of
// pulling an *Error out of an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a category to the wire-level status code from spec §6.
func HTTPStatus(category Category) int {
	switch category {
	case CategoryPluginNotFound:
		return 404
	case CategoryPluginValidation, CategoryValidation:
		return 400
	case CategoryMCPConnection, CategoryNoPluginsAvailable:
		return 503
	case CategoryMCPProtocol:
		return 502
	case CategoryMCPTimeout:
		return 504
	case CategoryInvalidCredentials:
		return 401
	case CategoryInactiveUser, CategoryInsufficientScopes:
		return 403
	case CategoryUserExists:
		return 409
	case CategoryConfiguration, CategoryPluginExecution, CategoryPluginInit, CategoryRoutingDecision:
		return 500
	case CategoryProviderAuth:
		return 401
	case CategoryProviderRateLimit:
		return 429
	case CategoryProviderUpstream, CategoryProviderGeneric:
		return 502
	case CategoryProviderTimeout:
		return 504
	default:
		return 500
	}
}

// StatusCode returns the HTTP status for any error, falling back to 500 for
// errors that are not *Error.
func StatusCode(err error) int {
	if e, ok := As(err); ok {
		return HTTPStatus(e.Category)
	}
	return 500
}

// Payload is the `{error, message, details, cause?}` JSON shape from spec §7.
type Payload struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   string                 `json:"cause,omitempty"`
}

// ToPayload converts any error into the wire JSON shape.
func ToPayload(err error) Payload {
	e, ok := As(err)
	if !ok {
		return Payload{Error: "InternalError", Message: err.Error()}
	}
	p := Payload{Error: string(e.Category), Message: e.Message, Details: e.Details}
	if e.Cause != nil {
		p.Cause = e.Cause.Error()
	}
	return p
}
