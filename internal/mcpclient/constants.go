package mcpclient

import "time"

const (
	protocolVersion = "2024-11-05"
	clientName      = "external-mcp-client"
	clientVersion   = "1.0.0"

	endpointPath = "/mcp/"

	methodInitialize  = "initialize"
	methodInitialized = "notifications/initialized"
	methodListTools   = "tools/list"
	methodCallTool    = "tools/call"

	headerSessionID = "mcp-session-id"
	headerAccept    = "Accept"

	acceptSSE         = "application/json, text/event-stream"
	acceptEventStream = "text/event-stream"

	jsonrpcVersion   = "2.0"
	defaultRequestID = 1

	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

var healthyStatusCodes = map[int]bool{200: true, 400: true, 405: true, 406: true}
var notificationSuccessCodes = map[int]bool{200: true, 202: true}
