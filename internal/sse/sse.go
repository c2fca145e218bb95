// Package sse decodes the Server-Sent-Event framing that MCP servers use to
// carry a single JSON-RPC response back to the caller.
package sse

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrEmpty is returned by ParseEvent when given empty input.
var ErrEmpty = errors.New("sse: empty text")

// ParseEvent splits raw SSE text into its event name and decoded data object.
// A data line that fails to decode as JSON is wrapped as {"raw": <line>}
// rather than failing the whole parse.
func ParseEvent(text string) (eventType string, data map[string]interface{}, err error) {
	if text == "" {
		return "", nil, ErrEmpty
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(normalized, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimSpace(line[len("event: "):])
		case strings.HasPrefix(line, "data: "):
			dataLine := strings.TrimSpace(line[len("data: "):])
			if dataLine == "" {
				continue
			}
			var decoded map[string]interface{}
			if jsonErr := json.Unmarshal([]byte(dataLine), &decoded); jsonErr != nil {
				data = map[string]interface{}{"raw": dataLine}
			} else {
				data = decoded
			}
		}
	}

	return eventType, data, nil
}

// ExtractMCPResponse parses the SSE frame and returns the decoded data object.
// The event type is expected to be "message"; any other value is tolerated
// (the data is still returned), matching the lenient behavior of the source
// this parser is ported from.
func ExtractMCPResponse(text string) (map[string]interface{}, error) {
	_, data, err := ParseEvent(text)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, errors.New("sse: no data found in SSE response")
	}
	return data, nil
}

// ParseMCPResult classifies a decoded MCP response: success and the result
// value when the object carries a "result" key, failure and the error detail
// (plus its "message" field) when it carries an "error" key, or failure with
// a generic "Invalid MCP response format" message otherwise.
func ParseMCPResult(text string) (success bool, resultOrError interface{}, errMessage string) {
	data, err := ExtractMCPResponse(text)
	if err != nil {
		return false, nil, err.Error()
	}

	if result, ok := data["result"]; ok {
		return true, result, ""
	}

	if errVal, ok := data["error"]; ok {
		msg := "Unknown error"
		if errObj, ok := errVal.(map[string]interface{}); ok {
			if m, ok := errObj["message"].(string); ok {
				msg = m
			}
		} else if errVal != nil {
			msg = toString(errVal)
		}
		return false, errVal, msg
	}

	return false, nil, "Invalid MCP response format"
}

func toString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
