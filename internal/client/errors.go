package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// HTTPError is a non-2xx response from ERPNext
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return e.Message()
}

// Message returns the most specific error text in the body: "message", then
// "exception", then the first "_server_messages" entry. Anything else falls
// back to "HTTP <code>: <body>".
func (e *HTTPError) Message() string {
	var payload struct {
		Message        json.RawMessage `json:"message"`
		Exception      string          `json:"exception"`
		ServerMessages string          `json:"_server_messages"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		if msg := rawText(payload.Message); msg != "" {
			return msg
		}
		if payload.Exception != "" {
			return payload.Exception
		}
		if msg := firstServerMessage(payload.ServerMessages); msg != "" {
			return msg
		}
	}

	body := strings.TrimSpace(string(e.Body))
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, body)
}

// rawText renders a JSON string as its contents and any other non-null JSON
// value as compact JSON
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// firstServerMessage decodes frappe's _server_messages: a JSON string holding
// an array of JSON-encoded {"message": ...} objects
func firstServerMessage(s string) string {
	if s == "" {
		return ""
	}
	var entries []string
	if err := json.Unmarshal([]byte(s), &entries); err != nil || len(entries) == 0 {
		return ""
	}
	var inner struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(entries[0]), &inner); err == nil && inner.Message != "" {
		return inner.Message
	}
	return entries[0]
}
