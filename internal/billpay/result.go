package billpay

import (
	"encoding/json"
	"strings"
)

// Result is the tagged outcome of a provider purchase or status call.
// Raw keeps the provider's untouched response body for auditing and for
// returning to the caller on success.
type Result struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// Providers disagree wildly on how they signal success: boolean true,
// string "true", "success", a "000" response code. ParseResult
// normalizes the variants seen in the wild; anything it cannot
// positively identify as success is a failure.
func ParseResult(body []byte) *Result {
	raw := make(json.RawMessage, len(body))
	copy(raw, body)

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &Result{
			Success: false,
			Message: "unparseable provider response",
			Raw:     raw,
		}
	}

	return &Result{
		Success: isSuccess(payload),
		Message: extractMessage(payload),
		Raw:     raw,
	}
}

func isSuccess(payload map[string]interface{}) bool {
	for _, key := range []string{"success", "status", "code", "response_code"} {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch value := v.(type) {
		case bool:
			if value {
				return true
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(value)) {
			case "true", "success", "successful", "ok", "000", "completed", "delivered":
				return true
			}
		}
	}
	return false
}

func extractMessage(payload map[string]interface{}) string {
	for _, key := range []string{"message", "msg", "error", "error_message", "detail"} {
		if v, ok := payload[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
