package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	xhttp "github.com/nimasrn/vtu-gateway/pkg/http"
)

// errorEnvelope is the wire shape of every response: data on success,
// message on failure.
type errorEnvelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	env, ok := v.(errorEnvelope)
	if !ok {
		env = errorEnvelope{Success: true, Data: v}
	}
	b, _ := json.Marshal(env)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorEnvelope{Success: false, Message: msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func queryInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	idStr := ctx.QueryArgs().Peek(name)
	return strconv.ParseInt(string(idStr), 10, 64)
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
