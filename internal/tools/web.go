package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"mcpd/internal/util"
)

// WebFetchTool retrieves a URL over HTTP with retries and returns the body
// capped and redacted.
type WebFetchTool struct {
	client   *retryablehttp.Client
	maxBytes int
}

// NewWebFetchTool constructs the web_fetch tool.
func NewWebFetchTool(maxBytes int, timeout time.Duration) *WebFetchTool {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &WebFetchTool{client: client, maxBytes: maxBytes}
}

func (w *WebFetchTool) Definition() Definition {
	one := float64(1)
	return Definition{
		Name:        "web_fetch",
		Description: "Fetch a URL over HTTP(S) and return the response body as text, capped and redacted.",
		Category:    CategoryWeb,
		Params: map[string]ParamSpec{
			"url":       {Type: "string", Description: "Absolute http or https URL"},
			"max_bytes": {Type: "integer", Description: "Cap on returned body bytes", Minimum: &one},
		},
		Required: []string{"url"},
	}
}

type webFetchInput struct {
	URL      string `json:"url"`
	MaxBytes int    `json:"max_bytes"`
}

func (w *WebFetchTool) Execute(ctx context.Context, args map[string]any) Result {
	var input webFetchInput
	if err := decodeArgs(args, &input); err != nil {
		return Fail("invalid arguments: %v", err)
	}
	parsed, err := url.Parse(input.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return Fail("url must be an absolute http or https URL")
	}

	limit := w.maxBytes
	if input.MaxBytes > 0 && input.MaxBytes < limit {
		limit = input.MaxBytes
	}

	request, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, input.URL, nil)
	if err != nil {
		return Fail("%v", err)
	}
	request.Header.Set("User-Agent", "mcpd-web-fetch")

	resp, err := w.client.Do(request)
	if err != nil {
		return Fail("fetch failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
	if err != nil {
		return Fail("read body: %v", err)
	}
	truncated := len(body) > limit
	if truncated {
		body = body[:limit]
	}
	text := util.RedactSecrets(util.SanitizeOutput(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fail("fetch returned status %d: %s", resp.StatusCode, firstLine(text))
	}
	return Ok(map[string]any{
		"url":          input.URL,
		"status":       resp.StatusCode,
		"content_type": resp.Header.Get("Content-Type"),
		"body":         text,
		"bytes":        len(text),
		"truncated":    truncated,
	})
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return fmt.Sprintf("%.200s", s)
}
