package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// base64Keys are JSON fields whose values are image payloads and are cut
// short in verbose dumps.
var base64Keys = map[string]bool{
	"b64_json":    true,
	"data":        true,
	"imageBase64": true,
}

// NewHTTPClient returns a client with the configured timeout. With Verbose
// set, every request and response is dumped to stderr with credentials
// redacted.
func NewHTTPClient(cfg *Config, defaultTimeout time.Duration) *http.Client {
	timeout := defaultTimeout
	if cfg.TimeoutSec > 0 {
		timeout = time.Duration(cfg.TimeoutSec) * time.Second
	}
	client := &http.Client{Timeout: timeout}
	if cfg.Verbose {
		client.Transport = &LoggingTransport{Out: os.Stderr}
	}
	return client
}

type LoggingTransport struct {
	Base http.RoundTripper
	Out  io.Writer
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	logRequest(t.Out, req.Method, req.URL.String(), req.Header, body)

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	logResponse(t.Out, resp.StatusCode, resp.Header, respBody)
	return resp, nil
}

func isSecretHeader(key string) bool {
	switch strings.ToLower(key) {
	case "authorization", "x-api-key", "x-naver-client-secret":
		return true
	}
	return false
}

func logRequest(w io.Writer, method, url string, headers http.Header, body []byte) {
	fmt.Fprintln(w, "--- REQUEST ---")
	fmt.Fprintf(w, "%s %s\n", method, url)
	fmt.Fprintln(w, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			if isSecretHeader(key) {
				value = "[REDACTED]"
			}
			fmt.Fprintf(w, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, "Body:")
		writeJSON(w, truncateBase64InJSON(body))
	}
	fmt.Fprintln(w, "---------------")
}

func logResponse(w io.Writer, statusCode int, headers http.Header, body []byte) {
	fmt.Fprintln(w, "--- RESPONSE ---")
	fmt.Fprintf(w, "Status: %d\n", statusCode)
	fmt.Fprintln(w, "Headers:")
	for key, values := range headers {
		for _, value := range values {
			fmt.Fprintf(w, "  %s: %s\n", key, value)
		}
	}
	if len(body) > 0 {
		fmt.Fprintln(w, "Body:")
		writeJSON(w, truncateBase64InJSON(body))
	}
	fmt.Fprintln(w, "----------------")
}

func writeJSON(w io.Writer, body []byte) {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "  ", "  "); err == nil {
		fmt.Fprintf(w, "  %s\n", prettyJSON.String())
	} else {
		fmt.Fprintf(w, "  %s\n", string(body))
	}
}

func truncateBase64InJSON(body []byte) []byte {
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return body
	}

	truncateBase64Fields(data)

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

func truncateBase64Fields(data map[string]interface{}) {
	for key, value := range data {
		switch v := value.(type) {
		case string:
			if base64Keys[key] && len(v) > 100 {
				data[key] = v[:100] + "... [truncated]"
			}
		case map[string]interface{}:
			truncateBase64Fields(v)
		case []interface{}:
			truncateBase64Slice(v)
		}
	}
}

func truncateBase64Slice(items []interface{}) {
	for _, item := range items {
		switch v := item.(type) {
		case map[string]interface{}:
			truncateBase64Fields(v)
		case []interface{}:
			truncateBase64Slice(v)
		}
	}
}
