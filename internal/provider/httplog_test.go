package provider

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLoggingTransport(t *testing.T) {
	big := strings.Repeat("A", 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), big) {
			t.Error("request body not forwarded intact")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"b64_json":"` + big + `"}]}`))
	}))
	defer server.Close()

	var out bytes.Buffer
	client := &http.Client{Transport: &LoggingTransport{Out: &out}}

	req, _ := http.NewRequest(http.MethodPost, server.URL+"/images", strings.NewReader(`{"prompt":"sofa","image":{"data":"`+big+`"}}`))
	req.Header.Set("Authorization", "Bearer sk-secret-key-12345")
	req.Header.Set("X-Naver-Client-Secret", "naver-secret")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(respBody), big) {
		t.Error("response body was altered for the caller")
	}

	log := out.String()
	for _, want := range []string{"--- REQUEST ---", "POST " + server.URL + "/images", "[REDACTED]", "--- RESPONSE ---", "Status: 200", "... [truncated]"} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q", want)
		}
	}
	for _, secret := range []string{"sk-secret-key-12345", "naver-secret", big} {
		if strings.Contains(log, secret) {
			t.Errorf("log leaked %q", secret[:10])
		}
	}
}

func TestTruncateBase64InJSON(t *testing.T) {
	long := strings.Repeat("x", 150)

	got := string(truncateBase64InJSON([]byte(`{"messages":[[{"data":"` + long + `"}]],"b64_json":"short"}`)))
	if strings.Contains(got, long) {
		t.Error("nested base64 not truncated")
	}
	if !strings.Contains(got, `"short"`) {
		t.Error("short value should be kept")
	}

	invalid := []byte("not json")
	if string(truncateBase64InJSON(invalid)) != "not json" {
		t.Error("invalid JSON should pass through")
	}
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(&Config{}, 30*time.Second)
	if c.Timeout != 30*time.Second || c.Transport != nil {
		t.Errorf("NewHTTPClient() = %+v", c)
	}

	c = NewHTTPClient(&Config{TimeoutSec: 5, Verbose: true}, 30*time.Second)
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", c.Timeout)
	}
	if _, ok := c.Transport.(*LoggingTransport); !ok {
		t.Error("verbose client should use LoggingTransport")
	}
}
