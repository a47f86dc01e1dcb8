package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hfllm/config"
	"hfllm/internal/models"
	"hfllm/internal/transport"
)

// stubTransport records calls and replays a canned response.
type stubTransport struct {
	calls   int
	url     string
	headers map[string]string
	body    []byte
	resp    *transport.Response
	err     error
}

func (s *stubTransport) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*transport.Response, error) {
	s.calls++
	s.url = url
	s.headers = headers
	s.body = body
	return s.resp, s.err
}

func streamResponse(status int, body string) *transport.Response {
	return &transport.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func testEndpoint(baseURL string) config.EndpointConfig {
	return config.EndpointConfig{
		Backend:   config.BackendRouter,
		BaseURL:   baseURL,
		Model:     "test-model",
		MaxTokens: 100,
	}
}

func TestEndpointURL(t *testing.T) {
	testCases := []struct {
		base, provider, expected string
	}{
		{"https://router.huggingface.co", "", "https://router.huggingface.co/v1/chat/completions"},
		{"https://router.huggingface.co/", "together", "https://router.huggingface.co/together/models/v1/chat/completions"},
		{"http://localhost:8080", " /sambanova/ ", "http://localhost:8080/sambanova/models/v1/chat/completions"},
	}
	for _, tc := range testCases {
		if got := EndpointURL(tc.base, tc.provider); got != tc.expected {
			t.Errorf("EndpointURL(%q, %q) = %q, expected %q", tc.base, tc.provider, got, tc.expected)
		}
	}
}

func TestRouterClientStreamRequest(t *testing.T) {
	tr := &stubTransport{resp: streamResponse(http.StatusOK,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n"+
			"data: [DONE]\n")}
	c := NewRouterClient(tr, "test-token", testEndpoint("https://example.test"), 0)

	history := []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "again"},
	}
	var out strings.Builder
	reply, err := c.StreamRequest(context.Background(), history, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Hello" {
		t.Errorf("expected reply %q, got %q", "Hello", reply)
	}
	if out.String() != "Hello\n" {
		t.Errorf("expected output %q, got %q", "Hello\n", out.String())
	}

	if tr.url != "https://example.test/v1/chat/completions" || tr.url != c.URL() {
		t.Errorf("unexpected url %q (client reports %q)", tr.url, c.URL())
	}
	if tr.headers["Authorization"] != "Bearer test-token" {
		t.Errorf("unexpected Authorization header %q", tr.headers["Authorization"])
	}
	if tr.headers["Content-Type"] != "application/json" {
		t.Errorf("unexpected Content-Type header %q", tr.headers["Content-Type"])
	}
	if tr.headers["X-Request-Id"] == "" {
		t.Error("expected a request id header")
	}

	var req models.ChatRequest
	if err := json.Unmarshal(tr.body, &req); err != nil {
		t.Fatalf("failed to decode request: %v", err)
	}
	if req.Model != "test-model" || req.MaxTokens != 100 || !req.Stream {
		t.Errorf("unexpected request %+v", req)
	}
	if len(req.Messages) != 3 || req.Messages[2].Content != "again" || req.Messages[1].Role != models.RoleAssistant {
		t.Errorf("expected the full history to be sent, got %+v", req.Messages)
	}
}

func TestRouterClientStatusError(t *testing.T) {
	tr := &stubTransport{resp: streamResponse(http.StatusUnauthorized, "bad token")}
	c := NewRouterClient(tr, "t", testEndpoint("https://example.test"), 0)

	var out strings.Builder
	_, err := c.StreamRequest(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, &out)

	var se *transport.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *transport.StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnauthorized || se.Body != "bad token" {
		t.Errorf("unexpected status error %+v", se)
	}
	if out.Len() != 0 {
		t.Errorf("decoder must not run on error status, output %q", out.String())
	}
}

func TestRouterClientTransportError(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	tr := &stubTransport{err: boom}
	c := NewRouterClient(tr, "t", testEndpoint("https://example.test"), 0)

	_, err := c.StreamRequest(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, io.Discard)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestRouterClientOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/novita/models/v1/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("unexpected Accept header %q", r.Header.Get("Accept"))
		}
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{
			"data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"stream\"}}]}\n\n",
			"data: {\"choices\":[{\"delta\":{\"content\":\"ed\"}}]}\n\n",
			"data: [DONE]\n\n",
		} {
			io.WriteString(w, part)
			flusher.Flush()
		}
	}))
	defer server.Close()

	endpoint := testEndpoint(server.URL)
	endpoint.Provider = "novita"
	c := NewRouterClient(transport.NewHTTP(5*time.Second), "t", endpoint, 0)

	reply, err := c.StreamRequest(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "streamed" {
		t.Errorf("expected reply %q, got %q", "streamed", reply)
	}
}
