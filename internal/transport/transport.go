package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrStatus is matched by every *StatusError.
var ErrStatus = errors.New("unexpected HTTP status")

// StatusError describes a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP Error %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Response is an open streamed response.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport posts a JSON body and returns the response without reading it.
type Transport interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error)
}

// HTTP is a Transport over net/http.
type HTTP struct {
	Client *http.Client
}

// NewHTTP returns an HTTP transport. No overall client timeout is set because
// streams can legitimately run for minutes; headerTimeout bounds the wait for
// the first response byte.
func NewHTTP(headerTimeout time.Duration) *HTTP {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &HTTP{Client: &http.Client{Transport: tr}}
}

// Post sends body to url with the given headers.
func (t *HTTP) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", url, err)
	}
	return &Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// CheckStatus closes a non-2xx response and returns a *StatusError carrying up
// to limit bytes of its body.
func CheckStatus(resp *Response, limit int64) error {
	if resp.OK() {
		return nil
	}
	defer resp.Body.Close()

	if limit <= 0 {
		limit = 1 << 20
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	body := strings.TrimSpace(string(data))
	if err != nil {
		body = strings.TrimSpace(fmt.Sprintf("%s (error body unreadable: %v)", body, err))
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
