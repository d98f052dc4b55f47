package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const adminTokenHeader = "X-Admin-Token"

// client talks to one server and keeps its session cookie. Redirects are
// returned to the caller instead of being followed.
type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) (*client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r response) expect(codes ...int) error {
	for _, c := range codes {
		if r.status == c {
			return nil
		}
	}
	return fmt.Errorf("%w: got %d, want %v: %s", ErrUnexpectedStatus, r.status, codes, snippet(r.body))
}

func (c *client) do(ctx context.Context, method, path string, body io.Reader, header http.Header) (response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("read %s: %w", path, err)
	}
	return response{status: resp.StatusCode, header: resp.Header, body: data}, nil
}

func (c *client) get(ctx context.Context, path string) (response, error) {
	return c.do(ctx, http.MethodGet, path, http.NoBody, nil)
}

func (c *client) postJSON(ctx context.Context, path string, in any, adminToken string) (response, error) {
	buf, err := json.Marshal(in)
	if err != nil {
		return response{}, fmt.Errorf("encode request: %w", err)
	}
	h := http.Header{"Content-Type": {"application/json"}}
	if adminToken != "" {
		h.Set(adminTokenHeader, adminToken)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(buf), h)
}

func (c *client) postForm(ctx context.Context, path string, form url.Values) (response, error) {
	h := http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	return c.do(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), h)
}

func (c *client) close() {
	c.http.CloseIdleConnections()
}

func snippet(b []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(b))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
