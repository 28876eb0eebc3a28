package simulator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/smartinhale/adherence/internal/domain/codec"
	"github.com/smartinhale/adherence/internal/domain/model"
)

// Wire formats a Client can send.
const (
	WireJSON   = "json"
	WireBinary = "binary"
)

// ErrUnexpectedStatus is returned when the service answers with a non-2xx code.
var ErrUnexpectedStatus = errors.New("unexpected status")

// ErrUnknownWire is returned for a wire format other than json or binary.
var ErrUnknownWire = errors.New("unknown wire format")

// Client talks to the service HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a Client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Encode renders e in the given wire format.
func Encode(e model.Event, wire string) ([]byte, string, error) {
	switch wire {
	case "", WireJSON:
		b, err := codec.EncodeJSON(e)
		return b, "application/json", err
	case WireBinary:
		return codec.EncodeBinary(e), "application/octet-stream", nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownWire, wire)
	}
}

// SendEvent posts e as a raw device payload.
func (c *Client) SendEvent(ctx context.Context, e model.Event, wire string) error {
	body, contentType, err := Encode(e, wire)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/payloads", contentType, body, nil)
}

// PublishState reports a connection lifecycle state.
func (c *Client) PublishState(ctx context.Context, state string) error {
	body, err := json.Marshal(map[string]string{"state": state})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, "/v1/connection", "application/json", body, nil)
}

// Adherence fetches the adherence summary into out.
func (c *Client) Adherence(ctx context.Context, out any) error {
	return c.do(ctx, http.MethodGet, "/v1/adherence", "", nil, out)
}

// Health checks that the service is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
