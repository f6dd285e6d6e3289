// Package client talks to a scorekeeper server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/okian/scorekeeper/internal/domain/model"
)

const defaultTimeout = 30 * time.Second

// Ack is the acknowledgement returned by instantiate and execute.
type Ack struct {
	Status     string            `json:"status"`
	Duplicate  bool              `json:"duplicate"`
	Attributes []model.Attribute `json:"attributes"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Client wraps http.Client with the server's routes and headers.
type Client struct {
	baseURL string
	sender  string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// As returns a copy of c that sends requests as sender.
func (c *Client) As(sender string) *Client {
	cp := *c
	cp.sender = sender
	return &cp
}

// Sender returns the identity c sends.
func (c *Client) Sender() string { return c.sender }

// Health checks that the server answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, nil)
}

// Instantiate records owner as the contract owner.
func (c *Client) Instantiate(ctx context.Context, owner string) (Ack, error) {
	var ack Ack
	err := c.do(ctx, http.MethodPost, "/instantiate", "", model.InstantiateMsg{Owner: owner}, &ack)
	return ack, err
}

// Execute sends msg. A non-empty txID makes a replay of the same call a no-op.
func (c *Client) Execute(ctx context.Context, txID string, msg model.ExecuteMsg) (Ack, error) {
	var ack Ack
	err := c.do(ctx, http.MethodPost, "/execute", txID, msg, &ack)
	return ack, err
}

// SetScore writes score under token for addr.
func (c *Client) SetScore(ctx context.Context, txID, addr, token string, score int32) (Ack, error) {
	return c.Execute(ctx, txID, model.ExecuteMsg{
		SetScore: &model.SetScore{Address: addr, Token: token, Score: score},
	})
}

// Owner reads the contract owner.
func (c *Client) Owner(ctx context.Context) (model.OwnerResponse, error) {
	var out model.OwnerResponse
	err := c.do(ctx, http.MethodGet, "/owner", "", nil, &out)
	return out, err
}

// Score reads one token score of addr. An empty token reads the unnamed
// entry.
func (c *Client) Score(ctx context.Context, addr, token string) (model.ScoreResponse, error) {
	var out model.ScoreResponse
	path := "/scores/" + url.PathEscape(addr) + "?" + url.Values{"token": {token}}.Encode()
	err := c.do(ctx, http.MethodGet, path, "", nil, &out)
	return out, err
}

// Scores reads every token score of addr.
func (c *Client) Scores(ctx context.Context, addr string) (model.ScoresResponse, error) {
	var out model.ScoresResponse
	err := c.do(ctx, http.MethodGet, "/scores/"+url.PathEscape(addr), "", nil, &out)
	return out, err
}

// Query sends a tagged query and decodes the reply into out.
func (c *Client) Query(ctx context.Context, msg model.QueryMsg, out any) error {
	return c.do(ctx, http.MethodPost, "/query", "", msg, out)
}

// Stats returns the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/stats", "", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, txID string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sender != "" {
		req.Header.Set("X-Sender", c.sender)
	}
	if txID != "" {
		req.Header.Set("X-Tx-ID", txID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(data, &eb) == nil {
			apiErr.Code, apiErr.Message = eb.Code, eb.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
