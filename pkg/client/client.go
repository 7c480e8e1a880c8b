// Package client provides the Go SDK for the anchoring service: upload
// content to anchor its fingerprint on the ledger, and verify later that
// content was anchored.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrServer is returned when the service reports an internal failure.
var ErrServer = errors.New("anchor service reported an internal error")

// AnchorResult mirrors the response of POST /api/v1/anchors.
type AnchorResult struct {
	Status            string `json:"status"`
	Hash              string `json:"hash"`
	TransactionResult string `json:"transactionResult"`
	ResultMessage     string `json:"resultMessage"`
	TxHash            string `json:"txHash,omitempty"`
}

// VerifyResult mirrors the response of POST /api/v1/anchors/verify.
// Status is "success" when the fingerprint was found, "not_found" when the
// check completed cleanly without a match.
type VerifyResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// LogOverview mirrors the response of GET /api/v1/log.
type LogOverview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// Client is the SDK entry point.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a bearer token to every request; required when
// the service gates anchoring behind auth.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AnchorFile uploads content under filename and anchors its fingerprint.
func (c *Client) AnchorFile(ctx context.Context, filename string, content io.Reader) (*AnchorResult, error) {
	var out AnchorResult
	if err := c.upload(ctx, "/api/v1/anchors", filename, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnchorPath anchors the file at path.
func (c *Client) AnchorPath(ctx context.Context, path string) (*AnchorResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return c.AnchorFile(ctx, filepath.Base(path), f)
}

// VerifyFile checks whether content was previously anchored.
func (c *Client) VerifyFile(ctx context.Context, filename string, content io.Reader) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.upload(ctx, "/api/v1/anchors/verify", filename, content, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPath verifies the file at path.
func (c *Client) VerifyPath(ctx context.Context, path string) (*VerifyResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	return c.VerifyFile(ctx, filepath.Base(path), f)
}

// Log returns the anchor audit log overview.
func (c *Client) Log(ctx context.Context) (*LogOverview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/log", nil)
	if err != nil {
		return nil, err
	}
	var out LogOverview
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// upload sends content as the multipart "file" part to path and decodes
// the JSON response into out.
func (c *Client) upload(ctx context.Context, path, filename string, content io.Reader, out any) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", ErrServer, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("request failed: %s", msg)
	}

	return json.Unmarshal(raw, out)
}
