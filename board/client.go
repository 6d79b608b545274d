package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxResponseSize bounds store response bodies to protect memory.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// Client is the abstract board store consumed by the reconciliation
// engine and the change watcher.
type Client interface {
	// GetSchema returns the property definitions of a collection.
	GetSchema(ctx context.Context, collectionID string) ([]SchemaEntry, error)

	// Query returns entities matching the filter, sorted by last-edited
	// descending, at most pageSize of them.
	Query(ctx context.Context, collectionID string, filter Filter, pageSize int) ([]Entity, error)

	// UpdateEntity writes the given property values onto an entity.
	UpdateEntity(ctx context.Context, entityID string, properties map[string]PropertyValue) error

	// CreateEntity creates an entity in a collection and returns its id.
	// coverURL is optional.
	CreateEntity(ctx context.Context, collectionID string, properties map[string]PropertyValue, coverURL string) (string, error)

	// AppendBlocks appends content blocks to an entity's body.
	AppendBlocks(ctx context.Context, entityID string, blocks []Block) error
}

// HTTPClient talks to the board's REST API with a bearer token.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPClientOption configures an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithHTTPDoer sets a custom http.Client.
func WithHTTPDoer(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) {
		h.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) HTTPClientOption {
	return func(h *HTTPClient) {
		h.logger = logger
	}
}

// NewHTTPClient creates a board client for the given API base URL.
func NewHTTPClient(baseURL, token string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type schemaResponse struct {
	Properties []SchemaEntry `json:"properties"`
}

// GetSchema fetches the collection's property definitions.
func (c *HTTPClient) GetSchema(ctx context.Context, collectionID string) ([]SchemaEntry, error) {
	path := fmt.Sprintf("/collections/%s/schema", collectionID)
	var resp schemaResponse
	if err := c.do(ctx, http.MethodGet, path, collectionID, nil, &resp); err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	return resp.Properties, nil
}

type queryRequest struct {
	Filter   Filter `json:"filter"`
	Sort     string `json:"sort"`
	PageSize int    `json:"page_size"`
}

type queryResponse struct {
	Entities []Entity `json:"entities"`
}

// Query runs a single-property equality query sorted by last-edited descending.
func (c *HTTPClient) Query(ctx context.Context, collectionID string, filter Filter, pageSize int) ([]Entity, error) {
	path := fmt.Sprintf("/collections/%s/query", collectionID)
	req := queryRequest{Filter: filter, Sort: "last_edited_desc", PageSize: pageSize}
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, path, collectionID, req, &resp); err != nil {
		return nil, fmt.Errorf("query collection %s: %w", collectionID, err)
	}
	return resp.Entities, nil
}

type updateRequest struct {
	Properties map[string]PropertyValue `json:"properties"`
}

// UpdateEntity writes property values onto an existing entity.
func (c *HTTPClient) UpdateEntity(ctx context.Context, entityID string, properties map[string]PropertyValue) error {
	path := fmt.Sprintf("/entities/%s", entityID)
	if err := c.do(ctx, http.MethodPatch, path, "", updateRequest{Properties: properties}, nil); err != nil {
		return fmt.Errorf("update entity %s: %w", entityID, err)
	}
	return nil
}

type createRequest struct {
	Properties map[string]PropertyValue `json:"properties"`
	CoverURL   string                   `json:"cover_url,omitempty"`
}

type createResponse struct {
	ID string `json:"id"`
}

// CreateEntity creates a new entity and returns its id.
func (c *HTTPClient) CreateEntity(ctx context.Context, collectionID string, properties map[string]PropertyValue, coverURL string) (string, error) {
	path := fmt.Sprintf("/collections/%s/entities", collectionID)
	req := createRequest{Properties: properties, CoverURL: coverURL}
	var resp createResponse
	if err := c.do(ctx, http.MethodPost, path, collectionID, req, &resp); err != nil {
		return "", fmt.Errorf("create entity in %s: %w", collectionID, err)
	}
	return resp.ID, nil
}

type appendRequest struct {
	Blocks []Block `json:"blocks"`
}

// AppendBlocks appends content blocks to an entity's body.
func (c *HTTPClient) AppendBlocks(ctx context.Context, entityID string, blocks []Block) error {
	path := fmt.Sprintf("/entities/%s/blocks", entityID)
	if err := c.do(ctx, http.MethodPost, path, "", appendRequest{Blocks: blocks}, nil); err != nil {
		return fmt.Errorf("append blocks to %s: %w", entityID, err)
	}
	return nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes one API call, decoding the response into out when non-nil.
// collectionID is used only for error classification.
func (c *HTTPClient) do(ctx context.Context, method, path, collectionID string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &TransientError{Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		c.logger.Debug("board call failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"code", ae.Error.Code)
		return classifyStatus(resp.StatusCode, collectionID, ae.Error.Code, ae.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
