package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"
)

// FlowClient is a thin client over the messaging platform's graph API for
// managing flow assets. The gateway owns the platform credentials; the core
// service only ever talks to the gateway.
type FlowClient struct {
	baseURL     string
	version     string
	wabaID      string
	accessToken string
	client      *http.Client
	logger      *slog.Logger
}

// NewFlowClient constructs a FlowClient from gateway configuration.
func NewFlowClient(cfg *Config, logger *slog.Logger) *FlowClient {
	return &FlowClient{
		baseURL:     cfg.GraphAPIBaseURL,
		version:     cfg.GraphAPIVersion,
		wabaID:      cfg.WhatsAppWABAID,
		accessToken: cfg.WhatsAppAccessToken,
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

func (c *FlowClient) url(path string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.version, path)
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// CreateFlow registers a new flow under the business account and returns the
// platform-assigned flow id.
func (c *FlowClient) CreateFlow(ctx context.Context, name string, categories []string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"name":       name,
		"categories": categories,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.wabaID+"/flows"), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create flow: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", graphFailure("create flow", resp.StatusCode, body)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("create flow: decode response: %w", err)
	}
	return out.ID, nil
}

// UploadFlowJSON uploads the flow definition as a FLOW_JSON asset. Platform
// validation errors are returned in the response, not as an error.
func (c *FlowClient) UploadFlowJSON(ctx context.Context, flowID string, schema json.RawMessage) (json.RawMessage, bool, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("name", "flow.json"); err != nil {
		return nil, false, err
	}
	if err := writer.WriteField("asset_type", "FLOW_JSON"); err != nil {
		return nil, false, err
	}
	part, err := writer.CreateFormFile("file", "flow.json")
	if err != nil {
		return nil, false, err
	}
	if _, err := part.Write(schema); err != nil {
		return nil, false, err
	}
	if err := writer.Close(); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(flowID+"/assets"), &buf)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("upload flow json: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, false, graphFailure("upload flow json", resp.StatusCode, body)
	}
	var out struct {
		ValidationErrors json.RawMessage `json:"validation_errors"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, false, fmt.Errorf("upload flow json: decode response: %w", err)
	}
	if len(out.ValidationErrors) > 0 && string(out.ValidationErrors) != "[]" && string(out.ValidationErrors) != "null" {
		return out.ValidationErrors, false, nil
	}
	return nil, true, nil
}

// PublishFlow makes the uploaded flow live.
func (c *FlowClient) PublishFlow(ctx context.Context, flowID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(flowID+"/publish"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("publish flow: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return graphFailure("publish flow", resp.StatusCode, body)
	}
	return nil
}

func graphFailure(op string, status int, body []byte) error {
	var ge graphError
	if err := json.Unmarshal(body, &ge); err == nil && ge.Error.Message != "" {
		return fmt.Errorf("%s: graph api %d: %s", op, status, ge.Error.Message)
	}
	return fmt.Errorf("%s: graph api %d", op, status)
}
