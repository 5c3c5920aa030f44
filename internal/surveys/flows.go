package surveys

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pulsecheck-io/pulsecheck/internal/platform/httpx"
)

// UploadResult reports the messaging platform's validation verdict for an
// uploaded flow definition.
type UploadResult struct {
	OK     bool
	Errors json.RawMessage
}

// FlowPublisher abstracts the gateway's flow-builder API used by the
// template publish pipeline.
type FlowPublisher interface {
	CreateFlow(ctx context.Context, name string, categories []string) (string, error)
	UploadFlowJSON(ctx context.Context, flowID string, flowJSON json.RawMessage) (UploadResult, error)
	PublishFlow(ctx context.Context, flowID string) error
}

// GatewayClient implements FlowPublisher against the automation gateway.
// Calls are bounded by the client timeout; a timed-out call surfaces as
// httpx.ErrUpstream and is never retried here.
type GatewayClient struct {
	baseURL string
	client  *http.Client
}

// NewGatewayClient constructs a GatewayClient for the given base URL.
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateFlow registers a new flow and returns its platform identifier.
func (c *GatewayClient) CreateFlow(ctx context.Context, name string, categories []string) (string, error) {
	body, status, err := c.post(ctx, "/integrations/whatsapp/flows/create", map[string]any{
		"name":       name,
		"categories": categories,
	})
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("surveys: create flow: status %d: %s", status, body)
	}
	var parsed struct {
		FlowID string `json:"flowId"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("surveys: create flow: decode response: %w", err)
	}
	return parsed.FlowID, nil
}

// UploadFlowJSON uploads the flow definition; platform validation failures
// come back in UploadResult.Errors rather than as an error.
func (c *GatewayClient) UploadFlowJSON(ctx context.Context, flowID string, flowJSON json.RawMessage) (UploadResult, error) {
	body, status, err := c.post(ctx, "/integrations/whatsapp/flows/"+flowID+"/assets", map[string]any{
		"filename": "flow.json",
		"content":  flowJSON,
	})
	if err != nil {
		return UploadResult{}, err
	}
	if status < 200 || status >= 300 {
		result := UploadResult{OK: false}
		var failure struct {
			ValidationErrors json.RawMessage `json:"validationErrors"`
		}
		if err := json.Unmarshal(body, &failure); err == nil && len(failure.ValidationErrors) > 0 {
			result.Errors = failure.ValidationErrors
		} else if json.Valid(body) {
			result.Errors = body
		}
		return result, nil
	}
	return UploadResult{OK: true}, nil
}

// PublishFlow publishes a previously uploaded flow.
func (c *GatewayClient) PublishFlow(ctx context.Context, flowID string) error {
	body, status, err := c.post(ctx, "/integrations/whatsapp/flows/"+flowID+"/publish", nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("surveys: publish flow: status %d: %s", status, body)
	}
	return nil
}

func (c *GatewayClient) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	res, err := c.client.Do(req)
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, 0, fmt.Errorf("surveys: gateway call timed out: %w", httpx.ErrUpstream)
		}
		return nil, 0, fmt.Errorf("surveys: gateway call: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, res.StatusCode, nil
}

var _ FlowPublisher = (*GatewayClient)(nil)
