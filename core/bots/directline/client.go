package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/koscakluka/ema-speechbot/core/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultBaseURL = "https://directline.botframework.com/v3/directline"

// Conversations is the Direct Line REST surface the session depends on. Every
// call is authenticated with a bearer credential, either the secret or a
// conversation token.
type Conversations interface {
	StartConversation(ctx context.Context, credential string) (ConversationResponse, error)
	GetConversation(ctx context.Context, credential, conversationID, watermark string) (ConversationResponse, error)
	RefreshToken(ctx context.Context, token string) (ConversationResponse, error)
	PostActivity(ctx context.Context, credential, conversationID string, activity Activity) (activityID string, err error)
}

type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		BaseURL: DefaultBaseURL,
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "directline " + r.Method + " " + r.URL.Path
				}),
			),
		},
	}
}

func (c *HTTPClient) StartConversation(ctx context.Context, credential string) (ConversationResponse, error) {
	var response ConversationResponse
	err := c.do(ctx, "directline.start_conversation", http.MethodPost, "/conversations", credential, nil, &response)
	return response, err
}

func (c *HTTPClient) GetConversation(ctx context.Context, credential, conversationID, watermark string) (ConversationResponse, error) {
	path := "/conversations/" + url.PathEscape(conversationID)
	if watermark != "" {
		path += "?watermark=" + url.QueryEscape(watermark)
	}

	var response ConversationResponse
	err := c.do(ctx, "directline.get_conversation", http.MethodGet, path, credential, nil, &response)
	return response, err
}

func (c *HTTPClient) RefreshToken(ctx context.Context, token string) (ConversationResponse, error) {
	var response ConversationResponse
	err := c.do(ctx, "directline.refresh_token", http.MethodPost, "/tokens/refresh", token, nil, &response)
	return response, err
}

func (c *HTTPClient) PostActivity(ctx context.Context, credential, conversationID string, activity Activity) (string, error) {
	body, err := json.Marshal(activity)
	if err != nil {
		return "", fmt.Errorf("failed to marshal activity: %w", err)
	}

	var response resourceResponse
	path := "/conversations/" + url.PathEscape(conversationID) + "/activities"
	if err := c.do(ctx, "directline.post_activity", http.MethodPost, path, credential, body, &response); err != nil {
		return "", err
	}
	return response.ID, nil
}

func (c *HTTPClient) do(ctx context.Context, spanName, method, path, credential string, body []byte, out any) error {
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("http.request.method", method),
	))
	defer span.End()

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(baseURL, "/")+path, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return fmt.Errorf("%w: failed to create request: %w", sessions.ErrRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("%w: %s %s: %w", sessions.ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read response")
		return fmt.Errorf("%w: failed to read response: %w", sessions.ErrRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("%w: %s %s returned %s", sessions.ErrRequest, method, path, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request rejected")
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode response")
		return fmt.Errorf("%w: failed to decode response: %w", sessions.ErrParse, err)
	}
	return nil
}
