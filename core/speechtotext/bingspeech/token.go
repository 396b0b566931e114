package bingspeech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/koscakluka/ema-speechbot/core/sessions"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultTokenURL = "https://api.cognitive.microsoft.com/sts/v1.0/issueToken"

// TokenIssuer exchanges a subscription key for a short-lived bearer token.
type TokenIssuer interface {
	IssueToken(ctx context.Context, apiKey string) (string, error)
}

type HTTPTokenIssuer struct {
	URL    string
	Client *http.Client
}

func NewHTTPTokenIssuer() *HTTPTokenIssuer {
	return &HTTPTokenIssuer{
		URL: DefaultTokenURL,
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "bingspeech.issue_token " + r.Method
				}),
			),
		},
	}
}

func (i *HTTPTokenIssuer) IssueToken(ctx context.Context, apiKey string) (string, error) {
	ctx, span := tracer.Start(ctx, "bingspeech.issue_token")
	defer span.End()

	tokenURL := i.URL
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create token request")
		return "", fmt.Errorf("%w: failed to create token request: %w", sessions.ErrRequest, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request failed")
		return "", fmt.Errorf("%w: token request failed: %w", sessions.ErrRequest, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read token response")
		return "", fmt.Errorf("%w: failed to read token response: %w", sessions.ErrRequest, err)
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("%w: token request returned %s", sessions.ErrRequest, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, "token request rejected")
		return "", err
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		err := fmt.Errorf("%w: empty token in response", sessions.ErrRequest)
		span.RecordError(err)
		span.SetStatus(codes.Error, "empty token")
		return "", err
	}
	return token, nil
}
