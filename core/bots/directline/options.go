package directline

import (
	"log/slog"
	"os"
	"time"

	"github.com/koscakluka/ema-speechbot/core/sessions"
)

const (
	DefaultTokenExpiry  = 1800 * time.Second
	DefaultRefreshRetry = 30 * time.Second

	secretEnv = "DIRECTLINE_SECRET"
	tokenEnv  = "DIRECTLINE_TOKEN"
)

type SessionOption func(*Session)

// WithSecret sets the Direct Line secret. When both a secret and a token are
// configured, REST calls authenticate with the secret.
func WithSecret(secret string) SessionOption {
	return func(s *Session) {
		s.secret = secret
	}
}

func WithToken(token string) SessionOption {
	return func(s *Session) {
		s.token = token
	}
}

// WithConversation resumes an existing conversation on the first Connect.
func WithConversation(conversationID, watermark string) SessionOption {
	return func(s *Session) {
		s.conversationID = conversationID
		s.watermark = watermark
	}
}

// WithUserName sets the account messages are sent from.
func WithUserName(name string) SessionOption {
	return func(s *Session) {
		if name != "" {
			s.userName = name
		}
	}
}

func WithConversations(client Conversations) SessionOption {
	return func(s *Session) {
		if client != nil {
			s.client = client
		}
	}
}

func WithDialer(dialer sessions.Dialer) SessionOption {
	return func(s *Session) {
		if dialer != nil {
			s.dialer = dialer
		}
	}
}

// WithRefreshRetry sets how long to wait before retrying a failed token
// refresh.
func WithRefreshRetry(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.refreshRetry = d
		}
	}
}

// WithRefreshMargin sets how long before token expiry the refresh is sent.
func WithRefreshMargin(margin time.Duration) SessionOption {
	return func(s *Session) {
		s.refreshMargin = margin
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the wall clock used to read JWT expiry claims.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func lookupCredentials() (secret, token string) {
	secret, _ = os.LookupEnv(secretEnv)
	token, _ = os.LookupEnv(tokenEnv)
	return secret, token
}
