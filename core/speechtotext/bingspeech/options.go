package bingspeech

import (
	"log/slog"
	"os"
	"time"

	"github.com/koscakluka/ema-speechbot/core/sessions"
	"github.com/koscakluka/ema-speechbot/core/speechtotext"
)

const (
	DefaultMaxDuration   = 600 * time.Second
	DefaultMaxIdle       = 30 * time.Second
	DefaultTokenLifetime = 10 * time.Minute

	apiKeyEnv = "BING_SPEECH_KEY"
)

type SessionOption func(*Session)

// WithAPIKey sets the subscription key used to issue bearer tokens. Without
// it the key is read from BING_SPEECH_KEY.
func WithAPIKey(apiKey string) SessionOption {
	return func(s *Session) {
		s.apiKey = apiKey
	}
}

// WithToken sets a bearer token to connect with. A token issued from the API
// key replaces it once it ages out.
func WithToken(token string) SessionOption {
	return func(s *Session) {
		s.token = token
	}
}

func WithLanguage(language Language) SessionOption {
	return func(s *Session) {
		if language != "" {
			s.language = language
		}
	}
}

func WithHost(host string) SessionOption {
	return func(s *Session) {
		if host != "" {
			s.host = host
		}
	}
}

func WithTokenIssuer(issuer TokenIssuer) SessionOption {
	return func(s *Session) {
		if issuer != nil {
			s.issuer = issuer
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

func WithMicrophone(microphone speechtotext.Microphone) SessionOption {
	return func(s *Session) {
		s.microphone = microphone
	}
}

func WithSpeechConfig(config SpeechConfig) SessionOption {
	return func(s *Session) {
		s.speechConfig = config
	}
}

// WithMaxDuration bounds how long a single connection may stay open.
func WithMaxDuration(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.maxDuration = d
		}
	}
}

// WithMaxIdle sets how long the socket may go without inbound traffic before
// a keepalive is sent.
func WithMaxIdle(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.maxIdle = d
		}
	}
}

// WithTokenLifetime sets how long an issued token is reused across connects.
func WithTokenLifetime(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.tokenLifetime = d
		}
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the wall clock used for X-Timestamp headers.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func lookupAPIKey() string {
	apiKey, _ := os.LookupEnv(apiKeyEnv)
	return apiKey
}
