package bingspeech

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
)

const (
	DefaultHost = "speech.platform.bing.com"

	recognitionPath = "/speech/recognition/interactive/cognitiveservices/v1"
	clientVersion   = "1.0.0"
)

// Language is a recognition locale such as "en-GB".
type Language string

const (
	LanguageEnglishGB Language = "en-GB"
	LanguageEnglishUS Language = "en-US"
)

const DefaultLanguage = LanguageEnglishGB

// ParseLanguage accepts both "en-GB" and the underscore form "en_GB".
func ParseLanguage(value string) (Language, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", "-")
	lang, region, found := strings.Cut(value, "-")
	if !found || len(lang) < 2 || len(region) < 2 {
		return "", fmt.Errorf("invalid language %q", value)
	}
	return Language(strings.ToLower(lang) + "-" + strings.ToUpper(region)), nil
}

func (l Language) String() string { return string(l) }

// Endpoint returns the interactive recognition socket URL for host and language.
func Endpoint(host string, language Language) string {
	if host == "" {
		host = DefaultHost
	}
	if language == "" {
		language = DefaultLanguage
	}
	endpoint := url.URL{Scheme: "wss", Host: host, Path: recognitionPath}
	query := url.Values{}
	query.Set("format", "simple")
	query.Set("language", language.String())
	endpoint.RawQuery = query.Encode()
	return endpoint.String()
}

// SpeechConfig is the body of the speech.config message sent once per
// connection before any audio.
type SpeechConfig struct {
	Context SpeechContext `json:"context"`
}

type SpeechContext struct {
	System SystemInfo `json:"system"`
	OS     OSInfo     `json:"os"`
	Device DeviceInfo `json:"device"`
}

type SystemInfo struct {
	Version string `json:"version"`
}

type OSInfo struct {
	Platform string `json:"platform"`
	Name     string `json:"name"`
	Version  string `json:"version"`
}

type DeviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Version      string `json:"version"`
}

// DefaultSpeechConfig describes the running process.
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Context: SpeechContext{
			System: SystemInfo{Version: clientVersion},
			OS: OSInfo{
				Platform: runtime.GOOS,
				Name:     runtime.GOOS + "/" + runtime.GOARCH,
				Version:  runtime.Version(),
			},
			Device: DeviceInfo{
				Manufacturer: "unknown",
				Model:        runtime.GOARCH,
				Version:      clientVersion,
			},
		},
	}
}
