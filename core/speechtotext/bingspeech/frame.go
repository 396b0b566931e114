package bingspeech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-speechbot/core/sessions"
)

const (
	headerPath        = "Path"
	headerRequestID   = "X-RequestId"
	headerTimestamp   = "X-Timestamp"
	headerContentType = "Content-Type"

	crlf = "\r\n"

	// MaxHeaderLength is the largest header block an audio frame can carry.
	MaxHeaderLength = math.MaxUint16
)

var ErrInvalidHeader = errors.New("invalid header")

// Header is one "Key: value" line of a frame header block.
type Header struct {
	Key   string
	Value string
}

// Frame is a parsed speech socket message. Headers keep wire order.
type Frame struct {
	Headers []Header
	Body    []byte
}

// Get returns the value of the first header named key. Keys are case-sensitive.
func (f Frame) Get(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

func (f Frame) Path() string {
	path, _ := f.Get(headerPath)
	return path
}

func (f Frame) RequestID() string {
	requestID, _ := f.Get(headerRequestID)
	return requestID
}

// EncodeHeader serializes headers in the given order, each terminated by CRLF,
// followed by the blank line that ends the block.
func EncodeHeader(headers ...Header) ([]byte, error) {
	var sb strings.Builder
	for _, h := range headers {
		if err := validateHeader(h); err != nil {
			return nil, err
		}
		sb.WriteString(h.Key)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString(crlf)
	}
	sb.WriteString(crlf)
	return []byte(sb.String()), nil
}

func validateHeader(h Header) error {
	if h.Key == "" {
		return fmt.Errorf("%w: %w: empty key", sessions.ErrMalformedFrame, ErrInvalidHeader)
	}
	for i := 0; i < len(h.Key); i++ {
		c := h.Key[i]
		if c > 0x7f || c == ':' || c == '\r' || c == '\n' {
			return fmt.Errorf("%w: %w: key %q", sessions.ErrMalformedFrame, ErrInvalidHeader, h.Key)
		}
	}
	if strings.ContainsAny(h.Value, "\r\n") {
		return fmt.Errorf("%w: %w: value of %q contains a line break", sessions.ErrMalformedFrame, ErrInvalidHeader, h.Key)
	}
	return nil
}

// EncodeAudioFrame prefixes header with its length as a big-endian uint16 and
// appends body. A nil or empty body encodes the end-of-turn marker, which is
// still a valid frame and must be sent.
func EncodeAudioFrame(header, body []byte) ([]byte, error) {
	if len(header) > MaxHeaderLength {
		return nil, fmt.Errorf("%w: %w: header length %d exceeds %d", sessions.ErrMalformedFrame, ErrInvalidHeader, len(header), MaxHeaderLength)
	}

	frame := make([]byte, 2, 2+len(header)+len(body))
	binary.BigEndian.PutUint16(frame, uint16(len(header)))
	frame = append(frame, header...)
	frame = append(frame, body...)
	return frame, nil
}

// EncodeControlFrame builds a text frame: header block followed by body.
func EncodeControlFrame(body []byte, headers ...Header) ([]byte, error) {
	header, err := EncodeHeader(headers...)
	if err != nil {
		return nil, err
	}
	return append(header, body...), nil
}

// DecodeHeader parses a header block produced by EncodeHeader. Parsing stops at
// the first blank line. A single space after the colon is dropped.
func DecodeHeader(block []byte) ([]Header, error) {
	headers := []Header{}
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			break
		}
		header, ok := parseHeaderLine(line)
		if !ok {
			return nil, fmt.Errorf("%w: header line %q", sessions.ErrMalformedFrame, line)
		}
		headers = append(headers, header)
	}
	return headers, nil
}

// parseHeaderLine matches a single "Key:value" line.
func parseHeaderLine(line string) (Header, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found || key == "" {
		return Header{}, false
	}
	return Header{Key: key, Value: strings.TrimPrefix(value, " ")}, true
}

// DecodeTextMessage parses an inbound text frame. Everything before the first
// '{' is scanned for "Key:value" lines; blank and unrecognised lines are
// skipped. The body starts at the first '{' in the message.
func DecodeTextMessage(raw []byte) (Frame, error) {
	block := raw
	bodyStart := bytes.IndexByte(raw, '{')
	if bodyStart >= 0 {
		block = raw[:bodyStart]
	}

	frame := Frame{Headers: []Header{}}
	for _, line := range strings.Split(string(block), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if header, ok := parseHeaderLine(line); ok {
			frame.Headers = append(frame.Headers, header)
		}
	}
	if bodyStart >= 0 {
		frame.Body = raw[bodyStart:]
	}

	switch {
	case frame.Path() == "":
		return Frame{}, fmt.Errorf("%w: missing Path header", sessions.ErrMalformedFrame)
	case frame.RequestID() == "":
		return Frame{}, fmt.Errorf("%w: missing X-RequestId header", sessions.ErrMalformedFrame)
	case len(frame.Body) == 0:
		return Frame{}, fmt.Errorf("%w: missing body", sessions.ErrMalformedFrame)
	}
	return frame, nil
}

const timestampLayout = "2006-01-02T15:04:05.0000000Z"

// Timestamp formats t as an ISO-8601 UTC timestamp with fractional seconds.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// NewID returns a random lowercase hex UUID without dashes.
func NewID() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
