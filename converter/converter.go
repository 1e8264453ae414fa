// Package converter contains payload converters that turn a received message
// body into a handler argument and a handler return value back into a
// message body. Converters are tried in order by a Chain; the first one that
// accepts the content type wins.
package converter

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/tinexw/sqslistener"
)

// Content types handled by the built-in converters.
const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)

var (
	// ErrNoSuitableConverter is returned by a Chain when no converter
	// accepts a message's content type or a return value's Go type.
	ErrNoSuitableConverter = errors.New("no suitable converter")
)

// Converter converts between message bodies and Go values.
type Converter interface {
	// CanRead reports whether Read can handle the given content type.
	CanRead(contentType string) bool
	// Read converts the message body into a handler argument.
	Read(msg sqslistener.Message) (any, error)
	// CanWrite reports whether Write can handle the given value.
	CanWrite(payload any) bool
	// Write converts a value into a message body and the content type to
	// send with it.
	Write(payload any) (body string, contentType string, err error)
}

// Chain tries each converter in order. The plain-text converter is expected
// first, structured converters after it.
type Chain []Converter

// Default returns the standard chain: text first, then JSON.
func Default() Chain {
	return Chain{Text{}, JSON{}}
}

// Read converts an incoming message with the first converter accepting its
// content type.
func (c Chain) Read(msg sqslistener.Message) (any, error) {
	ct := normalize(msg.ContentType())
	for _, conv := range c {
		if conv.CanRead(ct) {
			return conv.Read(msg)
		}
	}
	return nil, fmt.Errorf("%w for content type %q", ErrNoSuitableConverter, msg.ContentType())
}

// Write converts an outgoing value with the first converter accepting it.
func (c Chain) Write(payload any) (string, string, error) {
	for _, conv := range c {
		if conv.CanWrite(payload) {
			return conv.Write(payload)
		}
	}
	return "", "", fmt.Errorf("%w for type %T", ErrNoSuitableConverter, payload)
}

// normalize strips parameters such as charset from a content type header.
func normalize(contentType string) string {
	if contentType == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// Text converts plain-text bodies. It also accepts messages without a
// content type, matching the behaviour of queues fed by plain SendMessage
// calls.
type Text struct{}

func (Text) CanRead(contentType string) bool {
	return contentType == "" || contentType == ContentTypeText
}

func (Text) Read(msg sqslistener.Message) (any, error) {
	return msg.Body, nil
}

func (Text) CanWrite(payload any) bool {
	switch payload.(type) {
	case string, []byte, fmt.Stringer:
		return true
	}
	return false
}

func (Text) Write(payload any) (string, string, error) {
	switch v := payload.(type) {
	case string:
		return v, ContentTypeText, nil
	case []byte:
		return string(v), ContentTypeText, nil
	case fmt.Stringer:
		return v.String(), ContentTypeText, nil
	}
	return "", "", fmt.Errorf("text converter: unsupported type %T", payload)
}

// JSON converts application/json bodies. Read unmarshals into a generic
// value (map, slice, string, float64...); handlers wanting concrete types
// use dispatch.Typed, which decodes the raw body itself.
type JSON struct{}

func (JSON) CanRead(contentType string) bool {
	return contentType == ContentTypeJSON
}

func (JSON) Read(msg sqslistener.Message) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(msg.Body), &v); err != nil {
		return nil, fmt.Errorf("decode JSON payload: %w", err)
	}
	return v, nil
}

func (JSON) CanWrite(payload any) bool {
	return payload != nil
}

func (JSON) Write(payload any) (string, string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("encode JSON payload: %w", err)
	}
	return string(b), ContentTypeJSON, nil
}
