// Package sharelink builds the user-facing download link for a hosted artifact.
package sharelink

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// payloadPrefix is understood by the file-store bot's /start handler.
const payloadPrefix = "get-"

// Encoder turns an artifact id into a shareable link.
type Encoder struct {
	botUsername string
	template    string
}

// New returns an Encoder. base is either a Telegram bot username (with or without a leading @)
// or an http(s) URL template containing one %s that receives the artifact id.
func New(base string) (*Encoder, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, fmt.Errorf("share link base is empty")
	}

	if strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://") {
		if strings.Count(base, "%s") != 1 {
			return nil, fmt.Errorf("share link template must contain exactly one %%s: %q", base)
		}
		if _, err := url.Parse(strings.Replace(base, "%s", "x", 1)); err != nil {
			return nil, fmt.Errorf("share link template: %w", err)
		}
		return &Encoder{template: base}, nil
	}

	name := strings.TrimPrefix(base, "@")
	if name == "" || strings.ContainsAny(name, "/?# ") {
		return nil, fmt.Errorf("invalid bot username %q", base)
	}
	return &Encoder{botUsername: name}, nil
}

// MakeShareableLink returns the link for artifactID, or "" when artifactID is empty.
func (e *Encoder) MakeShareableLink(artifactID string) string {
	artifactID = strings.TrimSpace(artifactID)
	if artifactID == "" {
		return ""
	}
	if e.template != "" {
		return fmt.Sprintf(e.template, url.PathEscape(artifactID))
	}
	return "https://t.me/" + e.botUsername + "?start=" + EncodePayload(artifactID)
}

// EncodePayload returns the unpadded URL-safe base64 of "get-"+artifactID.
func EncodePayload(artifactID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payloadPrefix + artifactID))
}

// DecodePayload reverses EncodePayload. Padded input is accepted.
func DecodePayload(payload string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	s := string(raw)
	if !strings.HasPrefix(s, payloadPrefix) {
		return "", fmt.Errorf("payload missing %q prefix", payloadPrefix)
	}
	return strings.TrimPrefix(s, payloadPrefix), nil
}
