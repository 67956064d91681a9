package transcoder

import (
	"bytes"
	"encoding/json"
	"strings"

	"relayfeed/internal/domain/entity"
)

const defaultFailureReason = "transcode failed"

// normalizeEnvelope maps a 2xx response body onto an Outcome.
//
// Accepted shapes:
//
//	{"status": "ok"|"success", "artifactId"|"artifact_id"|"id": ..., "resultRef"|"result_ref"|"url": ...}
//	{"status": "failed"|"error", "error"|"message": ...}
//
// Anything else, including an ok status without an artifact id, returns ErrInvalidResponse.
func normalizeEnvelope(body []byte) (entity.Outcome, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env map[string]any
	if err := dec.Decode(&env); err != nil || env == nil {
		return entity.Outcome{}, ErrInvalidResponse
	}

	status, _ := env["status"].(string)
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "success":
		artifactID := firstString(env, "artifactId", "artifact_id", "id")
		if artifactID == "" {
			return entity.Outcome{}, ErrInvalidResponse
		}
		return entity.Succeeded(artifactID, firstString(env, "resultRef", "result_ref", "url")), nil
	case "failed", "error":
		reason := firstString(env, "error", "message")
		if reason == "" {
			reason = defaultFailureReason
		}
		return entity.Failed(reason), nil
	default:
		return entity.Outcome{}, ErrInvalidResponse
	}
}

// firstString returns the first key holding a non-empty string or number.
func firstString(env map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := env[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case json.Number:
			return v.String()
		}
	}
	return ""
}
