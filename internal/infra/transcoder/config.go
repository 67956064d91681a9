package transcoder

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"relayfeed/internal/resilience/retry"
)

// DefaultDownloadTemplate rewrites a tracker landing id into a direct torrent link.
const DefaultDownloadTemplate = "https://nyaa.si/download/%s.torrent"

// Config contains configuration for the transcode gateway.
type Config struct {
	// Endpoint receives the submission form (POST).
	Endpoint string

	// ProbeURL is checked with a GET before each submission. Empty disables the probe.
	ProbeURL string

	// DownloadTemplate formats a landing-link id into a download link. Must contain one %s.
	DownloadTemplate string

	// ResolvePage enables scraping the landing page for a .torrent or magnet link
	// when the link does not match the /view/<id> pattern.
	ResolvePage bool

	// Timeout bounds a single submission attempt. Transcoding is slow, so this is long.
	Timeout time.Duration

	// ProbeTimeout bounds the availability probe.
	ProbeTimeout time.Duration

	// CRF and Preset are forwarded to the encoder.
	CRF    int
	Preset string

	// Retry controls the attempt budget and backoff between attempts.
	Retry retry.Config

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultConfig returns the gateway defaults: 30 minute attempts, 3 attempts, crf 28, ultrafast.
func DefaultConfig() Config {
	return Config{
		DownloadTemplate: DefaultDownloadTemplate,
		Timeout:          30 * time.Minute,
		ProbeTimeout:     10 * time.Second,
		CRF:              28,
		Preset:           "ultrafast",
		Retry:            retry.TranscodeConfig(),
		UserAgent:        "RelayFeedBot/1.0",
	}
}

// Validate checks the configuration and returns the first problem found.
func (c Config) Validate() error {
	if err := validateHTTPURL("endpoint", c.Endpoint); err != nil {
		return err
	}
	if c.ProbeURL != "" {
		if err := validateHTTPURL("probe url", c.ProbeURL); err != nil {
			return err
		}
	}
	if strings.Count(c.DownloadTemplate, "%s") != 1 {
		return fmt.Errorf("download template must contain exactly one %%s: %q", c.DownloadTemplate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.CRF < 0 || c.CRF > 51 {
		return fmt.Errorf("crf must be between 0 and 51, got %d", c.CRF)
	}
	return nil
}

func validateHTTPURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must have a host", name)
	}
	return nil
}
