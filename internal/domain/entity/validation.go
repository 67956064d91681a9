package entity

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// maxURLLength defines the maximum allowed length for URLs to prevent DoS attacks.
const maxURLLength = 2048

// ValidateSourceLink validates a link submitted for dispatch by an operator.
// http(s) links must have a public host; magnet URIs are accepted as-is.
// Returns a ValidationError if the link is invalid or empty.
func ValidateSourceLink(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Field: "link", Message: "link is required"}
	}
	if len(rawURL) > maxURLLength {
		return &ValidationError{
			Field:   "link",
			Message: fmt.Sprintf("link must not exceed %d characters", maxURLLength),
		}
	}
	if strings.HasPrefix(rawURL, "magnet:?") {
		return nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return &ValidationError{Field: "link", Message: "link is not a valid URL"}
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "link", Message: "link must use http, https or magnet scheme"}
	}
	if parsedURL.Host == "" {
		return &ValidationError{Field: "link", Message: "link must have a valid host"}
	}

	// literal addresses only; hostnames are resolved by the transcode service, not here
	if ip := net.ParseIP(parsedURL.Hostname()); ip != nil && isPrivateIP(ip) {
		return &ValidationError{Field: "link", Message: "link cannot point to private network"}
	}
	return nil
}

// isPrivateIP checks if an IP address is in a private or restricted range:
// loopback, link-local (including cloud metadata) and RFC 1918 networks.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return true
	}

	privateIPv4Ranges := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
	}
	for _, cidr := range privateIPv4Ranges {
		_, subnet, _ := net.ParseCIDR(cidr)
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}
