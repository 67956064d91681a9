package auth

// PublicEndpoints are served without a token: probes and Prometheus scraping.
var PublicEndpoints = []string{
	"/health",
	"/ready",
	"/live",
	"/metrics",
}

// IsPublicEndpoint reports whether path is public. Only exact matches (optionally with a
// trailing slash) count, so /health/detail and /healthcheck stay protected.
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if path == endpoint || path == endpoint+"/" {
			return true
		}
	}
	return false
}
