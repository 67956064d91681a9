package respond

import "regexp"

var (
	// Telegram bot tokens look like 123456789:AA...; the numeric bot id is kept.
	botTokenPattern = regexp.MustCompile(`(\d{6,12}):[A-Za-z0-9_-]{30,}`)

	// webhook URLs embed their credential in the path
	discordWebhookPattern = regexp.MustCompile(`(https://(?:discord|discordapp)\.com/api/webhooks/\d+)/[A-Za-z0-9_-]+`)
	slackWebhookPattern   = regexp.MustCompile(`(https://hooks\.slack\.com/services)/[A-Za-z0-9/]+`)

	// user:password@ in DSNs and redis URLs; the user part may be empty
	dsnPasswordPattern = regexp.MustCompile(`://([^:/@]*):([^@/]+)@`)

	bearerPattern = regexp.MustCompile(`(?i)(bearer )[A-Za-z0-9._-]+`)
)

// SanitizeError returns err's message with credentials masked.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString masks credentials in s.
func SanitizeString(s string) string {
	s = botTokenPattern.ReplaceAllString(s, "$1:****")
	s = discordWebhookPattern.ReplaceAllString(s, "$1/****")
	s = slackWebhookPattern.ReplaceAllString(s, "$1/****")
	s = dsnPasswordPattern.ReplaceAllString(s, "://$1:****@")
	s = bearerPattern.ReplaceAllString(s, "${1}****")
	return s
}
