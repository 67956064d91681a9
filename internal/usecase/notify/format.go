package notify

import (
	"fmt"
	"html"
	"strings"

	"relayfeed/internal/domain/entity"
)

// FormatNotice renders record as Telegram HTML.
//
// Release names that parse ("[Group] Show - 05 (720p)") are shown as show, episode,
// quality and group lines; anything else falls back to the raw title.
func FormatNotice(record *entity.DispatchRecord) string {
	var b strings.Builder

	info, ok := entity.ParseReleaseName(record.Title)
	if ok {
		fmt.Fprintf(&b, "<b>☗   %s</b>\n\n", html.EscapeString(info.Show))
		fmt.Fprintf(&b, "<b>⦿   Episode:</b> %s\n", html.EscapeString(info.Episode))
		if info.Quality != "" {
			fmt.Fprintf(&b, "<b>⦿   Quality:</b> %s\n", html.EscapeString(info.Quality))
		}
		if info.Group != "" {
			fmt.Fprintf(&b, "<b>⦿   Group:</b> %s\n", html.EscapeString(info.Group))
		}
	} else {
		fmt.Fprintf(&b, "<b>☗   %s</b>\n\n", html.EscapeString(record.Title))
	}

	if record.Outcome == entity.OutcomeSuccess {
		b.WriteString("<b>⦿   Status:</b> ✅ Uploaded")
		return b.String()
	}

	b.WriteString("<b>⦿   Status:</b> ❌ Failed\n")
	fmt.Fprintf(&b, "<b>◆   Reason:</b> %s", html.EscapeString(record.FailureReason))
	if record.SourceLink != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Source</a>", html.EscapeString(record.SourceLink))
	}
	return b.String()
}
