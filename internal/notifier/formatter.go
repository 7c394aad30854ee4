package notifier

import (
	"fmt"
	"html"
	"strings"

	"MarketArchive/internal/calendar"
	"MarketArchive/internal/model"
)

// FormatRunSummary formats a refresh run into a Telegram message.
func FormatRunSummary(r *model.RunReport) string {
	var b strings.Builder

	ok := r.Succeeded(true)
	icon := "✅"
	switch {
	case len(r.Outcomes) == 0:
		icon = "ℹ️"
	case ok == 0:
		icon = "❌"
	case ok < len(r.Outcomes):
		icon = "⚠️"
	}

	b.WriteString(fmt.Sprintf("%s <b>MarketArchive refresh</b> | %s → %s\n",
		icon, calendar.Format(r.Start), calendar.Format(r.End)))
	b.WriteString(fmt.Sprintf("Saved %d/%d tickers\n\n", ok, len(r.Outcomes)))

	for _, o := range r.Outcomes {
		name := html.EscapeString(o.Ticker)
		if o.Rows == 0 {
			b.WriteString(fmt.Sprintf("  %s: no data\n", name))
			continue
		}
		line := fmt.Sprintf("  %s: %d rows (%s), last %s %.2f", name, o.Rows, o.Source, calendar.Format(o.LastDate), o.LastClose)
		if o.Path == "" {
			line += " [not saved]"
		}
		b.WriteString(line + "\n")
	}

	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("\nrun %s", r.RunID))
	}
	return b.String()
}

// FormatFailure formats an aborted refresh. The error text is escaped since
// upstream errors can carry raw HTTP bodies.
func FormatFailure(err error) string {
	return "❌ <b>MarketArchive refresh failed</b>\n\n" + html.EscapeString(err.Error())
}
