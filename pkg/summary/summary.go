// Package summary turns the text of a task line into its display summary.
package summary

import (
	"regexp"
	"strings"

	"github.com/harrisonrobin/mdical/pkg/dates"
	"github.com/harrisonrobin/mdical/pkg/model"
)

var (
	// [[target|Title]]
	wikilinkTitleRe = regexp.MustCompile(`\[\[[^\]]*\|+([^\]]+)\]\]`)
	// [[target]]
	bareWikilinkRe = regexp.MustCompile(`\[\[([^|\]]+)\]\]`)
	anyWikilinkRe  = regexp.MustCompile(`\[\[.*?\]\]`)
	// [Title](target)
	markdownLinkRe = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	anyMarkdownRe  = regexp.MustCompile(`\[[^\]]*\]\([^)]*\)`)

	recurringStop = regexp.MustCompile(`\s(?:` + dates.EmojiAlternation + `|\d{4}-\d{2}-\d{2})`)
	emojiDateRe   = regexp.MustCompile(`\s*(?:` + dates.EmojiAlternation + `)\s?\d{4}-\d{2}-\d{1,2}\s*`)
	fieldDateRe   = regexp.MustCompile(`(?i)\s*\[(?:created|scheduled|start|due|done|completion|cancelled)::\s?\d{4}-\d{2}-\d{1,2}\s*\]`)
	bareDateRe    = regexp.MustCompile(`\s*\d{4}-\d{2}-\d{1,2}`)
	spaceRunRe    = regexp.MustCompile(`\s{2,}`)
)

// Clean strips recurrence rules, dates and (per policy) links from text and
// normalizes whitespace. The steps run in a fixed order.
func Clean(text string, links model.LinkPolicy) string {
	text = removeRecurrence(text)

	switch links {
	case model.LinksKeepTitle:
		text = wikilinkTitleRe.ReplaceAllString(text, "${1}")
		text = bareWikilinkRe.ReplaceAllString(text, "")
		text = markdownLinkRe.ReplaceAllString(text, "${1}")
	case model.LinksPreferTitle:
		text = wikilinkTitleRe.ReplaceAllString(text, "${1}")
		text = bareWikilinkRe.ReplaceAllString(text, "${1}")
		text = markdownLinkRe.ReplaceAllString(text, "${1}")
	case model.LinksRemove:
		text = anyWikilinkRe.ReplaceAllString(text, "")
		text = anyMarkdownRe.ReplaceAllString(text, "")
	}

	text = emojiDateRe.ReplaceAllString(text, " ")
	text = fieldDateRe.ReplaceAllString(text, " ")
	text = bareDateRe.ReplaceAllString(text, " ")

	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// removeRecurrence drops "🔁 every week" style rules up to the next date
// marker or the end of the line. Recurrence itself is not interpreted.
func removeRecurrence(text string) string {
	for {
		i := strings.Index(text, dates.RecurringEmoji)
		if i < 0 {
			return text
		}
		rest := text[i+len(dates.RecurringEmoji):]
		end := len(rest)
		if loc := recurringStop.FindStringIndex(rest); loc != nil {
			end = loc[0]
		}
		text = text[:i] + rest[end:]
	}
}
