package ical

import (
	"strings"
)

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
	";", `\;`,
	",", `\,`,
)

// Escape applies iCalendar TEXT escaping in a single pass, so the backslashes
// it inserts are never escaped again.
func Escape(s string) string {
	return escaper.Replace(s)
}

const uriKeep = ";,/?:@&=+$-_.!~*'()#"

// EncodeURI percent-encodes s the way a browser's encodeURI does: reserved
// URI characters and unreserved marks are kept, everything else is written
// as %XX of its UTF-8 bytes.
func EncodeURI(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isAlnum(c) || strings.IndexByte(uriKeep, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Normalize collapses blank lines, terminates every line with CRLF and
// replaces invalid UTF-8. Lines are not folded at 75 octets.
func Normalize(calendar string) string {
	calendar = strings.ReplaceAll(calendar, "\r\n", "\n")
	calendar = strings.ReplaceAll(calendar, "\r", "\n")
	lines := strings.Split(calendar, "\n")
	var b strings.Builder
	b.Grow(len(calendar) + len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteString("\r\n")
	}
	return strings.ToValidUTF8(b.String(), "�")
}
