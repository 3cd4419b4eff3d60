package model

import "time"

// Heading is a date-bearing section title and the line it starts on.
type Heading struct {
	Date time.Time
	Line int
}

// Headings keeps headings in descending line order so the nearest heading
// at or above a line is the first match of a forward scan.
type Headings struct {
	items []Heading
}

// Add inserts h before the first heading on a lower line. Headings sharing a
// line keep insertion order, so the earliest added one wins lookups.
func (hs *Headings) Add(h Heading) {
	for i, existing := range hs.items {
		if existing.Line < h.Line {
			hs.items = append(hs.items, Heading{})
			copy(hs.items[i+1:], hs.items[i:])
			hs.items[i] = h
			return
		}
	}
	hs.items = append(hs.items, h)
}

func (hs *Headings) Len() int {
	return len(hs.items)
}

// ForLine returns the nearest heading at or before line.
func (hs *Headings) ForLine(line int) (Heading, bool) {
	for _, h := range hs.items {
		if h.Line <= line {
			return h, true
		}
	}
	return Heading{}, false
}
