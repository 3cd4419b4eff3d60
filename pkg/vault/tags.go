package vault

import (
	"regexp"
	"strings"
)

var (
	tagRe       = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)
	tagSplitter = regexp.MustCompile(`[\s,]+`)
)

// ParseTags splits a comma or whitespace separated tag list. Leading '#'
// marks are dropped and tags are lower-cased.
func ParseTags(list string) []string {
	var out []string
	for _, t := range tagSplitter.Split(list, -1) {
		t = strings.ToLower(strings.TrimLeft(t, "#"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func lineTags(line string) map[string]bool {
	tags := map[string]bool{}
	for _, m := range tagRe.FindAllStringSubmatch(line, -1) {
		tags[strings.ToLower(m[1])] = true
	}
	return tags
}

// tagsAllow applies the include and exclude tag filters to a line. With an
// include list a line needs at least one of its tags; any excluded tag drops it.
func (s *Scanner) tagsAllow(line string) bool {
	include, exclude := s.Options.IncludeTags, s.Options.ExcludeTags
	if len(include) == 0 && len(exclude) == 0 {
		return true
	}
	tags := lineTags(line)
	for _, t := range exclude {
		if tags[normalizeTag(t)] {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, t := range include {
		if tags[normalizeTag(t)] {
			return true
		}
	}
	return false
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(t), "#"))
}
