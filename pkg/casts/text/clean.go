package text

import (
	"regexp"
	"strings"
)

var (
	escapedNewlines = strings.NewReplacer(`\r\n`, "\n", `\n`, "\n", `\r`, "\n", "\r\n", "\n", "\r", "\n")

	mdImage    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdHeading  = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	mdListItem = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
	htmlTag    = regexp.MustCompile(`<[^>]*>`)
	emphasis   = regexp.MustCompile(`[#*]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanForEmbedding flattens cast text to a single lowercase line with
// markdown, HTML and line breaks removed.
func CleanForEmbedding(s string) string {
	s = escapedNewlines.Replace(s)
	s = mdImage.ReplaceAllString(s, "")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdListItem.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\n", " ")
	s = htmlTag.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.ToLower(strings.TrimSpace(s))
}
