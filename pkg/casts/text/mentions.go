// Package text rebuilds and normalizes cast text before it is embedded.
package text

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	// ErrMentionMismatch is returned when mention fids and positions differ in length.
	ErrMentionMismatch = errors.New("mentions and mention positions differ in length")
	// ErrInvalidOffset is returned for a mention offset that is negative, past the
	// end of the text or inside a multi-byte character.
	ErrInvalidOffset = errors.New("invalid mention offset")
)

// NameFunc resolves a mentioned fid to its handle.
type NameFunc func(fid int64) (string, bool)

type mention struct {
	offset int
	fid    int64
}

// InsertMentions inlines "@handle" for every mention. positions are byte
// offsets into the UTF-8 text as stored by hubs, all relative to the
// original text. Mentions without a known handle fall back to "@<fid>".
func InsertMentions(s string, positions []int, fids []int64, names NameFunc) (string, error) {
	if len(positions) != len(fids) {
		return "", fmt.Errorf("%w: %d positions, %d fids", ErrMentionMismatch, len(positions), len(fids))
	}
	if len(fids) == 0 {
		return s, nil
	}

	mentions := make([]mention, len(fids))
	for i := range fids {
		off := positions[i]
		if off < 0 || off > len(s) || (off < len(s) && !utf8.RuneStart(s[off])) {
			return "", fmt.Errorf("%w: %d in %d-byte text", ErrInvalidOffset, off, len(s))
		}
		mentions[i] = mention{offset: off, fid: fids[i]}
	}
	sort.SliceStable(mentions, func(i, j int) bool { return mentions[i].offset < mentions[j].offset })

	var b strings.Builder
	b.Grow(len(s) + 16*len(mentions))
	last := 0
	for _, m := range mentions {
		b.WriteString(s[last:m.offset])
		b.WriteString(Handle(m.fid, names))
		last = m.offset
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// Handle renders the inline form of a mention.
func Handle(fid int64, names NameFunc) string {
	if names != nil {
		if name, ok := names(fid); ok && name != "" {
			return "@" + name
		}
	}
	return "@" + strconv.FormatInt(fid, 10)
}
