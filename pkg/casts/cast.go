// Package casts turns top-level casts into embedding jobs and grant update checks.
package casts

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	"github.com/rocketman-21/farcaster-cron/pkg/casts/text"
	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
)

// ErrMentionMismatch marks a cast whose mention arrays disagree in length.
var ErrMentionMismatch = text.ErrMentionMismatch

// Cast is a cast row normalized from either the staging or the production form.
type Cast struct {
	ID               int64
	Fid              int64
	Hash             []byte
	ParentHash       []byte
	ParentURL        string
	RootParentURL    string
	Text             string
	Embeds           string
	Mentions         []int64
	MentionPositions []int
	AuthorFname      string
}

// IsReply reports whether the cast answers another cast.
func (c Cast) IsReply() bool {
	return len(c.ParentHash) > 0
}

// stagingRow is a staging cast joined with its author's handle.
type stagingRow struct {
	dao.StagingCastDao `bun:",extend"`
	AuthorFname        *string `bun:"author_fname,scanonly"`
}

// ProductionRow is a production cast joined with its author's handle.
type ProductionRow struct {
	dao.CastDao `bun:",extend"`
	AuthorFname *string `bun:"author_fname,scanonly"`
}

func (r stagingRow) cast() (Cast, error) {
	c := Cast{
		ID:            r.ID,
		Fid:           r.Fid,
		Hash:          r.Hash,
		ParentHash:    r.ParentHash,
		ParentURL:     deref(r.ParentURL),
		RootParentURL: deref(r.RootParentURL),
		Text:          r.Text,
		Embeds:        deref(r.Embeds),
		AuthorFname:   deref(r.AuthorFname),
	}
	if err := decodeJSONArray(r.Mentions, &c.Mentions); err != nil {
		return c, apperrors.BadRequestError(err, fmt.Sprintf("cast %d mentions", r.ID))
	}
	if err := decodeJSONArray(r.MentionsPositions, &c.MentionPositions); err != nil {
		return c, apperrors.BadRequestError(err, fmt.Sprintf("cast %d mention positions", r.ID))
	}
	return c, nil
}

// Cast converts the production form.
func (r ProductionRow) Cast() Cast {
	positions := make([]int, len(r.MentionsPositionsArray))
	for i, p := range r.MentionsPositionsArray {
		positions[i] = int(p)
	}
	return Cast{
		ID:               r.ID,
		Fid:              r.Fid,
		Hash:             r.Hash,
		ParentHash:       r.ParentHash,
		ParentURL:        deref(r.ParentURL),
		RootParentURL:    deref(r.RootParentURL),
		Text:             r.Text,
		Embeds:           deref(r.Embeds),
		Mentions:         r.MentionedFids,
		MentionPositions: positions,
		AuthorFname:      deref(r.AuthorFname),
	}
}

func decodeJSONArray[T any](raw *string, dst *[]T) error {
	if raw == nil || *raw == "" || *raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(*raw), dst)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
