package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// StagingCastDao maps to 'staging.farcaster_casts', the COPY target for cast parquet files.
// Column order follows the parquet export; mentions arrive as JSON text.
type StagingCastDao struct {
	bun.BaseModel     `bun:"table:staging.farcaster_casts,alias:sc"`
	ID                int64      `bun:"id,type:bigint"`
	CreatedAt         time.Time  `bun:"created_at,type:timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,type:timestamp"`
	DeletedAt         *time.Time `bun:"deleted_at,type:timestamp"`
	Timestamp         time.Time  `bun:"timestamp,type:timestamp"`
	Fid               int64      `bun:"fid,type:bigint"`
	Hash              []byte     `bun:"hash,type:bytea"`
	ParentHash        []byte     `bun:"parent_hash,type:bytea"`
	ParentFid         *int64     `bun:"parent_fid,type:bigint"`
	ParentURL         *string    `bun:"parent_url,type:text"`
	Text              string     `bun:"text,type:text"`
	Embeds            *string    `bun:"embeds,type:text"`
	Mentions          *string    `bun:"mentions,type:text"`
	MentionsPositions *string    `bun:"mentions_positions,type:text"`
	RootParentHash    []byte     `bun:"root_parent_hash,type:bytea"`
	RootParentURL     *string    `bun:"root_parent_url,type:text"`
}

// CastDao maps to 'production.farcaster_casts'.
type CastDao struct {
	bun.BaseModel          `bun:"table:production.farcaster_casts,alias:pc"`
	ID                     int64      `bun:"id,pk,type:bigint"`
	CreatedAt              time.Time  `bun:"created_at,type:timestamp"`
	UpdatedAt              time.Time  `bun:"updated_at,type:timestamp"`
	DeletedAt              *time.Time `bun:"deleted_at,type:timestamp"`
	Timestamp              time.Time  `bun:"timestamp,type:timestamp"`
	Fid                    int64      `bun:"fid,notnull,type:bigint"`
	Hash                   []byte     `bun:"hash,notnull,type:bytea"`
	ParentHash             []byte     `bun:"parent_hash,type:bytea"`
	ParentFid              *int64     `bun:"parent_fid,type:bigint"`
	ParentURL              *string    `bun:"parent_url,type:text"`
	Text                   string     `bun:"text,type:text"`
	Embeds                 *string    `bun:"embeds,type:text"`
	RootParentHash         []byte     `bun:"root_parent_hash,type:bytea"`
	RootParentURL          *string    `bun:"root_parent_url,type:text"`
	MentionedFids          []int64    `bun:"mentioned_fids,array,type:bigint[]"`
	MentionsPositionsArray []int32    `bun:"mentions_positions_array,array,type:integer[]"`
}
