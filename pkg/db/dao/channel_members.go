package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// StagingChannelMemberDao maps to 'staging.farcaster_channel_members'.
type StagingChannelMemberDao struct {
	bun.BaseModel `bun:"table:staging.farcaster_channel_members,alias:sm"`
	ID            int64      `bun:"id,type:bigint"`
	CreatedAt     time.Time  `bun:"created_at,type:timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,type:timestamp"`
	DeletedAt     *time.Time `bun:"deleted_at,type:timestamp"`
	Timestamp     time.Time  `bun:"timestamp,type:timestamp"`
	Fid           int64      `bun:"fid,type:bigint"`
	ChannelID     string     `bun:"channel_id,type:text"`
}

// ChannelMemberDao maps to 'production.farcaster_channel_members'.
type ChannelMemberDao struct {
	bun.BaseModel `bun:"table:production.farcaster_channel_members,alias:pm"`
	ID            int64      `bun:"id,pk,type:bigint"`
	CreatedAt     time.Time  `bun:"created_at,type:timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,type:timestamp"`
	DeletedAt     *time.Time `bun:"deleted_at,type:timestamp"`
	Timestamp     time.Time  `bun:"timestamp,type:timestamp"`
	Fid           int64      `bun:"fid,notnull,type:bigint"`
	ChannelID     string     `bun:"channel_id,notnull,type:text"`
}
