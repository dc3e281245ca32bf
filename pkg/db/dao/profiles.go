package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// StagingProfileDao maps to 'staging.farcaster_profile_with_addresses'.
// VerifiedAddresses is the JSON array text from the parquet export.
type StagingProfileDao struct {
	bun.BaseModel     `bun:"table:staging.farcaster_profile_with_addresses,alias:sp"`
	Fid               int64     `bun:"fid,type:bigint"`
	Fname             *string   `bun:"fname,type:text"`
	DisplayName       *string   `bun:"display_name,type:text"`
	AvatarURL         *string   `bun:"avatar_url,type:text"`
	Bio               *string   `bun:"bio,type:text"`
	VerifiedAddresses *string   `bun:"verified_addresses,type:text"`
	UpdatedAt         time.Time `bun:"updated_at,type:timestamp"`
}

// ProfileDao maps to 'production.farcaster_profile'.
type ProfileDao struct {
	bun.BaseModel     `bun:"table:production.farcaster_profile,alias:pp"`
	Fid               int64     `bun:"fid,pk,type:bigint"`
	Fname             *string   `bun:"fname,type:text"`
	DisplayName       *string   `bun:"display_name,type:text"`
	AvatarURL         *string   `bun:"avatar_url,type:text"`
	Bio               *string   `bun:"bio,type:text"`
	VerifiedAddresses []string  `bun:"verified_addresses,array,type:text[]"`
	UpdatedAt         time.Time `bun:"updated_at,type:timestamp"`
}
