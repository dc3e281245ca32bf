// Package source describes the incremental parquet exports the service ingests
// and how their S3 keys are interpreted.
package source

import (
	"fmt"
	"time"
)

// Type is an ingestion type.
type Type string

const (
	Profiles       Type = "profiles"
	Casts          Type = "casts"
	ChannelMembers Type = "channel-members"
)

const incrementalRoot = "public-postgres/farcaster/v2/incremental/"

// Descriptor binds an ingestion type to its S3 prefix and tables.
type Descriptor struct {
	Type            Type
	Prefix          string
	StagingTable    string
	ProductionTable string
	PromoteScript   string
	Lookback        time.Duration
}

// StagingRelation returns the schema-qualified staging table.
func (d Descriptor) StagingRelation() string {
	return "staging." + d.StagingTable
}

// ProductionRelation returns the schema-qualified production table.
func (d Descriptor) ProductionRelation() string {
	return "production." + d.ProductionTable
}

var descriptors = map[Type]Descriptor{
	Profiles: {
		Type:            Profiles,
		Prefix:          incrementalRoot + "farcaster-profile_with_addresses",
		StagingTable:    "farcaster_profile_with_addresses",
		ProductionTable: "farcaster_profile",
		PromoteScript:   "promote_profiles.sql",
		Lookback:        7 * 24 * time.Hour,
	},
	Casts: {
		Type:            Casts,
		Prefix:          incrementalRoot + "farcaster-casts",
		StagingTable:    "farcaster_casts",
		ProductionTable: "farcaster_casts",
		PromoteScript:   "promote_casts.sql",
		Lookback:        10 * time.Minute,
	},
	ChannelMembers: {
		Type:            ChannelMembers,
		Prefix:          incrementalRoot + "farcaster-channel_members",
		StagingTable:    "farcaster_channel_members",
		ProductionTable: "farcaster_channel_members",
		PromoteScript:   "promote_channel_members.sql",
		Lookback:        10 * time.Minute,
	},
}

// All returns every ingestion type in processing order.
func All() []Type {
	return []Type{Profiles, Casts, ChannelMembers}
}

// Parse validates an ingestion type name.
func Parse(s string) (Type, error) {
	t := Type(s)
	if _, ok := descriptors[t]; !ok {
		return "", fmt.Errorf("unknown ingestion type %q", s)
	}
	return t, nil
}

// Describe returns the descriptor for t.
func Describe(t Type) (Descriptor, error) {
	d, ok := descriptors[t]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown ingestion type %q", t)
	}
	return d, nil
}

// MustDescribe is Describe for types known at compile time.
func MustDescribe(t Type) Descriptor {
	d, err := Describe(t)
	if err != nil {
		panic(err)
	}
	return d
}
