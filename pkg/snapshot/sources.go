package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/rocketman-21/farcaster-cron/pkg/db/dao"
	"github.com/rocketman-21/farcaster-cron/pkg/refdata"
)

// Source produces the rows of one snapshot file, header excluded.
type Source interface {
	File() string
	Rows(ctx context.Context, emit func(record []string) error) error
}

type profilesSource struct {
	db    bun.IDB
	batch int
}

// NewProfilesSource exports fid, handle and verified addresses of every production profile.
func NewProfilesSource(db bun.IDB, batch int) Source {
	return &profilesSource{db: db, batch: max(batch, 1)}
}

func (s *profilesSource) File() string { return refdata.ProfilesFile }

func (s *profilesSource) Rows(ctx context.Context, emit func([]string) error) error {
	for offset := 0; ; offset += s.batch {
		var rows []dao.ProfileDao
		err := s.db.NewSelect().
			Model(&rows).
			Column("fid", "fname", "verified_addresses").
			OrderExpr("pp.fid ASC").
			Limit(s.batch).
			Offset(offset).
			Scan(ctx)
		if err != nil {
			return fmt.Errorf("read profiles at offset %d: %w", offset, err)
		}
		for _, p := range rows {
			fname := ""
			if p.Fname != nil {
				fname = *p.Fname
			}
			record := []string{
				strconv.FormatInt(p.Fid, 10),
				fname,
				strings.Join(p.VerifiedAddresses, refdata.AddressSeparator),
			}
			if err := emit(record); err != nil {
				return err
			}
		}
		if len(rows) < s.batch {
			return nil
		}
	}
}

type citizenRow struct {
	Fid       int64   `bun:"fid"`
	Fname     *string `bun:"fname"`
	ChannelID string  `bun:"channel_id"`
}

type citizensSource struct {
	db       bun.IDB
	channels []string
	batch    int
}

// NewCitizensSource exports the live members of the cohort channels.
func NewCitizensSource(db bun.IDB, channels []string, batch int) Source {
	return &citizensSource{db: db, channels: channels, batch: max(batch, 1)}
}

func (s *citizensSource) File() string { return refdata.CitizensFile }

func (s *citizensSource) Rows(ctx context.Context, emit func([]string) error) error {
	if len(s.channels) == 0 {
		return nil
	}
	for offset := 0; ; offset += s.batch {
		var rows []citizenRow
		err := s.db.NewSelect().
			Distinct().
			ColumnExpr("pm.fid, pp.fname, pm.channel_id").
			TableExpr("production.farcaster_channel_members AS pm").
			Join("LEFT JOIN production.farcaster_profile AS pp ON pp.fid = pm.fid").
			Where("pm.channel_id IN (?)", bun.In(s.channels)).
			Where("pm.deleted_at IS NULL").
			OrderExpr("pm.fid ASC, pm.channel_id ASC").
			Limit(s.batch).
			Offset(offset).
			Scan(ctx, &rows)
		if err != nil {
			return fmt.Errorf("read cohort members at offset %d: %w", offset, err)
		}
		for _, r := range rows {
			fname := ""
			if r.Fname != nil {
				fname = *r.Fname
			}
			if err := emit([]string{strconv.FormatInt(r.Fid, 10), fname, r.ChannelID}); err != nil {
				return err
			}
		}
		if len(rows) < s.batch {
			return nil
		}
	}
}

// FlowsStore reads grants from the flows database.
type FlowsStore struct {
	db *sql.DB
}

// OpenFlowsStore connects to the flows database through lib/pq.
func OpenFlowsStore(ctx context.Context, url string) (*FlowsStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open flows database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping flows database: %w", err)
	}
	return &FlowsStore{db: db}, nil
}

// NewFlowsStore wraps an open connection pool.
func NewFlowsStore(db *sql.DB) *FlowsStore {
	return &FlowsStore{db: db}
}

// Close closes the connection pool.
func (s *FlowsStore) Close() error {
	return s.db.Close()
}

// Grants returns one page of grants ordered by id.
func (s *FlowsStore) Grants(ctx context.Context, limit, offset int) ([]refdata.Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient, description, "parentContract" FROM "public"."Grant" ORDER BY id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query grants: %w", err)
	}
	defer rows.Close()

	var grants []refdata.Grant
	for rows.Next() {
		var (
			g                                 refdata.Grant
			recipient, description, parentRef sql.NullString
		)
		if err := rows.Scan(&g.ID, &recipient, &description, &parentRef); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		g.Recipient = recipient.String
		g.Description = description.String
		g.ParentContract = parentRef.String
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate grants: %w", err)
	}
	return grants, nil
}

type grantsSource struct {
	store *FlowsStore
	batch int
}

// NewGrantsSource exports every grant in the flows database.
func NewGrantsSource(store *FlowsStore, batch int) Source {
	return &grantsSource{store: store, batch: max(batch, 1)}
}

func (s *grantsSource) File() string { return refdata.GrantsFile }

func (s *grantsSource) Rows(ctx context.Context, emit func([]string) error) error {
	for offset := 0; ; offset += s.batch {
		grants, err := s.store.Grants(ctx, s.batch, offset)
		if err != nil {
			return fmt.Errorf("read grants at offset %d: %w", offset, err)
		}
		for _, g := range grants {
			if err := emit([]string{g.ID, g.Recipient, g.Description, g.ParentContract}); err != nil {
				return err
			}
		}
		if len(grants) < s.batch {
			return nil
		}
	}
}
