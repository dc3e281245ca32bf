// Package refdata holds the reference lookups built from the CSV snapshots:
// profile handles and addresses, the nounish cohort and the grant list.
package refdata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
)

// Snapshot file names inside the data directory.
const (
	ProfilesFile = "profiles.csv"
	GrantsFile   = "grants.csv"
	CitizensFile = "nounish-citizens.csv"
)

// Files lists every snapshot Load reads.
var Files = []string{ProfilesFile, GrantsFile, CitizensFile}

// Headers are the column layouts written and read for each snapshot.
var Headers = map[string][]string{
	ProfilesFile: {"fid", "fname", "verified_addresses"},
	GrantsFile:   {"id", "recipient", "description", "parentContract"},
	CitizensFile: {"fid", "fname", "channel_id"},
}

// AddressSeparator joins verified addresses inside one profiles.csv cell.
const AddressSeparator = "|"

// ErrSnapshotMissing is returned when a snapshot file has not been written yet.
var ErrSnapshotMissing = fmt.Errorf("reference snapshot missing: %w", os.ErrNotExist)

// Grant is one funding stream from the flows database.
type Grant struct {
	ID             string
	Recipient      string
	Description    string
	ParentContract string
}

// Data is an immutable view over one set of snapshots.
type Data struct {
	fnames    map[int64]string
	addresses map[int64][]string
	owners    map[string]int64
	cohort    map[int64]struct{}

	grants      []Grant
	byRecipient map[string][]int

	skipped int
}

// New returns empty reference data, mostly useful in tests.
func New() *Data {
	return &Data{
		fnames:      make(map[int64]string),
		addresses:   make(map[int64][]string),
		owners:      make(map[string]int64),
		cohort:      make(map[int64]struct{}),
		byRecipient: make(map[string][]int),
	}
}

// AddProfile records a handle and verified addresses for fid.
// Later calls for the same address take ownership of it.
func (d *Data) AddProfile(fid int64, fname string, addresses []string) {
	if fname != "" {
		d.fnames[fid] = fname
	}
	clean := make([]string, 0, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(strings.Trim(a, `"`))
		if a == "" {
			continue
		}
		clean = append(clean, a)
		d.owners[strings.ToLower(a)] = fid
	}
	if len(clean) > 0 {
		d.addresses[fid] = clean
	}
}

// AddCohortMember marks fid as part of the nounish cohort.
func (d *Data) AddCohortMember(fid int64) {
	d.cohort[fid] = struct{}{}
}

// AddGrant appends g and indexes it by recipient.
func (d *Data) AddGrant(g Grant) {
	d.grants = append(d.grants, g)
	if g.Recipient == "" {
		return
	}
	k := strings.ToLower(g.Recipient)
	d.byRecipient[k] = append(d.byRecipient[k], len(d.grants)-1)
}

// Fname returns the handle for fid.
func (d *Data) Fname(fid int64) (string, bool) {
	name, ok := d.fnames[fid]
	return name, ok
}

// Addresses returns the verified addresses of fid in snapshot order.
func (d *Data) Addresses(fid int64) []string {
	return d.addresses[fid]
}

// FidForAddress resolves a verified address to its owner, ignoring case.
func (d *Data) FidForAddress(address string) (int64, bool) {
	fid, ok := d.owners[strings.ToLower(address)]
	return fid, ok
}

// IsCohort reports whether fid belongs to the nounish cohort.
func (d *Data) IsCohort(fid int64) bool {
	_, ok := d.cohort[fid]
	return ok
}

// CohortFids returns the cohort in no particular order.
func (d *Data) CohortFids() []int64 {
	out := make([]int64, 0, len(d.cohort))
	for fid := range d.cohort {
		out = append(out, fid)
	}
	return out
}

// Grants returns every grant in snapshot order.
func (d *Data) Grants() []Grant {
	return d.grants
}

// GrantsForAddresses returns the grants whose recipient is one of addresses.
func (d *Data) GrantsForAddresses(addresses []string) []Grant {
	var out []Grant
	seen := make(map[int]struct{})
	for _, a := range addresses {
		for _, idx := range d.byRecipient[strings.ToLower(a)] {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, d.grants[idx])
		}
	}
	return out
}

// Parent returns the flow g rolls up to: the grant whose recipient is g's parent contract.
func (d *Data) Parent(g Grant) (Grant, bool) {
	if g.ParentContract == "" {
		return Grant{}, false
	}
	idx := d.byRecipient[strings.ToLower(g.ParentContract)]
	if len(idx) == 0 {
		return Grant{}, false
	}
	return d.grants[idx[0]], true
}

// Load reads the three snapshots from dir. A missing file yields an error
// matching ErrSnapshotMissing. Profile and cohort rows without a numeric fid
// are skipped and counted in Skipped.
func Load(dir string) (*Data, error) {
	d := New()

	if err := readCSV(filepath.Join(dir, ProfilesFile), func(r record) error {
		fid, ok := d.rowFid(r)
		if !ok {
			return nil
		}
		var addrs []string
		if raw := r.get("verified_addresses"); raw != "" {
			addrs = strings.Split(raw, AddressSeparator)
		}
		d.AddProfile(fid, r.get("fname"), addrs)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV(filepath.Join(dir, GrantsFile), func(r record) error {
		d.AddGrant(Grant{
			ID:             r.get("id"),
			Recipient:      r.get("recipient"),
			Description:    r.get("description"),
			ParentContract: r.get("parentContract"),
		})
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readCSV(filepath.Join(dir, CitizensFile), func(r record) error {
		fid, ok := d.rowFid(r)
		if !ok {
			return nil
		}
		d.AddCohortMember(fid)
		if name := r.get("fname"); name != "" {
			if _, known := d.fnames[fid]; !known {
				d.fnames[fid] = name
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return d, nil
}

// Skipped reports how many snapshot rows Load dropped for an unusable fid.
func (d *Data) Skipped() int {
	return d.skipped
}

func (d *Data) rowFid(r record) (int64, bool) {
	fid, err := r.fid()
	if err != nil {
		d.skipped++
		metrics.RecordsRejected.WithLabelValues("invalid_fid").Inc()
		return 0, false
	}
	return fid, true
}

// Missing returns the snapshot files not present in dir.
func Missing(dir string) ([]string, error) {
	var missing []string
	for _, name := range Files {
		_, err := os.Stat(filepath.Join(dir, name))
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist):
			missing = append(missing, name)
		default:
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	return missing, nil
}

type record struct {
	line    int
	columns map[string]int
	fields  []string
}

func (r record) get(name string) string {
	idx, ok := r.columns[name]
	if !ok || idx >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[idx])
}

func (r record) fid() (int64, error) {
	raw := r.get("fid")
	fid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid fid %q: %w", r.line, raw, err)
	}
	return fid, nil
}

func readCSV(path string, fn func(record) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: missing header row", path)
		}
		return fmt.Errorf("read %s header: %w", path, err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}

	for line := 2; ; line++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := fn(record{line: line, columns: columns, fields: fields}); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}
