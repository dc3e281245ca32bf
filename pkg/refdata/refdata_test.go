package refdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func writeSnapshots(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, ProfilesFile, "fid,fname,verified_addresses\n"+
		"1,alice,\"0xAAA1|\"\"0xBBB2\"\"\"\n"+
		"2,,\n"+
		"3,carol,0xaaa1\n")
	writeFile(t, dir, GrantsFile, "id,recipient,description,parentContract\n"+
		"g1,0xFLOW,\"Top level flow, with a comma\",\n"+
		"g2,0xBBB2,Build the thing,0xflow\n")
	writeFile(t, dir, CitizensFile, "fid,fname,channel_id\n"+
		"2,bob,nouns\n"+
		"3,carol,vrbs\n")
	return dir
}

func TestLoad(t *testing.T) {
	d, err := Load(writeSnapshots(t))
	require.NoError(t, err)

	name, ok := d.Fname(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	// citizens fill handles missing from profiles
	name, ok = d.Fname(2)
	assert.True(t, ok)
	assert.Equal(t, "bob", name)

	assert.Equal(t, []string{"0xAAA1", "0xBBB2"}, d.Addresses(1))
	assert.Empty(t, d.Addresses(2))

	// last writer wins on a shared address
	owner, ok := d.FidForAddress("0xAaA1")
	assert.True(t, ok)
	assert.Equal(t, int64(3), owner)

	assert.True(t, d.IsCohort(2))
	assert.True(t, d.IsCohort(3))
	assert.False(t, d.IsCohort(1))
	assert.ElementsMatch(t, []int64{2, 3}, d.CohortFids())

	require.Len(t, d.Grants(), 2)
	assert.Equal(t, "Top level flow, with a comma", d.Grants()[0].Description)
}

func TestGrantsForAddressesAndParent(t *testing.T) {
	d, err := Load(writeSnapshots(t))
	require.NoError(t, err)

	grants := d.GrantsForAddresses([]string{"0xbbb2", "0xBBB2", "0xnone"})
	require.Len(t, grants, 1)
	assert.Equal(t, "g2", grants[0].ID)

	parent, ok := d.Parent(grants[0])
	require.True(t, ok)
	assert.Equal(t, "g1", parent.ID)

	_, ok = d.Parent(parent)
	assert.False(t, ok)
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProfilesFile, "fid,fname,verified_addresses\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSnapshotMissing))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	missing, err := Missing(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{GrantsFile, CitizensFile}, missing)
}

func TestLoad_SkipsRowsWithoutValidFid(t *testing.T) {
	dir := writeSnapshots(t)
	writeFile(t, dir, ProfilesFile, "fid,fname,verified_addresses\n"+
		",ghost,0xccc3\n"+
		"1,alice,0xaaa1\n")
	writeFile(t, dir, CitizensFile, "fid,fname,channel_id\n"+
		"abc,bob,nouns\n"+
		"3,carol,vrbs\n")

	d, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Skipped())

	name, ok := d.Fname(1)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
	_, ok = d.FidForAddress("0xccc3")
	assert.False(t, ok)
	assert.Equal(t, []int64{3}, d.CohortFids())
}

func TestLoad_MissingHeader(t *testing.T) {
	dir := writeSnapshots(t)
	writeFile(t, dir, GrantsFile, "")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header row")
}
