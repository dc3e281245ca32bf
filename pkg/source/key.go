package source

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// UnknownTable is the table name reported for keys that do not follow the export naming.
const UnknownTable = "unknown_table"

const parquetSuffix = ".parquet"

var keyPattern = regexp.MustCompile(`^farcaster-(.+?)-\d+-(\d+)\.parquet$`)

// Key is a parsed S3 object key such as
// .../farcaster-casts-1713100000-1713103600.parquet.
type Key struct {
	Raw string
	// Table is the staging table the file loads into, farcaster_<tag>.
	Table string
	// Timestamp is the export end time in epoch milliseconds, 0 when unparseable.
	Timestamp int64
}

// ParseKey never fails; keys that do not match get Timestamp 0 and UnknownTable.
func ParseKey(raw string) Key {
	k := Key{Raw: raw, Table: UnknownTable}
	m := keyPattern.FindStringSubmatch(path.Base(raw))
	if m == nil {
		return k
	}
	secs, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return k
	}
	k.Table = "farcaster_" + m[1]
	k.Timestamp = secs * 1000
	return k
}

// IsParquet reports whether the key names a parquet object.
func IsParquet(raw string) bool {
	return strings.HasSuffix(raw, parquetSuffix)
}

// FormatKey builds the key a source export would use for the given window.
func FormatKey(prefix, tag string, startSecs, endSecs int64) string {
	name := "farcaster-" + tag + "-" + strconv.FormatInt(startSecs, 10) + "-" + strconv.FormatInt(endSecs, 10) + parquetSuffix
	if prefix == "" {
		return name
	}
	return strings.TrimSuffix(prefix, "/") + "/" + name
}
