package queue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJob_Finalize(t *testing.T) {
	job := Job{
		Users:  []string{"1", "0xABCDEF0123456789abcdef0123456789ABCDEF01", "0xabcdef0123456789abcdef0123456789abcdef01"},
		Groups: []string{"https://warpcast.com/~/channel/Flows", "https://warpcast.com/~/channel/flows"},
		Tags:   []string{"2", "2"},
		URLs:   []string{"https://Example.com/A", "https://example.com/a", "https://example.com/b"},
	}
	job.Finalize()

	assert.Equal(t, []string{"1", "0xabcdef0123456789abcdef0123456789abcdef01"}, job.Users)
	assert.Equal(t, []string{"https://warpcast.com/~/channel/flows"}, job.Groups)
	assert.Equal(t, []string{"2"}, job.Tags)
	assert.Equal(t, []string{"https://Example.com/A", "https://example.com/b"}, job.URLs)

	for _, set := range [][]string{job.Users, job.Groups, job.Tags, job.URLs} {
		seen := map[string]bool{}
		for _, v := range set {
			k := strings.ToLower(v)
			assert.False(t, seen[k], "duplicate %q", v)
			seen[k] = true
		}
	}
}

func TestJob_Empty(t *testing.T) {
	assert.True(t, (&Job{}).Empty())
	assert.False(t, (&Job{Content: "gm"}).Empty())
	assert.False(t, (&Job{URLs: []string{"https://x"}}).Empty())
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batches(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Batches(items, 50))
	assert.Empty(t, Batches([]int{}, 10))
	assert.Len(t, Batches(items, 0), 5)
}

func TestParseJobType(t *testing.T) {
	for _, typ := range ValidJobTypes {
		got, ok := ParseJobType(string(typ))
		assert.True(t, ok)
		assert.Equal(t, typ, got)
	}
	_, ok := ParseJobType("reaction")
	assert.False(t, ok)
}
