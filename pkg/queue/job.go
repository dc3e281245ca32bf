package queue

import (
	"strings"
)

// JobType tags what an embedding job describes.
type JobType string

const (
	JobTypeGrant            JobType = "grant"
	JobTypeCast             JobType = "cast"
	JobTypeGrantApplication JobType = "grant-application"
	JobTypeFlow             JobType = "flow"
	JobTypeDispute          JobType = "dispute"
	JobTypeDraftApplication JobType = "draft-application"
	JobTypeBuilderProfile   JobType = "builder-profile"
	JobTypeStory            JobType = "story"
)

// ValidJobTypes lists every type the embeddings queue accepts.
var ValidJobTypes = []JobType{
	JobTypeGrant,
	JobTypeCast,
	JobTypeGrantApplication,
	JobTypeFlow,
	JobTypeDispute,
	JobTypeDraftApplication,
	JobTypeBuilderProfile,
	JobTypeStory,
}

// ParseJobType validates a job type name.
func ParseJobType(s string) (JobType, bool) {
	for _, t := range ValidJobTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Job is the payload of /add-job and each element of /bulk-add-job.
type Job struct {
	Type        JobType  `json:"type"`
	Content     string   `json:"content"`
	ExternalID  string   `json:"externalId"`
	Groups      []string `json:"groups"`
	Users       []string `json:"users"`
	Tags        []string `json:"tags"`
	URLs        []string `json:"urls,omitempty"`
	ExternalURL string   `json:"externalUrl,omitempty"`
	HashSuffix  string   `json:"hashSuffix,omitempty"`
}

// Finalize deduplicates the job's sets. Users, groups and tags are lowercased;
// urls keep the spelling of their first occurrence.
func (j *Job) Finalize() {
	j.Users = UniqueLower(j.Users)
	j.Groups = UniqueLower(j.Groups)
	j.Tags = UniqueLower(j.Tags)
	if j.URLs != nil {
		j.URLs = UniqueFold(j.URLs)
	}
}

// Empty reports whether the job carries neither text nor links.
func (j *Job) Empty() bool {
	return j.Content == "" && len(j.URLs) == 0
}

// GrantUpdateCheck asks the classifier whether a builder's cast reports grant progress.
type GrantUpdateCheck struct {
	CastContent           string   `json:"castContent"`
	CastHash              string   `json:"castHash"`
	URLs                  []string `json:"urls"`
	BuilderFid            string   `json:"builderFid"`
	GrantID               string   `json:"grantId,omitempty"`
	GrantDescription      string   `json:"grantDescription,omitempty"`
	ParentFlowDescription string   `json:"parentFlowDescription,omitempty"`
}

// BuilderProfileJob requests a profile embedding for a grant recipient.
type BuilderProfileJob struct {
	Fid string `json:"fid"`
}

type bulkRequest[T any] struct {
	Jobs []T `json:"jobs"`
}

type deleteEmbeddingRequest struct {
	ContentHash string  `json:"contentHash"`
	Type        JobType `json:"type"`
}

// UniqueLower lowercases values and drops repeats, keeping first-seen order.
func UniqueLower(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(v)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// UniqueFold drops values equal to an earlier one under case folding.
func UniqueFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Batches splits items into consecutive chunks of at most size elements.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
