// Package queue is the client for the external embeddings queue.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rocketman-21/farcaster-cron/internal/metrics"
	apperrors "github.com/rocketman-21/farcaster-cron/pkg/app/errors"
	"github.com/rocketman-21/farcaster-cron/pkg/config"
)

const (
	EndpointAddJob             = "/add-job"
	EndpointBulkAddJob         = "/bulk-add-job"
	EndpointBulkGrantUpdate    = "/bulk-add-is-grants-update"
	EndpointDeleteEmbedding    = "/delete-embedding"
	EndpointBulkBuilderProfile = "/bulk-add-builder-profile-job"
)

const maxErrorBody = 64 << 10

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("failed request to %s: status %d", e.Endpoint, e.StatusCode)
}

// Client posts JSON payloads to the embeddings queue.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a queue client from config.
func NewClient(cfg config.QueueConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// AddJob enqueues a single embedding job.
func (c *Client) AddJob(ctx context.Context, job Job) error {
	return c.post(ctx, EndpointAddJob, job, 1)
}

// BulkAddJobs enqueues jobs in one request.
func (c *Client) BulkAddJobs(ctx context.Context, jobs []Job) error {
	return c.post(ctx, EndpointBulkAddJob, bulkRequest[Job]{Jobs: jobs}, len(jobs))
}

// BulkGrantUpdateChecks enqueues grant-update classification requests.
func (c *Client) BulkGrantUpdateChecks(ctx context.Context, checks []GrantUpdateCheck) error {
	return c.post(ctx, EndpointBulkGrantUpdate, bulkRequest[GrantUpdateCheck]{Jobs: checks}, len(checks))
}

// BulkBuilderProfiles enqueues builder-profile jobs.
func (c *Client) BulkBuilderProfiles(ctx context.Context, jobs []BuilderProfileJob) error {
	return c.post(ctx, EndpointBulkBuilderProfile, bulkRequest[BuilderProfileJob]{Jobs: jobs}, len(jobs))
}

// DeleteEmbedding removes an embedding by content hash.
func (c *Client) DeleteEmbedding(ctx context.Context, contentHash string, jobType JobType) error {
	if _, ok := ParseJobType(string(jobType)); !ok {
		return apperrors.BadRequestError(fmt.Errorf("invalid job type %q", jobType), "invalid embedding type")
	}
	return c.post(ctx, EndpointDeleteEmbedding, deleteEmbeddingRequest{ContentHash: contentHash, Type: jobType}, 1)
}

func (c *Client) post(ctx context.Context, endpoint string, body any, count int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Cache-Control", "no-store")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.BatchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		err = transportError(endpoint, err)
		metrics.DispatchFailures.WithLabelValues(endpoint, apperrors.CategoryOf(err).String()).Inc()
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(text)}
		c.logger.Error("embeddings queue request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", httpErr.Body),
		)
		metrics.DispatchFailures.WithLabelValues(endpoint, apperrors.CategoryDependencyFailure.String()).Inc()
		return apperrors.DependencyError(httpErr, "embeddings queue "+endpoint)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	metrics.JobsDispatched.WithLabelValues(endpoint).Add(float64(count))
	return nil
}

func transportError(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.TimeoutError(err, "embeddings queue "+endpoint)
	}
	return apperrors.DependencyError(err, "embeddings queue "+endpoint)
}
