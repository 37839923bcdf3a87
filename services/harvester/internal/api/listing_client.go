package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobharvest/common/cache"
	"jobharvest/common/telemetry"
	"jobharvest/services/harvester/internal/config"
	"jobharvest/services/harvester/internal/errors"
	"jobharvest/services/harvester/internal/models"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobharvest/harvester/api")

const maxErrorBody = 4096

// ListingClient talks to the remote listing endpoint. FetchPage issues
// exactly one request per call and never retries or caches.
type ListingClient interface {
	FetchPage(ctx context.Context, req models.PageRequest) (*models.PageResponse, error)
	FetchDetail(ctx context.Context, jobID string) (*models.JobDetail, error)
	// CachedDetail returns a previously fetched detail without any request.
	CachedDetail(ctx context.Context, jobID string) (*models.JobDetail, bool)
}

type listingClient struct {
	client   *http.Client
	logger   *zap.Logger
	listURL  string
	cache    cache.Cache
	cacheTTL time.Duration
}

type pageRequestBody struct {
	AppliedFacets map[string][]string `json:"appliedFacets"`
	Limit         int                 `json:"limit"`
	Offset        int                 `json:"offset"`
	SearchText    string              `json:"searchText"`
}

type pageResponseBody struct {
	Total       *int                 `json:"total"`
	JobPostings *[]models.RawListing `json:"jobPostings"`
}

type detailResponseBody struct {
	JobPostingInfo *struct {
		JobReqID       string `json:"jobReqId"`
		TimeType       string `json:"timeType"`
		StartDate      string `json:"startDate"`
		Location       string `json:"location"`
		JobDescription string `json:"jobDescription"`
	} `json:"jobPostingInfo"`
}

// NewListingClient builds a ListingClient. httpClient may be nil, in which case
// one with cfg.APITimeout is created. detailCache backs FetchDetail only and
// may be nil.
func NewListingClient(logger *zap.Logger, cfg *config.Config, httpClient *http.Client, detailCache cache.Cache) ListingClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.APITimeout}
	}
	return &listingClient{
		client:   httpClient,
		logger:   logger,
		listURL:  strings.TrimSuffix(cfg.ListURL, "/"),
		cache:    detailCache,
		cacheTTL: cfg.CacheTTL,
	}
}

func (c *listingClient) FetchPage(ctx context.Context, req models.PageRequest) (*models.PageResponse, error) {
	ctx, span := tracer.Start(ctx, "FetchPage")
	defer span.End()
	span.SetAttributes(
		telemetry.Int("page.offset", req.Offset),
		telemetry.Int("page.limit", req.Limit),
	)

	if req.Offset < 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("offset must not be negative, got %d", req.Offset), nil)
	}
	if req.Limit <= 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("limit must be positive, got %d", req.Limit), nil)
	}

	facets := req.Facets
	if facets == nil {
		facets = map[string][]string{}
	}
	payload, err := json.Marshal(pageRequestBody{
		AppliedFacets: facets,
		Limit:         req.Limit,
		Offset:        req.Offset,
		SearchText:    req.SearchText,
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.Internal("encoding page request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.listURL, bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return nil, errors.Internal("creating request", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug("fetching page",
		zap.String("url", c.listURL),
		zap.Int("offset", req.Offset),
		zap.Int("limit", req.Limit))

	resp, err := c.client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("failed to execute request", zap.Int("offset", req.Offset), zap.Error(err))
		return nil, errors.Fetch("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	span.SetAttributes(
		telemetry.Int("http.status_code", resp.StatusCode),
		telemetry.String("http.method", http.MethodPost),
	)

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("rate limited by listing endpoint",
			zap.Int("offset", req.Offset),
			zap.String("retry_after", resp.Header.Get("Retry-After")))
		return nil, rateLimited(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Error("unexpected status code",
			zap.Int("offset", req.Offset),
			zap.Int("status_code", resp.StatusCode))
		var cause error
		if msg := strings.TrimSpace(string(body)); msg != "" {
			cause = fmt.Errorf("response body: %s", msg)
		}
		return nil, errors.Fetch(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), cause)
	}

	var body pageResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		span.RecordError(err)
		c.logger.Error("failed to decode response", zap.Int("offset", req.Offset), zap.Error(err))
		return nil, errors.Fetch("decoding response", err)
	}
	if body.JobPostings == nil {
		c.logger.Error("response has no jobPostings", zap.Int("offset", req.Offset))
		return nil, errors.Fetch("response has no jobPostings field", nil)
	}

	page := &models.PageResponse{
		Total:   body.Total,
		Entries: *body.JobPostings,
	}
	span.SetAttributes(telemetry.Int("page.entries", len(page.Entries)))
	if page.Total != nil {
		span.SetAttributes(telemetry.Int("page.total", *page.Total))
	}

	c.logger.Debug("successfully fetched page",
		zap.Int("offset", req.Offset),
		zap.Int("count", len(page.Entries)))
	return page, nil
}

func (c *listingClient) FetchDetail(ctx context.Context, jobID string) (*models.JobDetail, error) {
	ctx, span := tracer.Start(ctx, "FetchDetail")
	defer span.End()
	span.SetAttributes(telemetry.String("job.id", jobID))

	if jobID == "" {
		return nil, errors.InvalidInput("job id is required", nil)
	}

	if cached, ok := c.CachedDetail(ctx, jobID); ok {
		return cached, nil
	}

	url := c.listURL + "/" + jobID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Internal("creating request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Error("failed to execute request", zap.String("job_id", jobID), zap.Error(err))
		return nil, errors.Fetch("executing request", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("rate limited by listing endpoint", zap.String("job_id", jobID))
		return nil, rateLimited(resp)
	}
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Warn("job detail not found", zap.String("job_id", jobID))
		return nil, errors.NotFound("job detail not found", nil)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("unexpected status code",
			zap.String("job_id", jobID),
			zap.Int("status_code", resp.StatusCode))
		return nil, errors.Fetch(fmt.Sprintf("unexpected status code: %d", resp.StatusCode), nil)
	}

	var body detailResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("failed to decode response", zap.String("job_id", jobID), zap.Error(err))
		return nil, errors.Fetch("decoding response", err)
	}
	if body.JobPostingInfo == nil {
		return nil, errors.Fetch("response has no jobPostingInfo field", nil)
	}

	info := body.JobPostingInfo
	detail := &models.JobDetail{
		JobID:       jobID,
		TimeType:    info.TimeType,
		JobReqID:    info.JobReqID,
		StartDate:   info.StartDate,
		Location:    info.Location,
		Description: info.JobDescription,
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, detailCacheKey(jobID), detail, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache job detail", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	return detail, nil
}

func (c *listingClient) CachedDetail(ctx context.Context, jobID string) (*models.JobDetail, bool) {
	if c.cache == nil || jobID == "" {
		return nil, false
	}
	span := trace.SpanFromContext(ctx)

	var cached models.JobDetail
	err := c.cache.Get(ctx, detailCacheKey(jobID), &cached)
	switch {
	case err == nil:
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		c.logger.Debug("cache hit", zap.String("job_id", jobID))
		return &cached, true
	case stderrors.Is(err, cache.ErrNotFound):
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	default:
		span.SetAttributes(telemetry.String("cache.result", "error"))
		span.RecordError(err)
		c.logger.Warn("cache error", zap.String("job_id", jobID), zap.Error(err))
	}
	return nil, false
}

func detailCacheKey(jobID string) string {
	return fmt.Sprintf("job:detail:%s", jobID)
}

// rateLimited reports a 429 as a FETCH error so the harvest aborts, with the
// RATE_LIMIT cause kept in the chain.
func rateLimited(resp *http.Response) error {
	msg := "too many requests"
	if after := resp.Header.Get("Retry-After"); after != "" {
		msg += ", retry after " + after
	}
	return errors.Fetch("rate limited", errors.RateLimit(msg, nil))
}
