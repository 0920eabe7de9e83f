// Package crebain is a typed client for the Crebain enrichment API. It
// covers entity lookup and enrichment, file ingestion from URLs, and
// webhook subscription management, and it carries the cross-cutting
// contracts the API imposes: idempotency keys on mutating calls, the
// shared error taxonomy with request correlation ids, cursor pagination,
// and rate-limit surfacing.
package crebain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crebain/core"
	"github.com/goliatone/go-crebain/idempotency"
	"github.com/goliatone/go-crebain/ratelimit"
	"github.com/goliatone/go-crebain/transport"
)

// Rate-limit buckets, one per endpoint family.
const (
	bucketEntitiesList  = "entities.list"
	bucketEntityCheck   = "entities.check"
	bucketFilesIngest   = "files.ingest"
	bucketWebhooksList  = "webhooks.list"
	bucketWebhookCreate = "webhooks.create"
	bucketWebhookDelete = "webhooks.delete"
)

// Client calls the Crebain API. Every call goes through the rate-limit
// policy and decodes non-2xx responses into the shared error taxonomy.
// The client never retries on its own: a failed call is classified and
// returned, and the caller decides whether to retry with the same
// idempotency key.
type Client struct {
	config    core.Config
	transport core.Transport
	policy    core.RateLimitPolicy
	logger    core.Logger
	apiKeyID  string
}

type ClientOption func(*clientOptions)

type clientOptions struct {
	transport  core.Transport
	httpClient transport.HTTPDoer
	policy     core.RateLimitPolicy
	logger     core.Logger
	provider   core.LoggerProvider
}

// WithTransport replaces the wire adapter; useful for scripted transports
// in tests and for non-HTTP bridges.
func WithTransport(t core.Transport) ClientOption {
	return func(o *clientOptions) { o.transport = t }
}

// WithHTTPClient injects the HTTP client the default REST adapter runs on.
func WithHTTPClient(client transport.HTTPDoer) ClientOption {
	return func(o *clientOptions) { o.httpClient = client }
}

func WithRateLimitPolicy(policy core.RateLimitPolicy) ClientOption {
	return func(o *clientOptions) { o.policy = policy }
}

func WithLogger(logger core.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) ClientOption {
	return func(o *clientOptions) { o.provider = provider }
}

// NewClient builds a client from the given configuration layered over the
// package defaults. Zero fields in cfg fall back to defaults; the merged
// result is validated before use.
func NewClient(cfg core.Config, opts ...ClientOption) (*Client, error) {
	resolved, err := core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), core.Config{}, cfg)
	if err != nil {
		return nil, err
	}

	options := clientOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	wire := options.transport
	if wire == nil {
		wire = transport.NewRESTAdapter(resolved.BaseURL, options.httpClient)
	}
	policy := options.policy
	if policy == nil {
		policy = ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	}
	_, logger := glog.Resolve("crebain", options.provider, options.logger)

	return &Client{
		config:    resolved,
		transport: wire,
		policy:    policy,
		logger:    glog.Ensure(logger),
		apiKeyID:  fingerprintAPIKey(resolved.APIKey),
	}, nil
}

func (c *Client) Config() core.Config {
	if c == nil {
		return core.Config{}
	}
	return c.config
}

// ListEntities fetches one page. An empty NextCursor on the returned page
// marks the end of the collection.
func (c *Client) ListEntities(ctx context.Context, req core.ListEntitiesRequest) (core.EntityPage, error) {
	query := map[string]string{}
	if req.Limit > 0 {
		query["limit"] = strconv.Itoa(req.Limit)
	}
	if cursor := strings.TrimSpace(req.Cursor); cursor != "" {
		query["cursor"] = cursor
	}

	page := core.EntityPage{}
	meta, err := c.call(ctx, core.TransportRequest{
		Method: http.MethodGet,
		Path:   "/v1/entities",
		Query:  query,
	}, bucketEntitiesList, &page)
	if err != nil {
		return core.EntityPage{}, err
	}
	if page.RequestID == "" {
		page.RequestID = meta.RequestID
	}
	return page, nil
}

// EachEntity walks the full collection page by page, invoking fn for every
// entity. The cursor from each page feeds the next request verbatim, so
// the traversal sees no duplicates and no gaps as long as the collection
// is not mutated underneath it. Returning an error from fn stops the walk.
func (c *Client) EachEntity(ctx context.Context, req core.ListEntitiesRequest, fn func(core.Entity) error) error {
	if fn == nil {
		return fmt.Errorf("crebain: entity callback is required")
	}
	cursor := strings.TrimSpace(req.Cursor)
	for {
		page, err := c.ListEntities(ctx, core.ListEntitiesRequest{Limit: req.Limit, Cursor: cursor})
		if err != nil {
			return err
		}
		for _, entity := range page.Entities {
			if err := fn(entity); err != nil {
				return err
			}
		}
		next := strings.TrimSpace(page.NextCursor)
		if next == "" {
			return nil
		}
		if next == cursor {
			return fmt.Errorf("crebain: pagination cursor %q did not advance", next)
		}
		cursor = next
	}
}

// AllEntities drains the collection into memory. Prefer EachEntity for
// large result sets.
func (c *Client) AllEntities(ctx context.Context, req core.ListEntitiesRequest) ([]core.Entity, error) {
	out := []core.Entity{}
	err := c.EachEntity(ctx, req, func(entity core.Entity) error {
		out = append(out, entity)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CheckEntity looks up or creates an entity. A zero key gets a generated
// one; retries of the same logical operation must reuse the key so the
// server can replay the original outcome. The result is authoritative as
// returned: NewCompany reports what the server did, including false on a
// replayed creation.
func (c *Client) CheckEntity(ctx context.Context, req core.CheckEntityRequest, key idempotency.Key) (core.CheckEntityResult, error) {
	key, err := resolveIdempotencyKey(key, "check")
	if err != nil {
		return core.CheckEntityResult{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return core.CheckEntityResult{}, encodeError(err, "crebain: encode entity check request")
	}

	result := core.CheckEntityResult{}
	meta, err := c.call(ctx, core.TransportRequest{
		Method:      http.MethodPost,
		Path:        "/v1/entity/check",
		Body:        body,
		Idempotency: key.String(),
	}, bucketEntityCheck, &result)
	if err != nil {
		return core.CheckEntityResult{}, err
	}
	if result.RequestID == "" {
		result.RequestID = meta.RequestID
	}
	return result, nil
}

// IngestFiles registers remote files for ingestion and returns signed
// download URLs. Mutating and idempotent; same key contract as CheckEntity.
func (c *Client) IngestFiles(ctx context.Context, req core.IngestFilesRequest, key idempotency.Key) (core.IngestFilesResult, error) {
	key, err := resolveIdempotencyKey(key, "ingest")
	if err != nil {
		return core.IngestFilesResult{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return core.IngestFilesResult{}, encodeError(err, "crebain: encode file ingestion request")
	}

	result := core.IngestFilesResult{}
	meta, err := c.call(ctx, core.TransportRequest{
		Method:      http.MethodPost,
		Path:        "/v1/files/from-urls",
		Body:        body,
		Idempotency: key.String(),
	}, bucketFilesIngest, &result)
	if err != nil {
		return core.IngestFilesResult{}, err
	}
	if result.RequestID == "" {
		result.RequestID = meta.RequestID
	}
	return result, nil
}

func (c *Client) ListWebhooks(ctx context.Context) (core.ListWebhooksResult, error) {
	result := core.ListWebhooksResult{}
	meta, err := c.call(ctx, core.TransportRequest{
		Method: http.MethodGet,
		Path:   "/v1/webhooks",
	}, bucketWebhooksList, &result)
	if err != nil {
		return core.ListWebhooksResult{}, err
	}
	if result.RequestID == "" {
		result.RequestID = meta.RequestID
	}
	return result, nil
}

func (c *Client) CreateWebhook(ctx context.Context, req core.CreateWebhookRequest, key idempotency.Key) (core.WebhookSubscription, error) {
	key, err := resolveIdempotencyKey(key, "webhook")
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return core.WebhookSubscription{}, encodeError(err, "crebain: encode webhook subscription request")
	}

	subscription := core.WebhookSubscription{}
	_, err = c.call(ctx, core.TransportRequest{
		Method:      http.MethodPost,
		Path:        "/v1/webhooks",
		Body:        body,
		Idempotency: key.String(),
	}, bucketWebhookCreate, &subscription)
	if err != nil {
		return core.WebhookSubscription{}, err
	}
	return subscription, nil
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		return fmt.Errorf("crebain: webhook id is required")
	}
	_, err := c.call(ctx, core.TransportRequest{
		Method: http.MethodDelete,
		Path:   "/v1/webhooks/" + url.PathEscape(webhookID),
	}, bucketWebhookDelete, nil)
	return err
}

// call runs the rate-limit gate, executes the request, records the
// response's rate-limit view, and decodes failures into the taxonomy.
func (c *Client) call(ctx context.Context, req core.TransportRequest, bucket string, out any) (core.ResponseMeta, error) {
	if c == nil || c.transport == nil {
		return core.ResponseMeta{}, fmt.Errorf("crebain: client transport is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limitKey := core.RateLimitKey{APIKeyID: c.apiKeyID, BucketKey: bucket}
	if c.policy != nil {
		if err := c.policy.BeforeCall(ctx, limitKey); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return core.ResponseMeta{}, throttled.ToAPIError()
			}
			return core.ResponseMeta{}, err
		}
	}

	req.Headers = c.requestHeaders(req.Headers)
	if req.Timeout == 0 {
		req.Timeout = c.config.Timeout
	}

	res, err := c.transport.Do(ctx, req)
	if err != nil {
		return core.ResponseMeta{}, err
	}

	meta := ratelimit.NormalizeResponse(res)
	if c.policy != nil {
		if err := c.policy.AfterCall(ctx, limitKey, meta); err != nil {
			c.logger.Warn("rate limit bookkeeping failed",
				"bucket", bucket,
				"error", err,
			)
		}
	}

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return meta, decodeAPIError(res, meta)
	}
	if out != nil && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, out); err != nil {
			return meta, goerrors.Wrap(err, goerrors.CategoryExternal, "crebain: decode response body").
				WithCode(http.StatusBadGateway).
				WithTextCode(core.APIErrorExternalFailure).
				WithMetadata(map[string]any{
					core.MetadataRequestID: meta.RequestID,
					"http_status":          res.StatusCode,
				})
		}
	}
	return meta, nil
}

func (c *Client) requestHeaders(extra map[string]string) map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.config.APIKey,
		"User-Agent":    c.config.UserAgent,
		"Accept":        "application/json",
	}
	for key, value := range extra {
		if strings.TrimSpace(key) == "" {
			continue
		}
		headers[key] = value
	}
	return headers
}

// decodeAPIError decodes the failure and carries the normalized retry hint
// into the error metadata so retry classification sees the server's pause,
// not a local default.
func decodeAPIError(res core.TransportResponse, meta core.ResponseMeta) error {
	err := core.DecodeAPIError(res)
	if meta.RetryAfter == nil || *meta.RetryAfter <= 0 {
		return err
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Metadata == nil {
			richErr.Metadata = map[string]any{}
		}
		richErr.Metadata["retry_after_ms"] = meta.RetryAfter.Milliseconds()
	}
	return err
}

func resolveIdempotencyKey(key idempotency.Key, prefix string) (idempotency.Key, error) {
	if key.IsZero() {
		return idempotency.NewKey(prefix), nil
	}
	if err := key.Validate(); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryBadInput, "crebain: invalid idempotency key").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.APIErrorBadInput)
	}
	return key, nil
}

func encodeError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.APIErrorBadInput)
}

// fingerprintAPIKey derives a stable non-secret identifier for rate-limit
// bucketing; the raw key never reaches a store.
func fingerprintAPIKey(apiKey string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(apiKey)))
	return hex.EncodeToString(sum[:])[:12]
}
