package core

import "time"

// Entity is an enriched company record as returned by /v1/entities.
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Domain     string         `json:"domain"`
	Country    string         `json:"country,omitempty"`
	Status     string         `json:"status,omitempty"`
	Enrichment map[string]any `json:"enrichment,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// EntityPage is one page of a cursor traversal. An empty NextCursor marks
// the final page.
type EntityPage struct {
	Entities   []Entity `json:"entities"`
	NextCursor string   `json:"next_cursor"`
	RequestID  string   `json:"request_id"`
}

type ListEntitiesRequest struct {
	Limit  int
	Cursor string
}

type CheckEntityRequest struct {
	Name    string         `json:"name"`
	Domain  string         `json:"domain,omitempty"`
	Country string         `json:"country,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// CheckEntityResult is authoritative as returned, including on idempotent
// replay: NewCompany may be false for a replayed creation and the client
// does not second-guess that.
type CheckEntityResult struct {
	Entity     Entity `json:"entity"`
	NewCompany bool   `json:"new_company"`
	RequestID  string `json:"request_id"`
}

type IngestFilesRequest struct {
	URLs     []string       `json:"urls"`
	EntityID string         `json:"entity_id,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SignedURL is a time-limited pre-authenticated download link. ExpiresAt is
// server-issued (about fifteen minutes out); callers must not assume
// validity beyond it.
type SignedURL struct {
	URL       string    `json:"url"`
	FileID    string    `json:"file_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type IngestFilesResult struct {
	Files     []SignedURL `json:"files"`
	RequestID string      `json:"request_id"`
}

type WebhookSubscription struct {
	ID                string    `json:"id"`
	URL               string    `json:"url"`
	Events            []string  `json:"events"`
	SecretFingerprint string    `json:"secret_fingerprint,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type CreateWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type ListWebhooksResult struct {
	Webhooks  []WebhookSubscription `json:"webhooks"`
	RequestID string                `json:"request_id"`
}
