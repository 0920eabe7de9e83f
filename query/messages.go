package query

import (
	"github.com/goliatone/go-crebain/core"
)

const (
	TypeListEntities = "crebain.query.entities.list"
	TypeListWebhooks = "crebain.query.webhooks.list"
)

// maxEntityPageLimit is the server-side ceiling for a single page.
const maxEntityPageLimit = 100

type ListEntitiesMessage struct {
	Request core.ListEntitiesRequest
}

func (ListEntitiesMessage) Type() string { return TypeListEntities }

func (m ListEntitiesMessage) Validate() error {
	if m.Request.Limit < 0 {
		return queryInvalidInputError("query: limit must be >= 0")
	}
	if m.Request.Limit > maxEntityPageLimit {
		return queryInvalidInputError("query: limit must be <= 100")
	}
	return nil
}

type ListWebhooksMessage struct{}

func (ListWebhooksMessage) Type() string { return TypeListWebhooks }

func (ListWebhooksMessage) Validate() error { return nil }
