package query

import (
	"context"

	"github.com/goliatone/go-crebain/core"
)

// ReadService is the slice of the client the queries delegate to.
type ReadService interface {
	ListEntities(ctx context.Context, req core.ListEntitiesRequest) (core.EntityPage, error)
	ListWebhooks(ctx context.Context) (core.ListWebhooksResult, error)
}

type ListEntitiesQuery struct {
	reader ReadService
}

func NewListEntitiesQuery(reader ReadService) *ListEntitiesQuery {
	return &ListEntitiesQuery{reader: reader}
}

func (q *ListEntitiesQuery) Query(ctx context.Context, msg ListEntitiesMessage) (core.EntityPage, error) {
	if q == nil || q.reader == nil {
		return core.EntityPage{}, queryDependencyError("query: entity reader is required")
	}
	return q.reader.ListEntities(ctx, msg.Request)
}

type ListWebhooksQuery struct {
	reader ReadService
}

func NewListWebhooksQuery(reader ReadService) *ListWebhooksQuery {
	return &ListWebhooksQuery{reader: reader}
}

func (q *ListWebhooksQuery) Query(ctx context.Context, msg ListWebhooksMessage) (core.ListWebhooksResult, error) {
	if q == nil || q.reader == nil {
		return core.ListWebhooksResult{}, queryDependencyError("query: webhook reader is required")
	}
	return q.reader.ListWebhooks(ctx)
}
