package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-crebain/core"
)

var (
	_ gocmd.Querier[ListEntitiesMessage, core.EntityPage]         = (*ListEntitiesQuery)(nil)
	_ gocmd.Querier[ListWebhooksMessage, core.ListWebhooksResult] = (*ListWebhooksQuery)(nil)
)
