package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CheckEntityMessage]   = (*CheckEntityCommand)(nil)
	_ gocmd.Commander[IngestFilesMessage]   = (*IngestFilesCommand)(nil)
	_ gocmd.Commander[CreateWebhookMessage] = (*CreateWebhookCommand)(nil)
	_ gocmd.Commander[DeleteWebhookMessage] = (*DeleteWebhookCommand)(nil)
)
