// Package webhooks authenticates and processes inbound Crebain webhook
// deliveries: HMAC signature verification against the raw body, replay
// protection via a delivery ledger, and bounded retry of failed handling.
package webhooks
