// Package core holds the shared contracts of the Crebain client: transport
// and inbound request shapes, configuration, the API error taxonomy, and the
// replay ledger used for webhook delivery dedupe.
package core
