// Package devkit provides test doubles for the client: a scripted transport
// adapter and an in-memory delivery ledger with claim lifecycle semantics.
package devkit
