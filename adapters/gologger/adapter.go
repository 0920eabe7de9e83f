// Package gologger resolves the glog logger the maintenance jobs run under
// and bridges it onto the go-job logging contracts, so the purge and sweep
// workers log through the same pipeline as the client.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// maintenanceLoggerName is the logger name the purge and sweep jobs share.
const maintenanceLoggerName = "crebain.maintenance"

// MaintenanceLoggers resolves the maintenance logger with glog precedence
// (provider over direct logger over nop) and returns it alongside its
// go-job bridges for worker construction.
func MaintenanceLoggers(
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := glog.Resolve(maintenanceLoggerName, provider, logger)
	resolvedLogger = glog.Ensure(resolvedLogger)
	return resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// ToJobProvider maps a glog provider to the go-job logger provider contract.
func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

// ToJobLogger maps a glog logger to the go-job logger contract.
func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}
