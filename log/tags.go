package log

import "go.uber.org/zap"

var (
	// Internal mark the error severe, due to issues in code.
	Internal = zap.String("severe_error", "internal")

	// Audit marks entries that have a matching row in the audit log.
	Audit = zap.Bool("audited", true)
)
