package logingate

import (
	"github.com/zeroharbor/logingate/auditlog"
	"github.com/zeroharbor/logingate/counter"
	"github.com/zeroharbor/logingate/credential"
)

// Engine is the login attempt controller. It composes the counter store
// (fast-path ban/lock checks), the credential store (verification), the
// durable audit log, and the aggregation reporter over that log.
//
// Engine methods are safe for concurrent use after [Builder.Build].
type Engine struct {
	config    Config
	counters  *counter.Store
	fragments *counter.Fragments
	creds     *credential.Store
	auditLog  *auditlog.Store
	audit     *auditDispatcher
}

// Close drains and stops the audit mirror dispatcher. The injected stores
// belong to the caller and are not closed here.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many mirrored events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}
