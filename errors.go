package logingate

import "errors"

var (
	// ErrCounterUnavailable is returned when the counter store cannot be
	// reached. The attempt fails closed rather than degrading to a business
	// outcome, so lockout protection is never silently disabled.
	ErrCounterUnavailable = errors.New("counter store unavailable")
	// ErrCredentialUnavailable is returned when the credential store cannot
	// be reached. Distinct from wrong_login: an unhealthy store never reads
	// as an unknown username.
	ErrCredentialUnavailable = errors.New("credential store unavailable")
	// ErrAuditUnavailable is returned when the audit log append fails. Every
	// attempt must leave a durable record, so the attempt fails closed.
	ErrAuditUnavailable = errors.New("audit log unavailable")
	// ErrContentionExhausted is returned when a counter update could not
	// commit within its optimistic retry budget.
	ErrContentionExhausted = errors.New("counter contention exhausted")
	// ErrBuilderReused is returned when Build is called twice on one Builder.
	ErrBuilderReused = errors.New("builder already used")
	// ErrRedisRequired is returned by Build when no Redis client was supplied.
	ErrRedisRequired = errors.New("redis client required")
	// ErrAuditLogRequired is returned by Build when no audit log was supplied.
	ErrAuditLogRequired = errors.New("audit log required")
)
