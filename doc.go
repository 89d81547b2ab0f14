// Package logingate protects a login endpoint against credential-stuffing
// and brute-force attacks. It tracks failed attempts per account and per
// source address in Redis counters with lost-update-free increments, denies
// authentication once configurable thresholds are exceeded, and keeps a
// durable append-only audit log from which the ban and lock determinations
// can be recomputed.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// logingate is the decisioning core only. The embedding application owns the
// wire transport, HTML rendering, routing, and browser sessions; it calls
// [Engine.AttemptLogin] with the submitted credentials and the caller's
// source address and maps the returned [Outcome] to user-visible behavior.
// Store construction is explicit: the Redis client and the audit log are
// injected through [Builder] and shared by reference between the controller
// and the reporter.
//
// # Failure semantics
//
// Business outcomes (wrong_login, wrong_password, locked, banned) are values,
// never errors. A backing-store failure is an error and fails the attempt
// closed — it is never downgraded to a business outcome, so lockout
// protection cannot be silently disabled by an outage.
package logingate
