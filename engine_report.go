package logingate

import (
	"context"
	"errors"
	"fmt"

	"github.com/zeroharbor/logingate/auditlog"
	"github.com/zeroharbor/logingate/counter"
	"github.com/zeroharbor/logingate/credential"
)

// Report recomputes the banned-address and locked-user sets purely from the
// audit log, independent of the live counters. It is the slow-path ground
// truth used for administrative reporting and for detecting drift in the
// counter cache. Read-only.
func (e *Engine) Report(ctx context.Context) (Report, error) {
	bannedIPs, err := e.auditLog.BannedIPs(ctx, e.config.IPBanThreshold)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}
	lockedUsers, err := e.auditLog.LockedUsers(ctx, e.config.UserLockThreshold)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	if bannedIPs == nil {
		bannedIPs = []string{}
	}
	if lockedUsers == nil {
		lockedUsers = []string{}
	}
	return Report{
		BannedIPs:   bannedIPs,
		LockedUsers: lockedUsers,
	}, nil
}

// CurrentSessionUser resolves the username the web layer stored in its
// session back to a user. Returns nil without error when the username no
// longer resolves, so the caller can clear the stale session.
func (e *Engine) CurrentSessionUser(ctx context.Context, sessionUser string) (*User, error) {
	if sessionUser == "" {
		return nil, nil
	}
	record, found, err := e.creds.Find(ctx, sessionUser)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}
	if !found {
		return nil, nil
	}
	return &User{ID: record.ID, Username: record.Username}, nil
}

// ReloadCredentials bulk-loads credential records from the external source
// of truth. Intended for the initialization/deployment path; loading the
// same records twice leaves verification behavior unchanged.
func (e *Engine) ReloadCredentials(ctx context.Context, records []credential.Record) error {
	if err := e.creds.LoadAll(ctx, records); err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}
	return nil
}

// LastLogin returns the successful login before the user's most recent one
// (or the most recent one itself when it is the only success), nil when the
// user has never succeeded. The value is memoized as a fragment and purged
// by the next successful attempt.
func (e *Engine) LastLogin(ctx context.Context, userID int64) (*auditlog.Event, error) {
	var last *auditlog.Event
	err := e.fragments.Cache(ctx, counter.LastLoginKey(userID), &last, func(ctx context.Context) (any, error) {
		return e.auditLog.PreviousSuccess(ctx, userID)
	})
	if err != nil {
		switch {
		case errors.Is(err, auditlog.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
		case errors.Is(err, counter.ErrUnavailable):
			return nil, fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
		default:
			return nil, err
		}
	}
	return last, nil
}
