package logingate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeroharbor/logingate/auditlog"
	"github.com/zeroharbor/logingate/counter"
)

// AttemptLogin evaluates one login attempt and returns its outcome.
//
// The decision order is banned > locked > success > wrong_password >
// wrong_login. The IP ban is checked before credential verification, so a
// banned source learns nothing about whether a username exists; on the
// banned path the user id is resolved by a bare lookup only so the audit row
// can carry it.
//
// Every attempt appends exactly one durable audit event and then updates the
// counters: a success resets the user's and the address's failure counters
// to zero and purges the user's cached fragments; a failure increments the
// address counter always and the user counter only when the username
// resolved. If any backing store is unavailable the attempt fails closed
// with a non-nil error and no outcome.
func (e *Engine) AttemptLogin(ctx context.Context, username, password, sourceAddr string) (Outcome, *User, error) {
	banned, err := e.ipBanned(ctx, sourceAddr)
	if err != nil {
		return "", nil, err
	}
	if banned {
		var userID *int64
		record, found, err := e.creds.Find(ctx, username)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
		}
		if found {
			userID = &record.ID
		}
		if err := e.recordAttempt(ctx, OutcomeBanned, username, userID, sourceAddr); err != nil {
			return "", nil, err
		}
		return OutcomeBanned, nil, nil
	}

	verification, err := e.creds.Verify(ctx, username, password)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCredentialUnavailable, err)
	}

	if verification.Found {
		locked, err := e.userLocked(ctx, verification.Record.ID)
		if err != nil {
			return "", nil, err
		}
		if locked {
			userID := verification.Record.ID
			if err := e.recordAttempt(ctx, OutcomeLocked, username, &userID, sourceAddr); err != nil {
				return "", nil, err
			}
			return OutcomeLocked, nil, nil
		}
	}

	switch {
	case verification.Found && verification.Matches:
		userID := verification.Record.ID
		if err := e.recordAttempt(ctx, OutcomeSuccess, username, &userID, sourceAddr); err != nil {
			return "", nil, err
		}
		return OutcomeSuccess, &User{ID: userID, Username: verification.Record.Username}, nil

	case verification.Found:
		userID := verification.Record.ID
		if err := e.recordAttempt(ctx, OutcomeWrongPassword, username, &userID, sourceAddr); err != nil {
			return "", nil, err
		}
		return OutcomeWrongPassword, nil, nil

	default:
		if err := e.recordAttempt(ctx, OutcomeWrongLogin, username, nil, sourceAddr); err != nil {
			return "", nil, err
		}
		return OutcomeWrongLogin, nil, nil
	}
}

// ipBanned reads the address's failure counter. Banned iff counter >=
// IPBanThreshold.
func (e *Engine) ipBanned(ctx context.Context, sourceAddr string) (bool, error) {
	value, err := e.counters.Get(ctx, counter.IPBanKey(sourceAddr))
	if err != nil {
		return false, e.mapCounterErr(err)
	}
	return value >= int64(e.config.IPBanThreshold), nil
}

// userLocked reads the resolved user's failure counter. Locked iff counter
// >= UserLockThreshold, independent of password correctness.
func (e *Engine) userLocked(ctx context.Context, userID int64) (bool, error) {
	value, err := e.counters.Get(ctx, counter.UserLockKey(userID))
	if err != nil {
		return false, e.mapCounterErr(err)
	}
	return value >= int64(e.config.UserLockThreshold), nil
}

// recordAttempt performs the per-attempt side effects in order: durable
// audit append, counter updates, fragment purges, async sink mirror. The
// append comes first so the log never misses an attempt whose counters were
// already touched.
func (e *Engine) recordAttempt(ctx context.Context, outcome Outcome, username string, userID *int64, sourceAddr string) error {
	succeeded := outcome == OutcomeSuccess
	now := time.Now()

	if err := e.auditLog.Append(ctx, auditlog.Event{
		CreatedAt: now,
		UserID:    userID,
		Username:  username,
		IP:        sourceAddr,
		Succeeded: succeeded,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditUnavailable, err)
	}

	if userID != nil {
		key := counter.UserLockKey(*userID)
		if succeeded {
			if err := e.counters.Set(ctx, key, 0); err != nil {
				return e.mapCounterErr(err)
			}
		} else {
			if _, err := e.counters.Increment(ctx, key); err != nil {
				return e.mapCounterErr(err)
			}
		}
	}

	ipKey := counter.IPBanKey(sourceAddr)
	if succeeded {
		if err := e.counters.Set(ctx, ipKey, 0); err != nil {
			return e.mapCounterErr(err)
		}
	} else {
		if _, err := e.counters.Increment(ctx, ipKey); err != nil {
			return e.mapCounterErr(err)
		}
	}

	// A new success invalidates any cached recency data for the user.
	if succeeded && userID != nil {
		if err := e.fragments.Purge(ctx, counter.LastLoginKey(*userID)); err != nil {
			return e.mapCounterErr(err)
		}
	}

	e.audit.Emit(ctx, AuditEvent{
		Timestamp: now,
		Username:  username,
		UserID:    userID,
		IP:        sourceAddr,
		Succeeded: succeeded,
		Outcome:   outcome,
	})

	return nil
}

func (e *Engine) mapCounterErr(err error) error {
	if errors.Is(err, counter.ErrContention) {
		return fmt.Errorf("%w: %v", ErrContentionExhausted, err)
	}
	return fmt.Errorf("%w: %v", ErrCounterUnavailable, err)
}
