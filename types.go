package logingate

// Outcome is the terminal result of one login attempt. Outcomes are business
// facts, never errors: a denied attempt still returns a nil error.
type Outcome string

const (
	// OutcomeSuccess means the credentials verified and no ban or lock applied.
	OutcomeSuccess Outcome = "success"
	// OutcomeWrongLogin means the username did not resolve to any record.
	OutcomeWrongLogin Outcome = "wrong_login"
	// OutcomeWrongPassword means the username resolved but the password did not match.
	OutcomeWrongPassword Outcome = "wrong_password"
	// OutcomeLocked means the resolved account is over its failure threshold.
	// A locked account is rejected even with the correct password.
	OutcomeLocked Outcome = "locked"
	// OutcomeBanned means the source address is over its failure threshold.
	// The ban is decided before credential verification, so a banned source
	// never learns whether a username exists.
	OutcomeBanned Outcome = "banned"
)

// Denied reports whether the outcome is anything other than success.
func (o Outcome) Denied() bool {
	return o != OutcomeSuccess
}

// User is the resolved identity returned on a successful attempt or a
// session lookup.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Report is the reporter's log-derived view of banned addresses and locked
// users, independent of the live counters.
type Report struct {
	BannedIPs   []string `json:"banned_ips"`
	LockedUsers []string `json:"locked_users"`
}
