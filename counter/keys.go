package counter

import (
	"strconv"
	"strings"
)

// Key namespaces. Counters live in a flat keyspace shared with fragments,
// so each family carries its own prefix.
const (
	userLockPrefix  = "user_locked_status_"
	ipBanPrefix     = "ip_ban_"
	lastLoginPrefix = "last_login_"
)

// UserLockKey returns the failure-counter key for a resolved user id.
func UserLockKey(userID int64) string {
	return userLockPrefix + strconv.FormatInt(userID, 10)
}

// IPBanKey returns the failure-counter key for a source address. Dots and
// colons are normalized to underscores so IPv4 and IPv6 addresses are both
// usable as key fragments.
func IPBanKey(addr string) string {
	return ipBanPrefix + normalizeAddr(addr)
}

// LastLoginKey returns the fragment key memoizing a user's previous
// successful login.
func LastLoginKey(userID int64) string {
	return lastLoginPrefix + strconv.FormatInt(userID, 10)
}

func normalizeAddr(addr string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ':':
			return '_'
		}
		return r
	}, addr)
}
