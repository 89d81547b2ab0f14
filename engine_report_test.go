package logingate

import (
	"context"
	"reflect"
	"sort"
	"testing"
)

func sortedStrings(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func TestReportMatchesCounterDetermination(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig(), nil)
	seedUser(t, engine, 1, "alice", "open-sesame")
	seedUser(t, engine, 2, "bob", "hunter2")

	// bob: locked (3 failures, no success since).
	for i := 0; i < DefaultUserLockThreshold; i++ {
		mustAttempt(t, engine, "bob", "wrong", "10.0.0.2")
	}
	// alice: failures healed by a success, not locked.
	mustAttempt(t, engine, "alice", "wrong", "10.0.0.1")
	mustAttempt(t, engine, "alice", "open-sesame", "10.0.0.1")
	// 10.0.0.3: banned by unknown-username failures.
	for i := 0; i < DefaultIPBanThreshold; i++ {
		mustAttempt(t, engine, "ghost", "wrong", "10.0.0.3")
	}

	report, err := engine.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if !reflect.DeepEqual(report.BannedIPs, []string{"10.0.0.3"}) {
		t.Fatalf("banned ips = %v, want [10.0.0.3]", report.BannedIPs)
	}
	if !reflect.DeepEqual(sortedStrings(report.LockedUsers), []string{"bob"}) {
		t.Fatalf("locked users = %v, want [bob]", report.LockedUsers)
	}

	// With no missed resets the log-derived sets agree with the live
	// counter determinations.
	ctx := context.Background()
	for _, tt := range []struct {
		addr string
		want bool
	}{
		{"10.0.0.1", false},
		{"10.0.0.2", false},
		{"10.0.0.3", true},
	} {
		banned, err := engine.ipBanned(ctx, tt.addr)
		if err != nil {
			t.Fatalf("ipBanned(%s): %v", tt.addr, err)
		}
		if banned != tt.want {
			t.Fatalf("counter ban for %s = %v, log says %v", tt.addr, banned, tt.want)
		}
	}
	for _, tt := range []struct {
		userID int64
		want   bool
	}{
		{1, false},
		{2, true},
	} {
		locked, err := engine.userLocked(ctx, tt.userID)
		if err != nil {
			t.Fatalf("userLocked(%d): %v", tt.userID, err)
		}
		if locked != tt.want {
			t.Fatalf("counter lock for user %d = %v, log says %v", tt.userID, locked, tt.want)
		}
	}
}

func TestReportEmptyLogReturnsEmptySets(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig(), nil)

	report, err := engine.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if report.BannedIPs == nil || len(report.BannedIPs) != 0 {
		t.Fatalf("banned ips = %#v, want empty non-nil", report.BannedIPs)
	}
	if report.LockedUsers == nil || len(report.LockedUsers) != 0 {
		t.Fatalf("locked users = %#v, want empty non-nil", report.LockedUsers)
	}
}

func TestCurrentSessionUser(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig(), nil)
	seedUser(t, engine, 1, "alice", "open-sesame")
	ctx := context.Background()

	user, err := engine.CurrentSessionUser(ctx, "alice")
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if user == nil || user.ID != 1 || user.Username != "alice" {
		t.Fatalf("user = %+v", user)
	}

	user, err = engine.CurrentSessionUser(ctx, "mallory")
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if user != nil {
		t.Fatalf("stale session resolved to %+v, want nil", user)
	}

	user, err = engine.CurrentSessionUser(ctx, "")
	if err != nil || user != nil {
		t.Fatalf("empty session = (%+v, %v), want (nil, nil)", user, err)
	}
}

func TestLastLoginFragmentLifecycle(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig(), nil)
	seedUser(t, engine, 1, "alice", "open-sesame")
	ctx := context.Background()

	last, err := engine.LastLogin(ctx, 1)
	if err != nil {
		t.Fatalf("last login: %v", err)
	}
	if last != nil {
		t.Fatalf("last login with no successes = %+v, want nil", last)
	}

	mustAttempt(t, engine, "alice", "open-sesame", "10.0.0.1")
	mustAttempt(t, engine, "alice", "open-sesame", "10.0.0.2")

	// Two successes: the reported last login is the one before the latest.
	last, err = engine.LastLogin(ctx, 1)
	if err != nil {
		t.Fatalf("last login: %v", err)
	}
	if last == nil || last.IP != "10.0.0.1" {
		t.Fatalf("last login = %+v, want the 10.0.0.1 success", last)
	}

	// The value is served from the fragment until the next success purges it.
	last, err = engine.LastLogin(ctx, 1)
	if err != nil {
		t.Fatalf("last login (cached): %v", err)
	}
	if last == nil || last.IP != "10.0.0.1" {
		t.Fatalf("cached last login = %+v", last)
	}

	mustAttempt(t, engine, "alice", "open-sesame", "10.0.0.3")

	last, err = engine.LastLogin(ctx, 1)
	if err != nil {
		t.Fatalf("last login after purge: %v", err)
	}
	if last == nil || last.IP != "10.0.0.2" {
		t.Fatalf("last login after purge = %+v, want the 10.0.0.2 success", last)
	}
}

func TestReloadCredentialsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig(), nil)

	seedUser(t, engine, 1, "alice", "open-sesame")
	seedUser(t, engine, 1, "alice", "open-sesame")

	if got := mustAttempt(t, engine, "alice", "open-sesame", "10.0.0.1"); got != OutcomeSuccess {
		t.Fatalf("outcome after double load = %s, want success", got)
	}
}
