package logingate

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/zeroharbor/logingate/auditlog"
)

func TestBuildRequiresRedisAndAuditLog(t *testing.T) {
	if _, err := New().Build(); !errors.Is(err, ErrRedisRequired) {
		t.Fatalf("build without redis = %v, want ErrRedisRequired", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithRedis(rdb).Build(); !errors.Is(err, ErrAuditLogRequired) {
		t.Fatalf("build without audit log = %v, want ErrAuditLogRequired", err)
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	log, err := auditlog.Open(filepath.Join(t.TempDir(), "login_log.db"))
	if err != nil {
		t.Fatalf("audit log open failed: %v", err)
	}
	defer log.Close()

	cfg := DefaultConfig()
	cfg.IPBanThreshold = 0

	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithAuditLog(log).Build(); err == nil {
		t.Fatal("build accepted an invalid config")
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	log, err := auditlog.Open(filepath.Join(t.TempDir(), "login_log.db"))
	if err != nil {
		t.Fatalf("audit log open failed: %v", err)
	}
	defer log.Close()

	builder := New().WithRedis(rdb).WithAuditLog(log)

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); !errors.Is(err, ErrBuilderReused) {
		t.Fatalf("second build = %v, want ErrBuilderReused", err)
	}
}
