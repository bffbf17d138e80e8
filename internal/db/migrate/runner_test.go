package migrate

import (
	"strings"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, "up")
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is not set") {
			t.Errorf("Run(%q) = %v, want DATABASE_URL error", dsn, err)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "invalid", "UP", "Down", "sideways"} {
		err := Run("postgres://localhost/test", dir)
		if err == nil || !strings.Contains(err.Error(), "direction must be up or down") {
			t.Errorf("Run(direction %q) = %v, want direction error", dir, err)
		}
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, "up"); err == nil {
			t.Errorf("Run(%q) should return error", dsn)
		}
	}
}

func TestSteps_Zero(t *testing.T) {
	if err := Steps("postgres://localhost/test", 0); err == nil {
		t.Error("Steps(0) should return error")
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	if _, _, err := Version(""); err == nil {
		t.Error("Version with empty DSN should return error")
	}
}
