package config

import (
	"testing"
	"time"
)

func TestParseTTL(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "15m", want: 15 * time.Minute},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "30d", want: 30 * 24 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: " 5s ", want: 5 * time.Second},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "30x", wantErr: true},
		{in: "-5m", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "-2d", wantErr: true},
		{in: "0s", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseTTL(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTTL(%q) should fail, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTTL(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTTL(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/auth_test?sslmode=disable")
	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret-for-tests-0123456789abcdef")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret-for-tests-0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AccessTokenTTL != 15*time.Minute {
		t.Errorf("default access TTL = %v, want 15m", cfg.AccessTokenTTL)
	}
	if cfg.RefreshTokenTTL != 30*24*time.Hour {
		t.Errorf("default refresh TTL = %v, want 30d", cfg.RefreshTokenTTL)
	}
	if cfg.OtpTTL() != 5*time.Minute {
		t.Errorf("default OTP TTL = %v, want 5m", cfg.OtpTTL())
	}
	if cfg.Production() {
		t.Error("default env should not be production")
	}
	if cfg.RevocationFailClosed {
		t.Error("revocation check should fail open by default")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Error("load should fail without DATABASE_URL")
	}
}

func TestLoadRequiresStrongSecrets(t *testing.T) {
	setValidEnv(t)
	t.Setenv("ACCESS_TOKEN_SECRET", "short")

	if _, err := Load(); err == nil {
		t.Error("load should reject a short access secret")
	}
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	setValidEnv(t)
	t.Setenv("REFRESH_TOKEN_SECRET", "access-secret-for-tests-0123456789abcdef")

	if _, err := Load(); err == nil {
		t.Error("load should reject identical access and refresh secrets")
	}
}

func TestLoadRejectsMalformedTTL(t *testing.T) {
	setValidEnv(t)
	t.Setenv("REFRESH_TOKEN_TTL", "30days")

	if _, err := Load(); err == nil {
		t.Error("load should fail loudly on a malformed TTL instead of defaulting")
	}
}

func TestLoadProduction(t *testing.T) {
	setValidEnv(t)
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Production() {
		t.Error("APP_ENV=production should report production")
	}
}
