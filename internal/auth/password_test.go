package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "valid", raw: "Admin.User", want: "admin.user"},
		{name: "trim", raw: "  a-user  ", want: "a-user"},
		{name: "invalid chars", raw: "bad space", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeUsername(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeUsername(%q)=%q want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("password-123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !VerifyPassword(hash, "password-123") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "ok", password: "password-123"},
		{name: "too short", password: "short", wantErr: true},
		{name: "too long", password: strings.Repeat("x", MaxPasswordBytes+1), wantErr: true},
		{name: "leading space", password: " password-123", wantErr: true},
		{name: "eight runes", password: "pässwörd"},
		{name: "seven runes in eight bytes", password: "pässwör", wantErr: true},
		{name: "invalid utf8", password: "password\xff", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePassword(%q) err=%v wantErr=%v", tt.password, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPasswordRejected) {
				t.Fatalf("expected ErrPasswordRejected, got %v", err)
			}
		})
	}
}

func TestVerifyPasswordEmptyHash(t *testing.T) {
	if VerifyPassword("", "password-123") {
		t.Fatal("empty hash must never verify")
	}
}

func TestNormalizeUsernameErrors(t *testing.T) {
	if _, err := NormalizeUsername("   "); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("expected ErrUsernameRequired, got %v", err)
	}
	for _, raw := range []string{"-alice", "alice!", strings.Repeat("a", MaxUsernameLength+1)} {
		if _, err := NormalizeUsername(raw); !errors.Is(err, ErrUsernameInvalid) {
			t.Fatalf("NormalizeUsername(%q): expected ErrUsernameInvalid, got %v", raw, err)
		}
	}
}

func TestHashPasswordRejectsPolicyViolations(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrPasswordRejected) {
		t.Fatalf("expected ErrPasswordRejected, got %v", err)
	}
}
