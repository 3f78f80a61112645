package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/reverify/internal/platform/errors"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestManager(t *testing.T, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{Key: testKey, TTL: time.Hour, Now: now})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManagerRejectsShortKey(t *testing.T) {
	t.Parallel()

	if _, err := NewManager(Config{Key: []byte("short")}); err == nil {
		t.Fatal("expected short key to fail")
	}
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m := newTestManager(t, func() time.Time { return now })
	token, err := m.Issue("learner-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "learner-1" {
		t.Fatalf("UserID = %q, want %q", claims.UserID, "learner-1")
	}
	if !claims.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", claims.ExpiresAt, now.Add(time.Hour))
	}
}

func TestIssueRequiresUserID(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	if _, err := m.Issue("  "); err == nil {
		t.Fatal("expected blank user id to fail")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	current := issuedAt
	m := newTestManager(t, func() time.Time { return current })
	token, err := m.Issue("learner-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	current = issuedAt.Add(2 * time.Hour)
	_, err = m.Verify(token)
	if err == nil {
		t.Fatal("expected expired token to fail")
	}
	if apperrors.KindOf(err) != apperrors.KindUnauthorized {
		t.Fatalf("kind = %q, want %q", apperrors.KindOf(err), apperrors.KindUnauthorized)
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	other, err := NewManager(Config{Key: []byte(strings.Repeat("z", 32))})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	token, err := other.Issue("learner-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := newTestManager(t, nil).Verify(token); err == nil {
		t.Fatal("expected foreign signature to fail")
	}
}

func TestVerifyRejectsBlankToken(t *testing.T) {
	t.Parallel()

	_, err := newTestManager(t, nil).Verify("")
	if got := apperrors.LocalizationKey(err); got != "reverify.session.missing" {
		t.Fatalf("LocalizationKey() = %q", got)
	}
}

func TestTokenFromRequestPrefersCookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(Cookie("cookie-token", false))
	req.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(req); got != "cookie-token" {
		t.Fatalf("TokenFromRequest() = %q", got)
	}

	bearer := httptest.NewRequest(http.MethodGet, "/", nil)
	bearer.Header.Set("Authorization", "Bearer header-token")
	if got := TokenFromRequest(bearer); got != "header-token" {
		t.Fatalf("TokenFromRequest() = %q", got)
	}
	if got := TokenFromRequest(nil); got != "" {
		t.Fatalf("TokenFromRequest(nil) = %q", got)
	}
}

func TestRequireStoresClaims(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	token, err := m.Issue("learner-9")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	var seen string
	h := m.Require(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("expected claims on context")
		}
		seen = claims.UserID
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(Cookie(token, false))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNoContent)
	}
	if seen != "learner-9" {
		t.Fatalf("user = %q, want %q", seen, "learner-9")
	}
}

func TestRequireDeniesMissingSession(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil)
	var denied error
	h := m.Require(func(w http.ResponseWriter, _ *http.Request, err error) {
		denied = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("next handler should not run")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if denied == nil {
		t.Fatal("expected deny callback error")
	}
}

func TestDecodeKey(t *testing.T) {
	t.Parallel()

	key, err := DecodeKey(" " + strings.Repeat("ab", 32) + "\n")
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if len(key) != 32 || key[0] != 0xab {
		t.Fatalf("key = %x", key)
	}
	for _, value := range []string{"", "zz", strings.Repeat("ab", 8)} {
		if _, err := DecodeKey(value); err == nil {
			t.Fatalf("DecodeKey(%q) expected error", value)
		}
	}
}
