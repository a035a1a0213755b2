package auth

import (
	"testing"
	"time"
)

func TestIssueAndVerifyAccessToken(t *testing.T) {
	token, expiresAt, err := IssueAccessToken(42, "chef@example.com", RoleAdmin, "secret", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %s", expiresAt)
	}

	claims, err := VerifyAccessToken(token, "secret")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 || claims.Role != RoleAdmin || claims.Email != "chef@example.com" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	if _, err := VerifyAccessToken(token, "other"); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	token, _, err := IssueAccessToken(1, "a@example.com", RoleCustomer, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyAccessToken(token, "secret"); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Basic abc":  "",
		"Bearer":     "",
		"":           "",
		"Bearer a b": "",
	}
	for header, expected := range cases {
		if got := ParseBearerToken(header); got != expected {
			t.Fatalf("header %q: expected %q, got %q", header, expected, got)
		}
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "hunter2"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "hunter3"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRequiredRole(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		expected UserRole
	}{
		{"GET", "/menutypes", ""},
		{"POST", "/menutypes", RoleAdmin},
		{"DELETE", "/menutypes/4", RoleAdmin},
		{"PUT", "/ItemCategoryMenuType/9", RoleAdmin},
		{"GET", "/AdminCorrectMenus/structured", RoleAdmin},
		{"PUT", "/AdminCorrectMenus/7", RoleAdmin},
		{"GET", "/advanceMenu/overview", ""},
		{"POST", "/advanceMenu/publish", RoleAdmin},
		{"POST", "/orders/submit/7", ""},
		{"POST", "/itemsExtra", ""},
		{"POST", "/bookings", RoleAdmin},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			if got := RequiredRole(tc.path, tc.method); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}

	customer := &Claims{UserID: 1, Role: RoleCustomer}
	if Allowed(customer, "/categories", "POST") {
		t.Fatalf("expected customer write to be denied")
	}
	if !Allowed(customer, "/categories", "GET") {
		t.Fatalf("expected customer read to be allowed")
	}
	if Allowed(nil, "/categories", "GET") {
		t.Fatalf("expected anonymous caller to be denied")
	}
}
