package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"kestrel/internal/domain"
)

func requestWithToken(t *testing.T, userID uint, email, role string) *http.Request {
	t.Helper()

	token, err := GenerateJWT(userID, email, role)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	w := httptest.NewRecorder()
	RequireAuth(okHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	w := httptest.NewRecorder()
	RequireAuth(okHandler()).ServeHTTP(w, requestWithToken(t, 1, "user@example.com", domain.RoleUser))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRequireAdminTiers(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{domain.RoleUser, http.StatusForbidden},
		{domain.RoleAdmin, http.StatusOK},
		{domain.RoleSuperadmin, http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			w := httptest.NewRecorder()
			RequireAdmin(okHandler()).ServeHTTP(w, requestWithToken(t, 1, "a@example.com", tc.role))
			if w.Code != tc.want {
				t.Fatalf("role %s status = %d, want %d", tc.role, w.Code, tc.want)
			}
		})
	}
}

func TestRequireSuperadminRejectsAdmin(t *testing.T) {
	w := httptest.NewRecorder()
	RequireSuperadmin(okHandler()).ServeHTTP(w, requestWithToken(t, 1, "a@example.com", domain.RoleAdmin))

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	RequireSuperadmin(okHandler()).ServeHTTP(w, requestWithToken(t, 1, "a@example.com", domain.RoleSuperadmin))
	if w.Code != http.StatusOK {
		t.Fatalf("superadmin status = %d, want 200", w.Code)
	}
}

func TestGetActorFromRequest(t *testing.T) {
	actor, err := GetActorFromRequest(requestWithToken(t, 42, "a@example.com", domain.RoleAdmin))
	if err != nil {
		t.Fatalf("GetActorFromRequest: %v", err)
	}

	if actor.IsSystem() {
		t.Fatal("request actor reported as system")
	}
	if id := actor.UserID(); id == nil || *id != 42 {
		t.Fatalf("user id = %v, want 42", id)
	}
	if actor.Role() != domain.RoleAdmin {
		t.Fatalf("role = %q, want admin", actor.Role())
	}
	if actor.String() != "a@example.com" {
		t.Fatalf("actor string = %q, want email", actor.String())
	}
}

func TestValidateJWTRejectsGarbage(t *testing.T) {
	if _, err := ValidateJWT("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("ops@example.com") {
		t.Fatal("valid email rejected")
	}
	if IsValidEmail("nonsense") {
		t.Fatal("invalid email accepted")
	}
}
