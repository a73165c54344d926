package auth

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"kestrel/internal/domain"
)

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := extractClaims(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits admins and superadmins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := roleFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !domain.CanBlock(role) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSuperadmin admits the top tier only.
func RequireSuperadmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, err := roleFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if role != domain.RoleSuperadmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetActorFromRequest builds the acting identity from the bearer token.
func GetActorFromRequest(r *http.Request) (domain.Actor, error) {
	claims, err := extractClaims(r)
	if err != nil {
		return domain.Actor{}, err
	}

	// JWT numbers are parsed as float64 by default
	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return domain.Actor{}, errors.New("invalid user ID in token")
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return domain.UserActor(uint(rawID), email, role), nil
}

func GetUserIDFromRequest(r *http.Request) (uint, error) {
	actor, err := GetActorFromRequest(r)
	if err != nil {
		return 0, err
	}
	id := actor.UserID()
	if id == nil {
		return 0, errors.New("no user identity in token")
	}
	return *id, nil
}

func roleFromRequest(r *http.Request) (string, error) {
	claims, err := extractClaims(r)
	if err != nil {
		return "", err
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", errors.New("missing role claim")
	}
	return role, nil
}

func extractClaims(r *http.Request) (map[string]interface{}, error) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, errors.New("missing or malformed Authorization header")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return ValidateJWT(token)
}

func IsValidEmail(email string) bool {
	re := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return re.MatchString(email)
}
