package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"github.com/kayuraya/presensi-backend/internal/handler/http/response"
	"github.com/kayuraya/presensi-backend/internal/pkg/jwt"
)

// RequireEmployee requires the token to identify an employee.
func RequireEmployee(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := EmployeeID(r); !ok {
			response.Forbidden(w, "Employee ID not found in token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireHR requires hr or admin role
func RequireHR(next http.Handler) http.Handler {
	return RequireRole(jwt.RoleHR, jwt.RoleAdmin)(next)
}

// RequireRole checks the role claim against roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			role, ok := claims["role"].(string)
			if !ok {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			if _, ok := allowed[role]; !ok {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: role '%s' cannot access this resource", role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
