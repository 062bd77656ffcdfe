package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of the specified roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if HasAnyRole(c.Request().Context(), roles...) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

func HasAnyRole(ctx context.Context, roles ...string) bool {
	for _, has := range RolesFromContext(ctx) {
		if has == RoleAdmin {
			return true
		}
		for _, required := range roles {
			if has == required {
				return true
			}
		}
	}
	return false
}

// IsStaff reports whether the caller works at the clinic.
func IsStaff(ctx context.Context) bool {
	return HasAnyRole(ctx, RoleDentist, RoleStaff)
}

// CanAccessPatient allows clinic staff, and patients for their own records.
func CanAccessPatient(ctx context.Context, patientID string) bool {
	if IsStaff(ctx) {
		return true
	}
	return patientID != "" && UserIDFromContext(ctx) == patientID
}

// RequirePatientAccess guards routes carrying a :patientId parameter.
func RequirePatientAccess(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !CanAccessPatient(c.Request().Context(), c.Param(param)) {
				return echo.NewHTTPError(http.StatusForbidden, "not allowed to access this patient")
			}
			return next(c)
		}
	}
}
