package db

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
)

type contextKey string

const BranchIDKey contextKey = "branch_id"

var branchIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// BranchMiddleware resolves the clinic branch a request operates on. The
// queue is partitioned by branch; other tables are clinic-wide.
func BranchMiddleware(defaultBranch string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			branchID := extractBranchID(c, defaultBranch)
			if !branchIDPattern.MatchString(branchID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid branch identifier")
			}

			ctx := context.WithValue(c.Request().Context(), BranchIDKey, branchID)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("branch_id", branchID)
			return next(c)
		}
	}
}

func extractBranchID(c echo.Context, defaultBranch string) string {
	// 1. Token claim (set by auth middleware)
	if bid, ok := c.Get("jwt_branch_id").(string); ok && bid != "" {
		return bid
	}

	// 2. X-Branch-ID header
	if bid := c.Request().Header.Get("X-Branch-ID"); bid != "" {
		return bid
	}

	// 3. Query parameter
	if bid := c.QueryParam("branch_id"); bid != "" {
		return bid
	}

	return defaultBranch
}

// BranchFromContext retrieves the branch ID from context.
func BranchFromContext(ctx context.Context) string {
	bid, _ := ctx.Value(BranchIDKey).(string)
	return bid
}

// WithBranch stores a branch ID on the context, for callers outside HTTP.
func WithBranch(ctx context.Context, branchID string) context.Context {
	return context.WithValue(ctx, BranchIDKey, branchID)
}
