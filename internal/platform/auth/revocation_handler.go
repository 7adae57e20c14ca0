package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// revocationListResponse is the response for GET /auth/revocations.
type revocationListResponse struct {
	Count   int              `json:"count"`
	Entries []RevocationInfo `json:"entries"`
}

// RegisterRevocationRoutes mounts logout for every session and the
// revocation list for admins.
func RegisterRevocationRoutes(g *echo.Group, store *TokenRevocationStore) {
	g.POST("/auth/logout", handleLogout(store), RequireSession())
	g.GET("/auth/revocations", handleListRevocations(store), RequireRole(RoleAdmin))
}

// handleLogout revokes the token that authenticated the request. Sessions
// without a token, such as the development session, have nothing to revoke.
func handleLogout(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		s := SessionFromContext(c.Request().Context())
		if s == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		if s.TokenID != "" {
			store.Revoke(s.TokenID, s.UserID.String(), s.ExpiresAt)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func handleListRevocations(store *TokenRevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		entries := store.Entries()
		return c.JSON(http.StatusOK, revocationListResponse{
			Count:   len(entries),
			Entries: entries,
		})
	}
}
