package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"volt/internal/domain/user"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

// Context keys set by the auth gate.
const (
	ContextUser = "user"
	ContextUID  = "uid"
)

// Authenticator resolves a presented credential to a user. Satisfied by
// the user application service.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*user.User, error)
}

// AuthGate is the per-route authentication step. Three outcomes: no
// credential on a public route proceeds anonymously; a valid credential
// attaches the identity to the request context; anything else on a
// route requiring auth short-circuits.
type AuthGate struct {
	users      Authenticator
	signinPath string
	log        logger.Interface
}

func NewAuthGate(users Authenticator, signinPath string, log logger.Interface) *AuthGate {
	if signinPath == "" {
		signinPath = "/signin"
	}
	return &AuthGate{users: users, signinPath: signinPath, log: log.Named("auth")}
}

// Gate returns the middleware for one route. page selects the
// browser-flow failure response (redirect to sign-in) over 401 JSON.
func (g *AuthGate) Gate(requiresAuth, page bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := utils.GetSessionToken(c)
		if credential == "" {
			if requiresAuth {
				g.reject(c, page)
				return
			}
			c.Next()
			return
		}

		// Fail closed: any decode or lookup error is treated as
		// unauthenticated, never propagated.
		u, err := g.users.Authenticate(c.Request.Context(), credential)
		if err != nil {
			if requiresAuth {
				g.reject(c, page)
				return
			}
			c.Next()
			return
		}

		c.Set(ContextUser, u)
		c.Set(ContextUID, u.UID)
		c.Next()
	}
}

func (g *AuthGate) reject(c *gin.Context, page bool) {
	if page {
		c.Redirect(http.StatusFound, g.signinPath)
		c.Abort()
		return
	}
	utils.ErrorResponse(c, http.StatusUnauthorized, "invalid credentials")
	c.Abort()
}

// CurrentUser returns the authenticated user attached by the gate.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	v, exists := c.Get(ContextUser)
	if !exists {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}

// CurrentUID returns the authenticated uid, or "" for anonymous
// requests.
func CurrentUID(c *gin.Context) string {
	return c.GetString(ContextUID)
}
