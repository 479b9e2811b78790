package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volt/internal/shared/config"
)

// Session cookie names. volt_session carries the credential and is
// HttpOnly; the companion cookies exist so frontend code can render
// signed-in state without an extra round trip and carry no authority.
const (
	SessionCookie   = "volt_session"
	UIDCookie       = "volt_uid"
	ActivatedCookie = "volt_activated"
	DisplayCookie   = "volt_display"
)

// SetSessionCookies sets the session token cookie plus the companion
// display cookies. All four share expiry so they appear and disappear
// together.
func SetSessionCookies(c *gin.Context, cookieConfig config.CookieConfig, token, uid, displayName string, activated bool, maxAge int) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))

	c.SetCookie(SessionCookie, token, maxAge, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, true)
	c.SetCookie(UIDCookie, uid, maxAge, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, false)
	c.SetCookie(ActivatedCookie, boolString(activated), maxAge, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, false)
	c.SetCookie(DisplayCookie, displayName, maxAge, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, false)
}

// ClearSessionCookies removes the session cookie and all companions.
func ClearSessionCookies(c *gin.Context, cookieConfig config.CookieConfig) {
	c.SetSameSite(parseSameSite(cookieConfig.SameSite))

	for _, name := range []string{SessionCookie, UIDCookie, ActivatedCookie, DisplayCookie} {
		httpOnly := name == SessionCookie
		c.SetCookie(name, "", -1, cookieConfig.Path, cookieConfig.Domain, cookieConfig.Secure, httpOnly)
	}
}

// GetSessionToken retrieves the session token from the cookie, falling
// back to a Bearer Authorization header for API clients.
func GetSessionToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}

	const bearerPrefix = "Bearer "
	auth := c.GetHeader("Authorization")
	if len(auth) > len(bearerPrefix) && auth[:len(bearerPrefix)] == bearerPrefix {
		return auth[len(bearerPrefix):]
	}
	return ""
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// parseSameSite converts the configured string to http.SameSite.
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "Strict":
		return http.SameSiteStrictMode
	case "Lax":
		return http.SameSiteLaxMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
