package http

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"volt/internal/shared/errors"
	"volt/internal/shared/logger"
	"volt/internal/shared/utils"
)

var errorPageStatuses = map[int]bool{
	http.StatusBadRequest:          true,
	http.StatusForbidden:           true,
	http.StatusNotFound:            true,
	http.StatusInternalServerError: true,
}

// ErrorPages holds application-registered renderers for terminal error
// statuses. A custom handler that itself fails degrades to the built-in
// body instead of cascading.
type ErrorPages struct {
	mu       sync.RWMutex
	handlers map[int]gin.HandlerFunc
	log      logger.Interface
}

func NewErrorPages(log logger.Interface) *ErrorPages {
	return &ErrorPages{
		handlers: make(map[int]gin.HandlerFunc),
		log:      log.Named("errorpages"),
	}
}

// Set registers a custom renderer. Only 400, 403, 404, and 500 may be
// overridden; normal unauthenticated redirects never go through here.
func (e *ErrorPages) Set(status int, handler gin.HandlerFunc) error {
	if !errorPageStatuses[status] {
		return errors.NewValidationError(fmt.Sprintf("no error page for status %d", status))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[status] = handler
	return nil
}

// Render produces the terminal error response: the custom handler when
// one is registered, the built-in body otherwise. api selects JSON over
// plain text for the built-in body.
func (e *ErrorPages) Render(c *gin.Context, status int, api bool, message string) {
	e.mu.RLock()
	handler := e.handlers[status]
	e.mu.RUnlock()

	if handler != nil && e.renderCustom(c, status, handler) {
		return
	}
	e.builtin(c, status, api, message)
}

// renderCustom runs a registered handler, reporting whether it produced
// a response. Panics degrade to the built-in body.
func (e *ErrorPages) renderCustom(c *gin.Context, status int, handler gin.HandlerFunc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("custom error page failed", "status", status, "panic", r)
			ok = false
		}
	}()
	handler(c)
	return c.Writer.Written()
}

func (e *ErrorPages) builtin(c *gin.Context, status int, api bool, message string) {
	if message == "" {
		message = strings.ToLower(http.StatusText(status))
	}
	if api {
		utils.ErrorResponse(c, status, message)
		return
	}
	c.String(status, "%d %s", status, message)
}
