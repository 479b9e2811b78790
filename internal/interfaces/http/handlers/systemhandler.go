package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"volt/internal/shared/utils"
)

// SystemHandler serves the operational endpoints. The sitemap and robots
// bodies are rendered by the route table, injected as closures.
type SystemHandler struct {
	version string
	sitemap func() string
	robots  func() string
}

func NewSystemHandler(version string, sitemap, robots func() string) *SystemHandler {
	return &SystemHandler{version: version, sitemap: sitemap, robots: robots}
}

func (h *SystemHandler) Health(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"status": "ok"})
}

func (h *SystemHandler) Version(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", gin.H{"version": h.version})
}

func (h *SystemHandler) Sitemap(c *gin.Context) {
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(h.sitemap()))
}

func (h *SystemHandler) Robots(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(h.robots()))
}
