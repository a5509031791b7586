package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-lock/internal/settings"
	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Backend executes requests on the control loop.
type Backend interface {
	Unlock(ctx context.Context, req schema.UnlockRequest) (bool, error)
	UpdateSettings(ctx context.Context, body []byte) (settings.Response, error)
	Status(ctx context.Context) (schema.StatusResponse, error)
}

type Handler struct {
	Lock    Backend
	Timeout time.Duration
}

// Routes mounts the local API.
func (h *Handler) Routes(r gin.IRouter) {
	r.POST("/unlock", h.Unlock)
	r.PATCH("/update-settings", h.UpdateSettings)
	r.GET("/status", h.Status)
}

func (h *Handler) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (h *Handler) Unlock(c *gin.Context) {
	var req schema.UnlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, schema.Response{Status: schema.StatusFail, Error: "Parsing failed. Try again"})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	ok, err := h.Lock.Unlock(ctx, req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, schema.Response{Status: schema.StatusFail, Error: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, schema.Response{Status: schema.StatusFail, Error: "Wrong pin stored, pin may have been updated"})
		return
	}
	c.JSON(http.StatusOK, schema.Response{Status: schema.StatusSuccess})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, schema.Response{Status: schema.StatusFail, Error: "Parsing failed. Try Again."})
		return
	}

	ctx, cancel := h.ctx(c)
	defer cancel()
	resp, err := h.Lock.UpdateSettings(ctx, body)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, schema.Response{Status: schema.StatusFail, Error: err.Error()})
		return
	}
	c.JSON(resp.Code, resp.Body)
}

func (h *Handler) Status(c *gin.Context) {
	ctx, cancel := h.ctx(c)
	defer cancel()
	st, err := h.Lock.Status(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, schema.Response{Status: schema.StatusFail, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}
