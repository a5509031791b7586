package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/celerix-dev/celerix-lock/pkg/schema"
)

// Inputs are the simulated hardware inputs.
type Inputs interface {
	TriggerMotion()
	PressButton()
	PressKeys(keys string)
}

// VisionInjector queues a co-processor status.
type VisionInjector interface {
	InjectVision(st schema.VisionStatus) error
}

// Debug drives simulated hardware over HTTP.
type Debug struct {
	Inputs Inputs
	Vision VisionInjector
}

func (d *Debug) Routes(r gin.IRouter) {
	g := r.Group("/debug")
	g.POST("/motion", d.Motion)
	g.POST("/button", d.Button)
	g.POST("/keypad", d.Keypad)
	g.POST("/vision", d.InjectVision)
}

func (d *Debug) Motion(c *gin.Context) {
	d.Inputs.TriggerMotion()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (d *Debug) Button(c *gin.Context) {
	d.Inputs.PressButton()
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (d *Debug) Keypad(c *gin.Context) {
	var input struct {
		Keys string `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d.Inputs.PressKeys(input.Keys)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (d *Debug) InjectVision(c *gin.Context) {
	var input struct {
		Status string `json:"status" binding:"required"`
		Name   string `json:"name"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := d.Vision.InjectVision(schema.VisionStatus{Status: input.Status, Name: input.Name}); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
