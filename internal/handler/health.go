package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Liveness endpoint.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// Root endpoint.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"message": "Authentic auth API server is running",
	})
}
