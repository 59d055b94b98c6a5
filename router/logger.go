package router

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger logs method, path, status, caller IP and latency.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		log.Printf("%s %s [%s] -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.ClientIP(), c.Writer.Status(), duration)
	}
}
