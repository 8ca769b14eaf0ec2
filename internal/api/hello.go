package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Greeting is the body returned by GET /hello.
const Greeting = "Hello, World!"

// RegisterGreeting adds the liveness endpoint.
func RegisterGreeting(r gin.IRoutes) {
	r.GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, Greeting)
	})
}
