// Package util holds the JSON envelope shared by the user and admin engines.
package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the uniform body of every endpoint: Code 0 on success, -1 on
// failure, with Message for humans and Data for machines.
type Response struct {
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
}

// Success writes a 200 wrapping data in the envelope.
func Success(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    0,
		Data:    data,
		Message: message,
	})
}

// Error writes a failure response with the given HTTP status and logs it.
// err may be a plain string or an error value.
func Error(c *gin.Context, code int, err interface{}) {
	var msg string
	switch e := err.(type) {
	case string:
		msg = e
	case error:
		msg = e.Error()
	default:
		msg = "internal server error"
	}

	zap.S().Errorf("request failed (%d): %s", code, msg)

	c.JSON(code, Response{
		Code:    -1,
		Message: msg,
	})
}
