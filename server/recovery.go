package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// recovery turns a handler panic into a 500 response and an error log, with the stack when 'withStack' is set
func recovery(logger *zap.Logger, withStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if panicValue := recover(); panicValue != nil {
				abortWithServerError(c)
				logPanic(logger, c.Request, panicValue, withStack)
			}
		}()
		c.Next()
	}
}

func abortWithServerError(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, map[string]string{
		"Error": "Internal server error",
	})
}

func logPanic(logger *zap.Logger, req *http.Request, panicValue interface{}, withStack bool) {
	entry := logger.Check(zap.ErrorLevel, "Recovered from handler panic")
	if entry == nil {
		return
	}
	fields := []zap.Field{
		zap.Any("panic", panicValue),
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
	}
	switch {
	case !withStack:
		entry.Entry.Stack = ""
	case entry.Entry.Stack == "":
		fields = append(fields, zap.Stack("stacktrace"))
	}
	entry.Write(fields...)
}
