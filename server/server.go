// Package server serves recent failure reports and their artifacts over HTTP
package server

import (
	"context"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/artifacts"
	"go.uber.org/zap"
)

const (
	loggerKey = "logger"
	indexKey  = "index"
	storeKey  = "store"

	shutdownTimeout = 5 * time.Second
)

// New creates the report server's HTTP handler
func New(index *Index, store *artifacts.Store, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(logger, time.RFC3339, true),
		recovery(logger, true),
	)
	engine.GET("/", func(c *gin.Context) { c.Redirect(http.StatusTemporaryRedirect, "/api/v1/failures") })

	api := engine.Group("/api/v1")
	api.Use(
		func(c *gin.Context) {
			c.Set(loggerKey, logger)
			c.Set(indexKey, index)
			c.Set(storeKey, store)
		},
	)
	setupAPI(api)
	return engine
}

// Run serves the report server on 'addr' until ctx is canceled
func Run(ctx context.Context, addr string, index *Index, store *artifacts.Store, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           New(index, store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("addr", addr))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func setupAPI(router gin.IRouter) {
	router.GET("/version", getVersion)
	router.GET("/stats", getStats)

	router.GET("/failures", getFailures)
	router.GET("/failures/:id", getFailure)

	router.GET("/artifacts/:kind", getArtifacts)
	router.GET("/artifacts/:kind/:name", getArtifact)
}

func abortWithClientError(c *gin.Context, status int, err error) {
	logger := c.MustGet(loggerKey).(*zap.Logger)
	if status/100 == 5 {
		logger.Error("Aborting with server error", zap.Error(err))
	} else {
		logger.Info("Aborting with client error", zap.String("error", err.Error()))
	}
	c.AbortWithStatusJSON(status, map[string]string{
		"Error": err.Error(),
	})
}
