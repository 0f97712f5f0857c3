package server

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/pkg/errors"
)

var errArtifactNotFound = errors.New("Artifact not found")

func getArtifacts(c *gin.Context) {
	store := c.MustGet(storeKey).(*artifacts.Store)
	kind, err := artifacts.ParseKind(c.Param("kind"))
	if err != nil {
		abortWithClientError(c, http.StatusNotFound, err)
		return
	}
	names, err := store.List(kind)
	if err != nil {
		abortWithClientError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"Artifacts": names,
	})
}

func getArtifact(c *gin.Context) {
	store := c.MustGet(storeKey).(*artifacts.Store)
	kind, err := artifacts.ParseKind(c.Param("kind"))
	if err != nil {
		abortWithClientError(c, http.StatusNotFound, err)
		return
	}
	path, err := store.Open(kind, c.Param("name"))
	if err != nil {
		abortWithClientError(c, http.StatusBadRequest, err)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		abortWithClientError(c, http.StatusNotFound, errArtifactNotFound)
		return
	}
	c.File(path)
}
