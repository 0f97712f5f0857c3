package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/consts"
)

// getVersion reports the running build
func getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"Version": consts.Version,
	})
}
