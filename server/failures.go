package server

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/pkg/errors"
)

var errFailureNotFound = errors.New("Failure not found or expired")

type failureView struct {
	Failure
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	RecordingURL  string `json:"recording_url,omitempty"`
}

func artifactURL(kind artifacts.Kind, path string) string {
	return "/api/v1/artifacts/" + string(kind) + "/" + filepath.Base(path)
}

func viewFailure(failure Failure) failureView {
	view := failureView{Failure: failure}
	if path := failure.Report.ScreenshotPath; path.Present() {
		view.ScreenshotURL = artifactURL(artifacts.Screenshot, path.Value)
	}
	if path := failure.Report.Recording; path.Present() {
		view.RecordingURL = artifactURL(artifacts.Recording, path.Value)
	}
	return view
}

func getFailures(c *gin.Context) {
	index := c.MustGet(indexKey).(*Index)
	failures := index.List()
	views := make([]failureView, 0, len(failures))
	for _, failure := range failures {
		views = append(views, viewFailure(failure))
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"Failures": views,
	})
}

func getFailure(c *gin.Context) {
	index := c.MustGet(indexKey).(*Index)
	failure, found := index.Get(c.Param("id"))
	if !found {
		abortWithClientError(c, http.StatusNotFound, errFailureNotFound)
		return
	}
	c.JSON(http.StatusOK, viewFailure(failure))
}

func getStats(c *gin.Context) {
	index := c.MustGet(indexKey).(*Index)
	c.JSON(http.StatusOK, index.Stats())
}
