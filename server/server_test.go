package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnstarich/uiwatch/artifacts"
	"github.com/johnstarich/uiwatch/consts"
	"github.com/johnstarich/uiwatch/notify"
	"github.com/johnstarich/uiwatch/pipeline"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*gin.Engine, *Index, *artifacts.Store) {
	t.Helper()
	tmpDir := t.TempDir()
	index := NewIndex(time.Hour)
	store := artifacts.NewStore(tmpDir)
	return New(index, store, zaptest.NewLogger(t)), index, store
}

func get(t *testing.T, handler http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, target, nil))
	return resp
}

func failedReport(t *testing.T, store *artifacts.Store, name string) pipeline.Report {
	t.Helper()
	path, err := store.Save(artifacts.Screenshot, name, []byte("png"))
	require.NoError(t, err)
	return pipeline.Report{
		Test:           pipeline.Test{Class: "LoginTest", Name: name, Severity: "CRITICAL"},
		Outcome:        pipeline.Failed,
		Env:            "prod",
		Severity:       "CRITICAL",
		Steps:          []string{"Go to login page"},
		ScreenshotPath: pipeline.Maybe[string]{Value: path},
		Recording:      pipeline.Maybe[string]{Reason: errors.New("Recorder did not stop in time")},
		Subject:        "[Automation Failure][CRITICAL] " + name + " is not working on production",
		Delivery:       notify.Result{Status: notify.Skipped, Reason: errors.New("Not a production environment")},
	}
}

func TestVersion(t *testing.T) {
	handler, _, _ := testServer(t)
	resp := get(t, handler, "/api/v1/version")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"Version": "`+consts.Version+`"}`, resp.Body.String())
}

func TestFailures(t *testing.T) {
	handler, index, store := testServer(t)
	base := time.Now()
	index.now = func() time.Time { return base }
	index.Publish(failedReport(t, store, "LoginTest.first"))
	index.now = func() time.Time { return base.Add(time.Second) }
	index.Publish(failedReport(t, store, "LoginTest.second"))
	index.Publish(pipeline.Report{Outcome: pipeline.Passed})

	resp := get(t, handler, "/api/v1/failures")
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Failures []struct {
			ID             string
			Delivery       string
			DeliveryReason string `json:"delivery_reason"`
			ScreenshotURL  string `json:"screenshot_url"`
			RecordingURL   string `json:"recording_url"`
			Report         struct {
				Test struct {
					Name string
				}
				Steps     []string
				Recording struct {
					Reason string
				}
			}
		}
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Failures, 2, "passing tests are not listed")
	newest := body.Failures[0]
	assert.Equal(t, "LoginTest.second", newest.Report.Test.Name)
	assert.Equal(t, "LoginTest.first", body.Failures[1].Report.Test.Name)
	assert.Equal(t, []string{"Go to login page"}, newest.Report.Steps)
	assert.Equal(t, "Recorder did not stop in time", newest.Report.Recording.Reason)
	assert.Equal(t, "skipped", newest.Delivery)
	assert.Equal(t, "Not a production environment", newest.DeliveryReason)
	assert.Empty(t, newest.RecordingURL)
	require.NotEmpty(t, newest.ScreenshotURL)

	screenshot := get(t, handler, newest.ScreenshotURL)
	assert.Equal(t, http.StatusOK, screenshot.Code)
	assert.Equal(t, "png", screenshot.Body.String())

	one := get(t, handler, "/api/v1/failures/"+newest.ID)
	assert.Equal(t, http.StatusOK, one.Code)
	assert.Contains(t, one.Body.String(), "LoginTest.second")

	stats := get(t, handler, "/api/v1/stats")
	assert.JSONEq(t, `{"passed": 1, "failed": 2}`, stats.Body.String())
}

func TestFailureNotFound(t *testing.T) {
	handler, _, _ := testServer(t)
	resp := get(t, handler, "/api/v1/failures/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"Error": "Failure not found or expired"}`, resp.Body.String())
}

func TestFailureExpires(t *testing.T) {
	index := NewIndex(10 * time.Millisecond)
	index.Publish(pipeline.Report{Outcome: pipeline.Failed})
	require.Len(t, index.List(), 1)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, index.List())
}

func TestArtifacts(t *testing.T) {
	handler, _, store := testServer(t)
	_, err := store.Save(artifacts.Recording, "login", []byte("video"))
	require.NoError(t, err)

	resp := get(t, handler, "/api/v1/artifacts/recordings")
	require.Equal(t, http.StatusOK, resp.Code)
	var body struct {
		Artifacts []string
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Artifacts, 1)

	file := get(t, handler, "/api/v1/artifacts/recordings/"+body.Artifacts[0])
	assert.Equal(t, http.StatusOK, file.Code)
	assert.Equal(t, "video", file.Body.String())

	empty := get(t, handler, "/api/v1/artifacts/screenshots")
	assert.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `{"Artifacts": []}`, empty.Body.String())
}

func TestArtifactErrors(t *testing.T) {
	handler, _, _ := testServer(t)
	for _, tc := range []struct {
		description  string
		target       string
		expectStatus int
	}{
		{description: "unknown kind", target: "/api/v1/artifacts/logs", expectStatus: http.StatusNotFound},
		{description: "unknown kind file", target: "/api/v1/artifacts/logs/a.txt", expectStatus: http.StatusNotFound},
		{description: "missing file", target: "/api/v1/artifacts/screenshots/missing.png", expectStatus: http.StatusNotFound},
		{description: "parent directory", target: "/api/v1/artifacts/screenshots/%2e%2e", expectStatus: http.StatusBadRequest},
	} {
		t.Run(tc.description, func(t *testing.T) {
			resp := get(t, handler, tc.target)
			assert.Equal(t, tc.expectStatus, resp.Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	handler, _, _ := testServer(t)
	handler.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	var resp *httptest.ResponseRecorder
	assert.NotPanics(t, func() {
		resp = get(t, handler, "/panic")
	})
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
