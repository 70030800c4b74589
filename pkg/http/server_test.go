package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	xlogger "OptRoll/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rangeRequest struct {
	Underlying string `query:"underlying" validate:"required"`
	Start      string `query:"start" validate:"required,isodate"`
	Format     string `query:"format" default:"json" validate:"oneof=json csv"`
}

type rangeHandler struct{}

func (rangeHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/range", func(c echo.Context) error {
		req := &rangeRequest{}
		if verr := ReadAndValidateRequest(c, req); verr != nil {
			return BadRequestResponse(c, verr)
		}
		return SuccessResponse(c, req)
	})
	g.GET("/boom", func(c echo.Context) error { panic("boom") })
	g.GET("/missing", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("run %s not found", "r-1"))
	})
}

func serve(s *Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestValidationAndDefaults(t *testing.T) {
	s := NewServer(xlogger.NewNop(), []Handler{rangeHandler{}})

	rec := serve(s, APIPrefix+"/range?underlying=SPY&start=2024-11-01")
	require.Equal(t, http.StatusOK, rec.Code)
	var ok struct {
		Data rangeRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ok))
	assert.Equal(t, "json", ok.Data.Format)

	rec = serve(s, APIPrefix+"/range?underlying=SPY&start=11-2024")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var bad struct {
		Data []ValidationError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	require.Len(t, bad.Data, 1)
	assert.Equal(t, "start", bad.Data[0].Field)
	assert.Equal(t, "ERR_ISODATE", bad.Data[0].Code)
}

func TestAppErrorAndPanic(t *testing.T) {
	s := NewServer(xlogger.NewNop(), []Handler{rangeHandler{}})

	assert.Equal(t, http.StatusNotFound, serve(s, APIPrefix+"/missing").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, APIPrefix+"/boom").Code)
}

func TestHealthChecks(t *testing.T) {
	s := NewServer(xlogger.NewNop(), nil)
	s.AddHealthCheck("redis", func(context.Context) error { return nil })
	assert.Equal(t, http.StatusOK, serve(s, "/health").Code)

	s.AddHealthCheck("clickhouse", func(context.Context) error { return errors.New("down") })
	rec := serve(s, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"clickhouse":"down"`)

	assert.Equal(t, http.StatusOK, serve(s, "/metrics").Code)
}
