package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/report"
	svcmetrics "OptRoll/internal/service/metrics"
	"OptRoll/internal/usecase"
	xhttp "OptRoll/pkg/http"
	xlogger "OptRoll/pkg/logger"
	"OptRoll/pkg/queue"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SeriesRunner is the serialized use case surface the handler drives.
type SeriesRunner interface {
	Series(ctx context.Context, req usecase.SeriesRequest) (models.Response[[]models.ATMOptionDataPoint], error)
	Chain(ctx context.Context, req usecase.ChainRequest) (models.Response[[]models.OptionMarketData], error)
	History(ctx context.Context, req usecase.HistoryRequest) (models.Response[[]models.HistoricalRecord], error)
}

// SeriesEchoHandler serves ATM series, chain and history endpoints. jobs,
// status and store are optional; their routes answer 503 when nil.
type SeriesEchoHandler struct {
	logger *xlogger.Logger
	runner SeriesRunner
	jobs   queue.Publisher
	status drepo.RunStatusStore
	store  drepo.SeriesStorage
}

var _ xhttp.Handler = (*SeriesEchoHandler)(nil)

func NewSeriesEchoHandler(
	logger *xlogger.Logger,
	runner SeriesRunner,
	jobs queue.Publisher,
	status drepo.RunStatusStore,
	store drepo.SeriesStorage,
) *SeriesEchoHandler {
	svcmetrics.Register()
	return &SeriesEchoHandler{logger: logger, runner: runner, jobs: jobs, status: status, store: store}
}

func (h *SeriesEchoHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/atm-series", h.Series)
	g.POST("/atm-series/jobs", h.SubmitJob)
	g.GET("/atm-series/jobs/:id", h.JobStatus)
	g.GET("/atm-series/stored", h.Stored)
	g.GET("/chain", h.Chain)
	g.GET("/history", h.History)
}

// Series runs the rolled ATM series synchronously.
func (h *SeriesEchoHandler) Series(c echo.Context) error {
	start := time.Now()
	req := &models.SeriesHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.observe("series", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	sreq, aerr := seriesRequest(req)
	if aerr != nil {
		h.observe("series", start, true)
		return xhttp.AppErrorResponse(c, aerr)
	}

	resp, err := h.runner.Series(c.Request().Context(), sreq)
	if err != nil {
		h.observe("series", start, true)
		return h.errorResponse(c, "series", err)
	}
	h.observe("series", start, !resp.Success())

	c.Response().Header().Set("X-Series-Errors", strconv.Itoa(len(resp.Errors)))
	if req.Format == "csv" {
		name := fmt.Sprintf("%s_%s_%s.csv", sreq.Underlying, sreq.Start, sreq.End)
		return writeCSV(c, name, report.Flatten(resp.Data))
	}
	return xhttp.SuccessResponse(c, resp)
}

// SubmitJob queues a series run and returns its run ID.
func (h *SeriesEchoHandler) SubmitJob(c echo.Context) error {
	start := time.Now()
	if h.jobs == nil || h.status == nil {
		h.observe("submit_job", start, true)
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("job queue is disabled"))
	}
	req := &models.SeriesHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.observe("submit_job", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	sreq, aerr := seriesRequest(req)
	if aerr != nil {
		h.observe("submit_job", start, true)
		return xhttp.AppErrorResponse(c, aerr)
	}
	if sreq.End.Before(sreq.Start) {
		h.observe("submit_job", start, true)
		return xhttp.AppErrorResponse(c, xhttp.FieldError("end", "end must not be before start"))
	}

	ctx := c.Request().Context()
	now := time.Now().UTC()
	st := models.RunStatus{
		RunID:      uuid.NewString(),
		Underlying: sreq.Underlying,
		State:      models.RunQueued,
		QueuedAt:   now,
		UpdatedAt:  now,
	}
	if err := h.status.SaveRun(ctx, st); err != nil {
		h.observe("submit_job", start, true)
		h.logger.Error("save queued run", xlogger.String("run_id", st.RunID), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not record run").WithError(err))
	}

	payload := usecase.SeriesJobPayload{
		RunID:      st.RunID,
		Underlying: sreq.Underlying,
		Start:      sreq.Start.String(),
		End:        sreq.End.String(),
		AsOf:       req.AsOf,
		Strict:     sreq.Strict,
	}
	if _, err := h.jobs.Enqueue(ctx, usecase.SeriesJobType, payload); err != nil {
		h.observe("submit_job", start, true)
		h.logger.Error("enqueue series run", xlogger.String("run_id", st.RunID), xlogger.Error(err))
		st.State, st.Message, st.UpdatedAt = models.RunFailed, err.Error(), time.Now().UTC()
		_ = h.status.SaveRun(ctx, st)
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("could not queue run").WithError(err))
	}

	h.observe("submit_job", start, false)
	h.logger.Info("series run queued", xlogger.String("run_id", st.RunID), xlogger.String("underlying", st.Underlying))
	return xhttp.AcceptedResponse(c, models.SeriesJobAccepted{
		RunID:     st.RunID,
		State:     st.State,
		StatusURL: xhttp.APIPrefix + "/atm-series/jobs/" + st.RunID,
	})
}

func (h *SeriesEchoHandler) JobStatus(c echo.Context) error {
	start := time.Now()
	if h.status == nil {
		h.observe("job_status", start, true)
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("job queue is disabled"))
	}
	id := strings.TrimSpace(c.Param("id"))
	st, err := h.status.LoadRun(c.Request().Context(), id)
	if err != nil {
		h.observe("job_status", start, true)
		return h.errorResponse(c, "job_status", err)
	}
	h.observe("job_status", start, false)
	return xhttp.SuccessResponse(c, st)
}

// Stored reads a previously delivered series back from storage.
func (h *SeriesEchoHandler) Stored(c echo.Context) error {
	start := time.Now()
	if h.store == nil {
		h.observe("stored", start, true)
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("series storage is not configured"))
	}
	req := &models.StoredSeriesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.observe("stored", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, aerr := parseRange("from", req.From, "to", req.To)
	if aerr == nil && to.Before(from) {
		aerr = xhttp.FieldError("to", "to must not be before from")
	}
	if aerr != nil {
		h.observe("stored", start, true)
		return xhttp.AppErrorResponse(c, aerr)
	}

	points, err := h.store.Query(c.Request().Context(), strings.TrimSpace(req.Underlying), from, to)
	if err != nil {
		h.observe("stored", start, true)
		return h.errorResponse(c, "stored", err)
	}
	h.observe("stored", start, false)
	if req.Format == "csv" {
		return writeCSV(c, fmt.Sprintf("%s_%s_%s.csv", req.Underlying, from, to), report.Flatten(points))
	}
	return xhttp.ListResponse(c, points, int64(len(points)))
}

// Chain returns one expiry of an option chain with market data.
func (h *SeriesEchoHandler) Chain(c echo.Context) error {
	start := time.Now()
	req := &models.ChainHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.observe("chain", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	creq, aerr := chainRequest(req)
	if aerr != nil {
		h.observe("chain", start, true)
		return xhttp.AppErrorResponse(c, aerr)
	}

	resp, err := h.runner.Chain(c.Request().Context(), creq)
	if err != nil {
		h.observe("chain", start, true)
		return h.errorResponse(c, "chain", err)
	}
	h.observe("chain", start, !resp.Success())
	return xhttp.SuccessResponse(c, resp)
}

func (h *SeriesEchoHandler) History(c echo.Context) error {
	start := time.Now()
	req := &models.HistoryHTTPRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.observe("history", start, true)
		return xhttp.BadRequestResponse(c, verr)
	}
	from, to, aerr := parseRange("start", req.Start, "end", req.End)
	if aerr != nil {
		h.observe("history", start, true)
		return xhttp.AppErrorResponse(c, aerr)
	}
	periodicity, _ := models.ParsePeriodicity(req.Periodicity)
	fields := make([]models.FieldID, 0, len(req.Fields))
	for _, f := range req.Fields {
		fields = append(fields, models.FieldID(strings.ToUpper(strings.TrimSpace(f))))
	}

	resp, err := h.runner.History(c.Request().Context(), usecase.HistoryRequest{
		Tickers:     req.Tickers,
		Fields:      fields,
		Start:       from,
		End:         to,
		Periodicity: periodicity,
	})
	if err != nil {
		h.observe("history", start, true)
		return h.errorResponse(c, "history", err)
	}
	h.observe("history", start, !resp.Success())
	return xhttp.SuccessResponse(c, resp)
}

func (h *SeriesEchoHandler) errorResponse(c echo.Context, endpoint string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidDateRange):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, usecase.ErrEmptyUnderlying):
		return xhttp.AppErrorResponse(c, xhttp.FieldError("underlying", err.Error()).WithError(err))
	case errors.Is(err, drepo.ErrRunNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("run %s not found", c.Param("id")).WithError(err))
	}
	h.logger.Error("request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, err)
}

func (h *SeriesEchoHandler) observe(endpoint string, start time.Time, failed bool) {
	svcmetrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if failed {
		svcmetrics.APIErrors.WithLabelValues(endpoint).Inc()
	}
}

func seriesRequest(req *models.SeriesHTTPRequest) (usecase.SeriesRequest, *xhttp.AppError) {
	start, end, aerr := parseRange("start", req.Start, "end", req.End)
	if aerr != nil {
		return usecase.SeriesRequest{}, aerr
	}
	asOf, aerr := xhttp.ParseOptionalDateParam("as_of", req.AsOf)
	if aerr != nil {
		return usecase.SeriesRequest{}, aerr
	}
	return usecase.SeriesRequest{
		Underlying: strings.TrimSpace(req.Underlying),
		Start:      start,
		End:        end,
		AsOf:       asOf,
		Strict:     req.Strict,
	}, nil
}

func chainRequest(req *models.ChainHTTPRequest) (usecase.ChainRequest, *xhttp.AppError) {
	out := usecase.ChainRequest{Underlying: strings.TrimSpace(req.Underlying)}
	for _, p := range []struct {
		field, value string
		dst          **civil.Date
	}{
		{"expiry", req.Expiry, &out.Expiry},
		{"as_of", req.AsOf, &out.AsOf},
		{"expiry_start", req.ExpiryStart, &out.Filter.ExpiryStart},
		{"expiry_end", req.ExpiryEnd, &out.Filter.ExpiryEnd},
	} {
		d, aerr := xhttp.ParseOptionalDateParam(p.field, p.value)
		if aerr != nil {
			return usecase.ChainRequest{}, aerr
		}
		*p.dst = d
	}
	if req.StrikeMin > 0 {
		out.Filter.StrikeMin = models.Float(req.StrikeMin)
	}
	if req.StrikeMax > 0 {
		out.Filter.StrikeMax = models.Float(req.StrikeMax)
	}
	if out.Filter.StrikeMin != nil && out.Filter.StrikeMax != nil && req.StrikeMax < req.StrikeMin {
		return usecase.ChainRequest{}, xhttp.FieldError("strike_max", "strike_max must not be below strike_min")
	}
	switch req.Type {
	case "call":
		out.Filter.OptionTypes = []models.OptionType{models.OptionTypeCall}
	case "put":
		out.Filter.OptionTypes = []models.OptionType{models.OptionTypePut}
	}
	return out, nil
}

func parseRange(startField, start, endField, end string) (civil.Date, civil.Date, *xhttp.AppError) {
	from, aerr := xhttp.ParseDateParam(startField, start)
	if aerr != nil {
		return civil.Date{}, civil.Date{}, aerr
	}
	to, aerr := xhttp.ParseDateParam(endField, end)
	if aerr != nil {
		return civil.Date{}, civil.Date{}, aerr
	}
	return from, to, nil
}

func writeCSV(c echo.Context, filename string, rows []report.Row) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return report.WriteCSV(res, rows)
}
