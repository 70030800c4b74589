package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	"OptRoll/internal/usecase"
	xhttp "OptRoll/pkg/http"
	xlogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	seriesReq  usecase.SeriesRequest
	chainReq   usecase.ChainRequest
	historyReq usecase.HistoryRequest
	series     models.Response[[]models.ATMOptionDataPoint]
	err        error
}

func (f *fakeRunner) Series(_ context.Context, req usecase.SeriesRequest) (models.Response[[]models.ATMOptionDataPoint], error) {
	f.seriesReq = req
	return f.series, f.err
}

func (f *fakeRunner) Chain(_ context.Context, req usecase.ChainRequest) (models.Response[[]models.OptionMarketData], error) {
	f.chainReq = req
	return models.Response[[]models.OptionMarketData]{Data: []models.OptionMarketData{}}, f.err
}

func (f *fakeRunner) History(_ context.Context, req usecase.HistoryRequest) (models.Response[[]models.HistoricalRecord], error) {
	f.historyReq = req
	return models.Response[[]models.HistoricalRecord]{Data: []models.HistoricalRecord{}}, f.err
}

type fakePublisher struct {
	msgType string
	payload interface{}
}

func (f *fakePublisher) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	f.msgType, f.payload = msgType, payload
	return "msg-1", nil
}

type memStatus struct {
	mu   sync.Mutex
	runs map[string]models.RunStatus
}

func (m *memStatus) SaveRun(_ context.Context, st models.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[st.RunID] = st
	return nil
}

func (m *memStatus) LoadRun(_ context.Context, id string) (models.RunStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.runs[id]
	if !ok {
		return models.RunStatus{}, drepo.ErrRunNotFound
	}
	return st, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(h *SeriesEchoHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e.Group(xhttp.APIPrefix))
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func samplePoint() models.ATMOptionDataPoint {
	exp := civil.Date{Year: 2024, Month: 11, Day: 15}
	return models.ATMOptionDataPoint{
		Date:             civil.Date{Year: 2024, Month: 11, Day: 1},
		UnderlyingTicker: "SPY",
		UnderlyingSettle: models.Float(571.04),
		OptionExpiry:     &exp,
	}
}

func TestSeriesReturnsEnvelope(t *testing.T) {
	runner := &fakeRunner{series: models.Response[[]models.ATMOptionDataPoint]{
		Data: []models.ATMOptionDataPoint{samplePoint()},
	}}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), runner, nil, nil, nil))

	rec, env := do(t, e, http.MethodGet,
		"/api/v1/atm-series?underlying=SPY&start=2024-11-01&end=2024-11-01&as_of=2024-10-15&strict=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Series-Errors"))

	var resp struct {
		Data   []json.RawMessage `json:"data"`
		Errors []any             `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Len(t, resp.Data, 1)

	assert.Equal(t, "SPY", runner.seriesReq.Underlying)
	assert.True(t, runner.seriesReq.Strict)
	require.NotNil(t, runner.seriesReq.AsOf)
	assert.Equal(t, civil.Date{Year: 2024, Month: 10, Day: 15}, *runner.seriesReq.AsOf)
}

func TestSeriesValidation(t *testing.T) {
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), &fakeRunner{}, nil, nil, nil))

	rec, env := do(t, e, http.MethodGet, "/api/v1/atm-series?start=2024-11-01&end=2024-11-02", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verrs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &verrs))
	require.Len(t, verrs, 1)
	assert.Equal(t, "underlying", verrs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", verrs[0].Code)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/atm-series?underlying=SPY&start=2024-13-01&end=2024-11-02", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/atm-series?underlying=SPY&start=2024-11-01&end=2024-11-02&format=xml", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeriesMapsInvalidRange(t *testing.T) {
	runner := &fakeRunner{err: usecase.ErrInvalidDateRange}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), runner, nil, nil, nil))

	rec, _ := do(t, e, http.MethodGet, "/api/v1/atm-series?underlying=SPY&start=2024-11-05&end=2024-11-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeriesCSV(t *testing.T) {
	runner := &fakeRunner{series: models.Response[[]models.ATMOptionDataPoint]{
		Data: []models.ATMOptionDataPoint{samplePoint()},
	}}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), runner, nil, nil, nil))

	rec, _ := do(t, e, http.MethodGet,
		"/api/v1/atm-series?underlying=SPY&start=2024-11-01&end=2024-11-01&format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "date,underlying_ticker,"))
	assert.True(t, strings.HasPrefix(lines[1], "2024-11-01,SPY,2024-11-15,"))
}

func TestSubmitJobQueuesRun(t *testing.T) {
	pub := &fakePublisher{}
	status := &memStatus{runs: map[string]models.RunStatus{}}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), &fakeRunner{}, pub, status, nil))

	rec, env := do(t, e, http.MethodPost, "/api/v1/atm-series/jobs",
		`{"underlying":"QQQ","start":"2024-01-02","end":"2024-03-28","strict":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted models.SeriesJobAccepted
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.NotEmpty(t, accepted.RunID)
	assert.Equal(t, models.RunQueued, accepted.State)
	assert.Equal(t, "/api/v1/atm-series/jobs/"+accepted.RunID, accepted.StatusURL)

	assert.Equal(t, usecase.SeriesJobType, pub.msgType)
	payload, ok := pub.payload.(usecase.SeriesJobPayload)
	require.True(t, ok)
	assert.Equal(t, accepted.RunID, payload.RunID)
	assert.Equal(t, "2024-01-02", payload.Start)
	assert.True(t, payload.Strict)

	rec, env = do(t, e, http.MethodGet, accepted.StatusURL, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.RunStatus
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "QQQ", st.Underlying)
	assert.Equal(t, models.RunQueued, st.State)
}

func TestSubmitJobRejectsReversedRange(t *testing.T) {
	status := &memStatus{runs: map[string]models.RunStatus{}}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), &fakeRunner{}, &fakePublisher{}, status, nil))

	rec, _ := do(t, e, http.MethodPost, "/api/v1/atm-series/jobs",
		`{"underlying":"QQQ","start":"2024-03-01","end":"2024-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, status.runs)
}

func TestOptionalRoutesUnavailable(t *testing.T) {
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), &fakeRunner{}, nil, nil, nil))

	rec, _ := do(t, e, http.MethodPost, "/api/v1/atm-series/jobs", `{"underlying":"QQQ"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/atm-series/stored?underlying=SPY&from=2024-01-01&to=2024-01-31", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestJobStatusNotFound(t *testing.T) {
	status := &memStatus{runs: map[string]models.RunStatus{}}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), &fakeRunner{}, &fakePublisher{}, status, nil))

	rec, _ := do(t, e, http.MethodGet, "/api/v1/atm-series/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChainBuildsFilter(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), runner, nil, nil, nil))

	rec, _ := do(t, e, http.MethodGet,
		"/api/v1/chain?underlying=SPY&as_of=2024-11-01&strike_min=550&strike_max=600&type=put", "")
	require.Equal(t, http.StatusOK, rec.Code)

	f := runner.chainReq.Filter
	require.NotNil(t, f.StrikeMin)
	assert.Equal(t, 550.0, *f.StrikeMin)
	assert.Equal(t, 600.0, *f.StrikeMax)
	assert.Equal(t, []models.OptionType{models.OptionTypePut}, f.OptionTypes)
	assert.Nil(t, runner.chainReq.Expiry)
	require.NotNil(t, runner.chainReq.AsOf)

	rec, _ = do(t, e, http.MethodGet, "/api/v1/chain?underlying=SPY&strike_min=600&strike_max=550", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryParsesTickersAndFields(t *testing.T) {
	runner := &fakeRunner{}
	e := newTestServer(NewSeriesEchoHandler(xlogger.NewNop(), runner, nil, nil, nil))

	rec, _ := do(t, e, http.MethodGet,
		"/api/v1/history?ticker=O:SPY241115C00570000&ticker=SPY&field=px_last&start=2024-10-01&end=2024-10-31&periodicity=weekly", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"O:SPY241115C00570000", "SPY"}, runner.historyReq.Tickers)
	assert.Equal(t, []models.FieldID{models.FieldLast}, runner.historyReq.Fields)
	assert.Equal(t, models.PeriodicityWeekly, runner.historyReq.Periodicity)
}
