package usecase

import (
	"context"
	"fmt"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"
	"OptRoll/pkg/queue"
	"OptRoll/pkg/util"
)

const SeriesJobType = "atm_series.run"

type SeriesJobPayload struct {
	RunID      string `json:"run_id"`
	Underlying string `json:"underlying"`
	Start      string `json:"start"`
	End        string `json:"end"`
	AsOf       string `json:"as_of,omitempty"`
	Strict     bool   `json:"strict,omitempty"`
}

// Request validates the payload dates.
func (p SeriesJobPayload) Request() (SeriesRequest, error) {
	start, ok := util.ParseDate(p.Start)
	if !ok {
		return SeriesRequest{}, fmt.Errorf("invalid start date %q", p.Start)
	}
	end, ok := util.ParseDate(p.End)
	if !ok {
		return SeriesRequest{}, fmt.Errorf("invalid end date %q", p.End)
	}
	asOf, ok := util.ParseOptionalDate(p.AsOf)
	if !ok {
		return SeriesRequest{}, fmt.Errorf("invalid as_of date %q", p.AsOf)
	}
	return SeriesRequest{Underlying: p.Underlying, Start: start, End: end, AsOf: asOf, Strict: p.Strict}, nil
}

// SeriesJob runs a queued series and hands the result to the processor.
type SeriesJob struct {
	runner    *SerialRunner
	processor *SeriesProcessor
	status    drepo.RunStatusStore
	logger    *xlogger.Logger
}

var _ queue.Job = (*SeriesJob)(nil)

func NewSeriesJob(runner *SerialRunner, processor *SeriesProcessor, status drepo.RunStatusStore, logger *xlogger.Logger) *SeriesJob {
	return &SeriesJob{runner: runner, processor: processor, status: status, logger: logger}
}

func (j *SeriesJob) Name() string { return "atm-series" }
func (j *SeriesJob) Type() string { return SeriesJobType }

func (j *SeriesJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[SeriesJobPayload](payload)
	if err != nil {
		return err
	}
	st := models.RunStatus{RunID: p.RunID, Underlying: p.Underlying, State: models.RunRunning}
	if prev, err := j.status.LoadRun(ctx, p.RunID); err == nil {
		st.QueuedAt = prev.QueuedAt
	}
	j.save(ctx, st)

	req, err := p.Request()
	if err != nil {
		j.fail(ctx, st, err)
		return err
	}
	resp, err := j.runner.Series(ctx, req)
	if err != nil {
		j.fail(ctx, st, err)
		return err
	}

	st.Points = len(resp.Data)
	st.Errors = len(resp.Errors)
	st.ErrorKinds = make(map[models.ErrorKind]int)
	for _, e := range resp.Errors {
		st.ErrorKinds[e.Kind]++
	}

	if err := j.processor.Process(ctx, req.Underlying, resp.Data); err != nil {
		j.fail(ctx, st, err)
		return fmt.Errorf("deliver series %s: %w", p.RunID, err)
	}

	st.State = models.RunDone
	j.save(ctx, st)
	j.logger.Info("queued series finished",
		xlogger.String("run_id", p.RunID),
		xlogger.String("underlying", req.Underlying),
		xlogger.Int("points", st.Points),
		xlogger.Int("errors", st.Errors),
		xlogger.String("sink", j.processor.Backend()),
	)
	return nil
}

func (j *SeriesJob) fail(ctx context.Context, st models.RunStatus, err error) {
	st.State = models.RunFailed
	st.Message = err.Error()
	j.save(ctx, st)
}

func (j *SeriesJob) save(ctx context.Context, st models.RunStatus) {
	st.UpdatedAt = time.Now().UTC()
	if err := j.status.SaveRun(ctx, st); err != nil {
		j.logger.Warn("save run status", xlogger.String("run_id", st.RunID), xlogger.Error(err))
	}
}
