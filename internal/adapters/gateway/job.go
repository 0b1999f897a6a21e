package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gaitlab/paddock/internal/domain/model"
	"github.com/gaitlab/paddock/internal/domain/types"
	"github.com/gaitlab/paddock/pkg/logger"
	"github.com/gaitlab/paddock/pkg/metrics"
)

// maxPollInterval caps the exponential poll spacing.
const maxPollInterval = 30 * time.Second

// submitReply is the envelope an async submission answers with.
type submitReply struct {
	JobID string `json:"job_id"`
	ID    string `json:"id"`
}

// pollReply is the envelope a job status endpoint answers with. Result is
// left raw for the caller to decode.
type pollReply struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

// SubmitAndPoll submits a job and polls its status endpoint until it
// reaches a terminal state or the total budget runs out. The whole
// submit+poll sequence holds one permit and lives under one total budget.
// On success the returned body is the job's result payload.
func (c *Client) SubmitAndPoll(ctx context.Context, submitURL string, payload any, statusURL func(jobID string) string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.totalTimeout)
	defer cancel()

	if c.pool != nil {
		if err := c.pool.Acquire(ctx); err != nil {
			metrics.RecordGatewayCall(c.service, string(OutcomeUnavailable), 0)
			return Unavailable(ErrNoPermit.Error())
		}
		defer c.pool.Release()
	}

	res := c.attemptLoop(ctx, jsonRequest(http.MethodPost, submitURL, payload))
	if !res.IsOK() {
		return res
	}

	var submitted submitReply
	if err := json.Unmarshal(res.Body, &submitted); err != nil {
		return InvalidResponse("submit reply: " + err.Error())
	}
	jobID := submitted.JobID
	if jobID == "" {
		jobID = submitted.ID
	}
	if jobID == "" {
		return InvalidResponse("submit reply missing job id")
	}

	job := model.AIJob{
		ID:          jobID,
		SubmittedAt: time.Now(),
		State:       types.JobPending,
	}
	return c.poll(ctx, &job, statusURL(jobID))
}

// poll drives the job state machine. Individual poll failures do not abort
// the job; only the total budget does. Each poll attempt is bounded by the
// read timeout, and the spacing doubles up to maxPollInterval.
func (c *Client) poll(ctx context.Context, job *model.AIJob, url string) Result {
	interval := c.pollInterval
	for {
		if err := sleep(ctx, interval); err != nil {
			job.State = types.JobTimedOut
			c.logJob(ctx, job, "job timed out")
			return Unavailable("job " + job.ID + " timed out")
		}
		if interval < maxPollInterval {
			interval *= 2
			if interval > maxPollInterval {
				interval = maxPollInterval
			}
		}

		job.PollCount++
		metrics.RecordGatewayJobPoll(c.service)

		res := c.attempt(ctx, func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		})
		switch res.Outcome {
		case OutcomeInvalidResponse:
			job.State = types.JobFailed
			c.logJob(ctx, job, "job status rejected")
			return res
		case OutcomeUnavailable:
			// Transient; keep polling while budget remains.
			continue
		}

		var reply pollReply
		if err := json.Unmarshal(res.Body, &reply); err != nil {
			job.State = types.JobFailed
			return InvalidResponse("job status reply: " + err.Error())
		}

		switch jobStateFromStatus(reply.Status) {
		case types.JobSucceeded:
			job.State = types.JobSucceeded
			c.logJob(ctx, job, "job succeeded")
			return OK(reply.Result)
		case types.JobFailed:
			job.State = types.JobFailed
			c.logJob(ctx, job, "job failed")
			return Unavailable("job " + job.ID + " failed: " + reply.Error)
		case types.JobRunning:
			job.State = types.JobRunning
		default:
			// Still pending; no transition.
		}
	}
}

// jobStateFromStatus maps the wire status strings onto the job lifecycle.
func jobStateFromStatus(status string) types.JobState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "done", "succeeded", "success", "completed", "finished":
		return types.JobSucceeded
	case "failed", "error", "cancelled", "canceled":
		return types.JobFailed
	case "running", "processing", "in_progress", "started":
		return types.JobRunning
	default:
		return types.JobPending
	}
}

func (c *Client) logJob(ctx context.Context, job *model.AIJob, msg string) {
	c.log.Info(ctx, msg,
		logger.String("job_id", job.ID),
		logger.String("state", string(job.State)),
		logger.Int("polls", job.PollCount),
		logger.Duration("age", time.Since(job.SubmittedAt)),
	)
}
