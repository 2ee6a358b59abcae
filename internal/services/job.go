package services

import (
	"fmt"
	"time"

	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

// JobState is the stage an extraction job has reached.
type JobState string

const (
	StateReceived       JobState = "received"
	StateTextExtracted  JobState = "text_extracted"
	StatePromptBuilt    JobState = "prompt_built"
	StateModelInvoked   JobState = "model_invoked"
	StateResponseParsed JobState = "response_parsed"
	StateSucceeded      JobState = "succeeded" // terminal
	StateFailed         JobState = "failed"    // terminal
)

var nextState = map[JobState]JobState{
	StateReceived:       StateTextExtracted,
	StateTextExtracted:  StatePromptBuilt,
	StatePromptBuilt:    StateModelInvoked,
	StateModelInvoked:   StateResponseParsed,
	StateResponseParsed: StateSucceeded,
}

func (s JobState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Job is one end-to-end attempt to turn an artifact into a record. It is
// owned by a single goroutine.
type Job struct {
	ID          string
	Source      string
	State       JobState
	FailureKind utils.ErrorKind
	StartedAt   time.Time

	history []JobState
	logger  *utils.Logger
}

func newJob(source string, logger *utils.Logger) *Job {
	id := utils.GenerateID()
	j := &Job{
		ID:        id,
		Source:    source,
		State:     StateReceived,
		StartedAt: time.Now(),
		history:   []JobState{StateReceived},
		logger:    logger.With("job_id", id, "source", source),
	}
	j.logger.Info("extraction." + string(StateReceived))
	return j
}

// advance moves the job one stage forward.
func (j *Job) advance(to JobState, args ...any) error {
	if j.State.Terminal() || nextState[j.State] != to {
		return utils.NewInternalError(fmt.Sprintf("invalid job transition %s -> %s", j.State, to))
	}
	j.State = to
	j.history = append(j.history, to)
	j.logger.Info("extraction."+string(to), args...)
	return nil
}

// fail records err as the terminal outcome and returns it.
func (j *Job) fail(err error) error {
	if j.State.Terminal() {
		return err
	}
	j.State = StateFailed
	j.FailureKind = utils.KindOf(err)
	j.history = append(j.history, StateFailed)
	j.logger.Warn("extraction."+string(StateFailed),
		"kind", string(j.FailureKind),
		"error", err,
		"duration_ms", time.Since(j.StartedAt).Milliseconds(),
	)
	return err
}

// History returns every state the job has passed through.
func (j *Job) History() []JobState {
	out := make([]JobState, len(j.history))
	copy(out, j.history)
	return out
}
