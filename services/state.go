package services

import (
	"fmt"

	"github.com/avinash9807/Url-uploader-with-online-player/models"
)

// The stored job status only distinguishes queued/processing/ready/errored,
// but a processing pass moves through finer-grained states: provisioning the
// remote asset, granting it a playback ID, and polling for readiness. The
// transition table lives here, on its own, so the edges can be tested
// without a database or a provider.
//
// Legal edges:
//
//	provisioning      -- assetCreated -->      awaitingPlayback
//	provisioning      -- createFailed -->      errored
//	awaitingPlayback  -- playbackCreated -->   polling
//	awaitingPlayback  -- playbackFailed -->    polling   (non-fatal)
//	polling           -- pollReady -->         ready
//	polling           -- pollErrored -->       errored
//	polling           -- pollPending -->       polling
//	polling           -- pollUnavailable -->   polling   (transient, retry)
//	polling           -- budgetExhausted -->   suspended (job stays "processing")
//	any non-terminal  -- stepPanicked -->      errored
//
// ready, errored and suspended have no outgoing edges within a pass.
type ingestState int

const (
	stateProvisioning ingestState = iota
	stateAwaitingPlayback
	statePolling
	stateReady
	stateErrored
	// stateSuspended means the pass gave up within its polling budget; the
	// job is left in the processing status for a future pass to resume.
	stateSuspended
)

func (s ingestState) String() string {
	switch s {
	case stateProvisioning:
		return "provisioning"
	case stateAwaitingPlayback:
		return "awaiting_playback"
	case statePolling:
		return "polling"
	case stateReady:
		return "ready"
	case stateErrored:
		return "errored"
	case stateSuspended:
		return "suspended"
	}
	return fmt.Sprintf("ingestState(%d)", int(s))
}

// external returns the status persisted for a job in this state.
func (s ingestState) external() models.JobStatus {
	switch s {
	case stateReady:
		return models.StatusReady
	case stateErrored:
		return models.StatusErrored
	default:
		return models.StatusProcessing
	}
}

// terminal reports whether the pass is finished with this job.
func (s ingestState) terminal() bool {
	return s == stateReady || s == stateErrored || s == stateSuspended
}

type ingestEvent int

const (
	evAssetCreated ingestEvent = iota
	evCreateFailed
	evPlaybackCreated
	evPlaybackFailed
	evPollReady
	evPollErrored
	evPollPending
	evPollUnavailable
	evBudgetExhausted
	evStepPanicked
)

func (e ingestEvent) String() string {
	switch e {
	case evAssetCreated:
		return "assetCreated"
	case evCreateFailed:
		return "createFailed"
	case evPlaybackCreated:
		return "playbackCreated"
	case evPlaybackFailed:
		return "playbackFailed"
	case evPollReady:
		return "pollReady"
	case evPollErrored:
		return "pollErrored"
	case evPollPending:
		return "pollPending"
	case evPollUnavailable:
		return "pollUnavailable"
	case evBudgetExhausted:
		return "budgetExhausted"
	case evStepPanicked:
		return "stepPanicked"
	}
	return fmt.Sprintf("ingestEvent(%d)", int(e))
}

// nextIngestState computes the state that follows s when ev occurs. An error
// means the edge is not in the table; callers treat that as a bug.
func nextIngestState(s ingestState, ev ingestEvent) (ingestState, error) {
	if ev == evStepPanicked && !s.terminal() {
		return stateErrored, nil
	}
	switch s {
	case stateProvisioning:
		switch ev {
		case evAssetCreated:
			return stateAwaitingPlayback, nil
		case evCreateFailed:
			return stateErrored, nil
		}
	case stateAwaitingPlayback:
		switch ev {
		case evPlaybackCreated, evPlaybackFailed:
			return statePolling, nil
		}
	case statePolling:
		switch ev {
		case evPollReady:
			return stateReady, nil
		case evPollErrored:
			return stateErrored, nil
		case evPollPending, evPollUnavailable:
			return statePolling, nil
		case evBudgetExhausted:
			return stateSuspended, nil
		}
	}
	return s, fmt.Errorf("services: no transition from %s on %s", s, ev)
}
