package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Shyp/go-types"
)

type JobStatus string

// StatusQueued indicates an IngestJob is waiting to be picked up by a
// processing pass.
const StatusQueued = JobStatus("queued")

// StatusProcessing indicates a processing pass has claimed the job and is
// provisioning the remote asset or polling for it to become ready.
const StatusProcessing = JobStatus("processing")

// StatusReady indicates the remote asset finished preparing. Terminal.
const StatusReady = JobStatus("ready")

// StatusErrored indicates the job failed permanently. Terminal. Errored jobs
// are never retried; submit a new job instead.
const StatusErrored = JobStatus("errored")

// Terminal reports whether a job with this status can never change again.
func (j JobStatus) Terminal() bool {
	return j == StatusReady || j == StatusErrored
}

// Scan implements the Scanner interface.
func (j *JobStatus) Scan(src interface{}) error {
	if src == nil {
		return nil
	} else if txt, ok := src.(string); ok {
		*j = JobStatus(txt)
		return nil
	} else if txt, ok := src.([]byte); ok {
		*j = JobStatus(string(txt))
		return nil
	}
	return fmt.Errorf("Unsupported JobStatus: %#v", src)
}

func (j JobStatus) Value() (driver.Value, error) {
	return string(j), nil
}

// An IngestJob is a request to create a remote video asset from a URL.
//
// The job is created with status "queued". A processing pass claims it
// ("processing"), provisions the asset and a public playback ID with the
// video provider, then polls until the provider reports the asset ready or
// errored. Every transition is persisted, so a crash or restart picks up
// where the last pass left off.
type IngestJob struct {
	ID        types.PrefixUUID `json:"id"`
	SourceURL string           `json:"source_url"`
	Title     types.NullString `json:"title"`
	Status    JobStatus        `json:"status"`

	// AssetID is the provider's id for the created asset. Set at most once.
	AssetID types.NullString `json:"asset_id"`

	// PlaybackID enables public streaming of the asset. The first value wins
	// and is never overwritten.
	PlaybackID types.NullString `json:"playback_id"`

	// LastError holds a human-readable diagnostic for the most recent
	// failure or timeout annotation.
	LastError types.NullString `json:"last_error"`

	// ProviderResponse is the most recent raw provider body, kept for
	// debugging. Control decisions never read it.
	ProviderResponse json.RawMessage `json:"provider_response"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
