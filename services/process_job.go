// Mediation layer between the HTTP front door and the database queries.
//
// The AssetProcessor drives one ingest job at a time through provisioning
// and polling, persisting the job after every transition so an observer
// reading the store mid-flight sees monotonically advancing state.
package services

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/mux"
)

// DefaultPollInterval is how long to wait between asset status checks.
var DefaultPollInterval = 4 * time.Second

// DefaultPollBudget is the most time a single processing pass will spend
// polling for one asset. When the budget runs out the job is left in the
// processing state for a future pass to resume.
var DefaultPollBudget = 300 * time.Second

// AssetProcessor drives ingest jobs through the video provider.
// AssetProcessors may be shared and are safe for concurrent use.
type AssetProcessor struct {
	// Client for the video provider's API.
	Client *mux.Client

	// Time between status polls, and the total polling budget for one
	// processing pass.
	PollInterval time.Duration
	PollBudget   time.Duration

	// Sleep is called to wait between polls. Tests inject a no-op to avoid
	// real delays. If nil, time.Sleep is used.
	Sleep func(time.Duration)
}

// NewAssetProcessor creates an AssetProcessor with the default polling
// configuration.
func NewAssetProcessor(client *mux.Client) *AssetProcessor {
	return &AssetProcessor{
		Client:       client,
		PollInterval: DefaultPollInterval,
		PollBudget:   DefaultPollBudget,
	}
}

func (p *AssetProcessor) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}

// Process runs one processing pass over the job with the given id. Queued
// jobs are claimed first; jobs already in a terminal state are returned
// unchanged with no remote calls made. All provider failures are captured
// and persisted as job state; Process returns an error only when the job
// does not exist or the store itself fails.
func (p *AssetProcessor) Process(id types.PrefixUUID) (job *models.IngestJob, err error) {
	job, err = ingest_jobs.Get(id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		// Re-processing a finished job is a no-op.
		return job, nil
	}
	if job.Status == models.StatusQueued {
		claimed, cerr := ingest_jobs.Claim(id)
		if cerr == sql.ErrNoRows {
			// Another dispatcher owns this job now.
			go metrics.Increment("process.claim.lost")
			return job, nil
		} else if cerr != nil {
			return nil, cerr
		}
		job = claimed
	}

	// Failure boundary: a panic anywhere below marks the job errored
	// rather than leaving it half-processed with no diagnostic.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic processing job %s: %v", id.String(), r)
			go metrics.Increment("process.panic")
			if failed, ferr := ingest_jobs.MarkErrored(id, fmt.Sprintf("internal error: %v", r)); ferr == nil {
				job, err = failed, nil
			}
		}
	}()

	st := stateProvisioning
	if job.AssetID.Valid {
		// A previous pass already provisioned the asset; resume.
		st = stateAwaitingPlayback
	}

	if st == stateProvisioning {
		job, st, err = p.provision(job)
		if err != nil || st.terminal() {
			return job, err
		}
	}
	if st == stateAwaitingPlayback {
		job, st = p.ensurePlayback(job)
	}
	return p.poll(job, st)
}

// provision creates the remote asset and persists its id. Any provider
// failure here is terminal for the job.
func (p *AssetProcessor) provision(job *models.IngestJob) (*models.IngestJob, ingestState, error) {
	log.Printf("processing job %s: creating asset for %s", job.ID.String(), job.SourceURL)
	start := time.Now()
	asset, cerr := p.Client.Assets.Create(job.SourceURL, job.Title.String)
	go metrics.Time("create_asset.latency", time.Since(start))
	if cerr != nil {
		go metrics.Increment("create_asset.error")
		st := mustAdvance(stateProvisioning, evCreateFailed)
		job, err := ingest_jobs.MarkErrored(job.ID, cerr.Error())
		return job, st, err
	}
	go metrics.Increment("create_asset.success")
	st := mustAdvance(stateProvisioning, evAssetCreated)
	job, err := ingest_jobs.SetAsset(job.ID, asset.ID, asset.RawResponse)
	if err == sql.ErrNoRows {
		// The asset id was already recorded, or another pass finished the
		// job. First write wins; reload and carry on.
		job, err = ingest_jobs.Get(job.ID)
	}
	if err != nil {
		return job, st, err
	}
	if len(asset.PlaybackIDs) > 0 && !job.PlaybackID.Valid {
		job = p.recordPlayback(job, asset.PlaybackIDs[0])
	}
	return job, st, nil
}

// ensurePlayback grants the asset a public playback ID if it does not have
// one yet. Failure here is logged and non-fatal; the asset can still become
// ready and expose a playback ID via polling.
func (p *AssetProcessor) ensurePlayback(job *models.IngestJob) (*models.IngestJob, ingestState) {
	if job.PlaybackID.Valid {
		return job, mustAdvance(stateAwaitingPlayback, evPlaybackCreated)
	}
	playbackID, err := p.Client.Assets.CreatePlaybackID(job.AssetID.String)
	if err != nil {
		log.Printf("job %s: could not create playback id for asset %s: %s",
			job.ID.String(), job.AssetID.String, err)
		go metrics.Increment("create_playback.error")
		return job, mustAdvance(stateAwaitingPlayback, evPlaybackFailed)
	}
	go metrics.Increment("create_playback.success")
	return p.recordPlayback(job, playbackID), mustAdvance(stateAwaitingPlayback, evPlaybackCreated)
}

// poll checks the asset status until the provider reports a terminal state
// or the polling budget is exhausted.
func (p *AssetProcessor) poll(job *models.IngestJob, st ingestState) (*models.IngestJob, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	budget := p.PollBudget
	if budget <= 0 {
		budget = DefaultPollBudget
	}
	maxPolls := int(budget / interval)
	start := time.Now()

	for i := 0; i < maxPolls && st == statePolling; i++ {
		asset, err := p.Client.Assets.Get(job.AssetID.String)
		if err != nil {
			switch err.(type) {
			case *mux.UnavailableError:
				// Transient; does not terminate the job.
				go metrics.Increment("poll.unavailable")
				st = mustAdvance(st, evPollUnavailable)
				p.sleep(interval)
				continue
			default:
				go metrics.Increment("poll.rejected")
				st = mustAdvance(st, evPollErrored)
				return ingest_jobs.MarkErrored(job.ID, err.Error())
			}
		}
		switch asset.Status {
		case mux.StatusReady:
			st = mustAdvance(st, evPollReady)
			if !job.PlaybackID.Valid && len(asset.PlaybackIDs) > 0 {
				job = p.recordPlayback(job, asset.PlaybackIDs[0])
			}
			go metrics.Increment("poll.ready")
			go metrics.Time("process.latency", time.Since(start))
			log.Printf("job %s: asset %s ready after %v", job.ID.String(), job.AssetID.String, time.Since(start))
			return ingest_jobs.MarkReady(job.ID, asset.RawResponse)
		case mux.StatusErrored:
			st = mustAdvance(st, evPollErrored)
			detail := asset.ErrorDetail
			if detail == "" {
				detail = "provider reported the asset errored"
			}
			go metrics.Increment("poll.errored")
			log.Printf("job %s: asset %s errored: %s", job.ID.String(), job.AssetID.String, detail)
			return ingest_jobs.MarkErrored(job.ID, detail)
		default:
			st = mustAdvance(st, evPollPending)
			p.sleep(interval)
		}
	}

	// Budget exhausted with the asset still pending. Annotate and leave the
	// job in the processing state; a future dispatch cycle resumes polling.
	mustAdvance(statePolling, evBudgetExhausted)
	go metrics.Increment("poll.timeout")
	note := fmt.Sprintf("still waiting on asset %s after %v; will resume on a later pass",
		job.AssetID.String, time.Since(start).Round(time.Second))
	log.Printf("job %s: %s", job.ID.String(), note)
	annotated, err := ingest_jobs.RecordError(job.ID, note)
	if err == sql.ErrNoRows {
		// The job left the processing state underneath us; report what's
		// stored now.
		return ingest_jobs.Get(job.ID)
	}
	return annotated, err
}

// recordPlayback persists the playback ID, tolerating a racing write. The
// stored value always wins.
func (p *AssetProcessor) recordPlayback(job *models.IngestJob, playbackID string) *models.IngestJob {
	updated, err := ingest_jobs.SetPlaybackID(job.ID, playbackID)
	if err == sql.ErrNoRows {
		if current, gerr := ingest_jobs.Get(job.ID); gerr == nil {
			return current
		}
		return job
	}
	if err != nil {
		log.Printf("job %s: could not record playback id: %s", job.ID.String(), err)
		return job
	}
	return updated
}

// mustAdvance panics on an edge missing from the transition table, which is
// a programming error and gets caught by the failure boundary in Process.
func mustAdvance(s ingestState, ev ingestEvent) ingestState {
	next, err := nextIngestState(s, ev)
	if err != nil {
		panic(err)
	}
	return next
}
