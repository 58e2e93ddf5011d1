package services

import (
	"log"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
)

// DefaultBatchSize is how many queued jobs one dispatch cycle will attempt
// when the caller does not say otherwise.
var DefaultBatchSize = 2

// ResumeAfter is how long a processing job must sit untouched before a
// dispatch cycle will resume polling it. It should comfortably exceed the
// poll interval, so active passes are never picked up twice.
var ResumeAfter = 1 * time.Minute

// ProcessPending selects up to max queued jobs, oldest first, and runs a
// processing pass over each one sequentially. Leftover capacity goes to
// processing jobs whose last pass ran out of polling budget. It returns the
// ids that were attempted, whether or not they succeeded; a failure in one
// job never aborts the batch. An error is returned only when the queue
// itself cannot be read.
func (p *AssetProcessor) ProcessPending(max int) ([]types.PrefixUUID, error) {
	if max <= 0 {
		max = DefaultBatchSize
	}
	jobs, err := ingest_jobs.ListByStatus(models.StatusQueued, max)
	if err != nil {
		go metrics.Increment("dispatch.list.error")
		return nil, err
	}
	if len(jobs) < max {
		resumable, err := ingest_jobs.ListResumable(time.Now().Add(-ResumeAfter), max-len(jobs))
		if err != nil {
			go metrics.Increment("dispatch.list.error")
			return nil, err
		}
		jobs = append(jobs, resumable...)
	}
	attempted := make([]types.PrefixUUID, 0, len(jobs))
	for _, job := range jobs {
		attempted = append(attempted, job.ID)
		if _, err := p.Process(job.ID); err != nil {
			// Isolated per job; the store has the diagnostic if one was
			// persisted, and the next cycle gets another chance.
			log.Printf("dispatch: error processing job %s: %s", job.ID.String(), err)
			go metrics.Increment("dispatch.process.error")
		} else {
			go metrics.Increment("dispatch.process.attempted")
		}
	}
	return attempted, nil
}
