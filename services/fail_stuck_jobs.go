package services

import (
	"log"
	"time"

	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
)

// FailStuckJobs marks as errored any processing jobs with an updated_at
// timestamp older than the olderThan value. A healthy processing pass
// persists something at least once per poll interval, so a row that hasn't
// moved in much longer than the poll budget belongs to a pass that died
// without reaching its failure boundary.
func FailStuckJobs(olderThan time.Duration) error {
	var olderThanTime time.Time
	if olderThan >= 0 {
		olderThanTime = time.Now().Add(-1 * olderThan)
	} else {
		olderThanTime = time.Now().Add(olderThan)
	}
	jobs, err := ingest_jobs.GetOldProcessingJobs(olderThanTime)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		_, err = ingest_jobs.MarkErrored(job.ID, "processing pass died without finishing; marked errored by the stuck-job watcher")
		if err == nil {
			log.Printf("Found stuck job %s and marked it as errored", job.ID.String())
		} else {
			// We don't want to return an error here since there may easily be
			// race/idempotence errors with a stuck job watcher. If it errors
			// we'll grab it with the next cron.
			log.Printf("Found stuck job %s but could not process it: %s", job.ID.String(), err.Error())
		}
	}
	return nil
}

// WatchStuckJobs polls the ingest_jobs table for stuck jobs (defined as
// processing jobs that haven't been updated in olderThan time), and marks
// them as errored.
func WatchStuckJobs(interval time.Duration, olderThan time.Duration) {
	for range time.Tick(interval) {
		go func() {
			err := FailStuckJobs(olderThan)
			if err != nil {
				log.Printf("Error failing stuck jobs: %s\n", err.Error())
			}
		}()
	}
}
