package services

import (
	"testing"
	"time"

	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/services"
	"github.com/avinash9807/Url-uploader-with-online-player/test"
	"github.com/avinash9807/Url-uploader-with-online-player/test/factory"
)

func TestFailStuckJobs(t *testing.T) {
	defer test.TearDown(t)
	stuck := factory.CreateProcessingJob(t)
	factory.BackdateJob(t, stuck.ID, 3*time.Hour)
	fresh := factory.CreateProcessingJob(t)
	queued := factory.CreateIngestJob(t)

	err := services.FailStuckJobs(2 * time.Hour)
	test.AssertNotError(t, err, "failing stuck jobs")

	got, err := ingest_jobs.Get(stuck.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.Status, models.StatusErrored)
	test.AssertContains(t, got.LastError.String, "stuck-job watcher")

	got, err = ingest_jobs.Get(fresh.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.Status, models.StatusProcessing)

	got, err = ingest_jobs.Get(queued.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.Status, models.StatusQueued)
}
