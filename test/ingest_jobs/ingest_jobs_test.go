package test_ingest_jobs

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/Shyp/go-dberror"
	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/test"
	"github.com/avinash9807/Url-uploader-with-online-player/test/factory"
)

var sampleResponse = json.RawMessage([]byte(`{"data": {"id": "ast_1", "status": "preparing"}}`))

func TestEnqueue(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	test.AssertEquals(t, job.ID.Prefix, "vid_")
	test.AssertEquals(t, job.SourceURL, factory.SampleURL)
	test.AssertEquals(t, job.Title.String, "A test movie")
	test.AssertEquals(t, job.Status, models.StatusQueued)
	test.Assert(t, !job.AssetID.Valid, "new job should have no asset id")
	test.Assert(t, !job.PlaybackID.Valid, "new job should have no playback id")
	test.Assert(t, !job.LastError.Valid, "new job should have no error")

	diff := time.Since(job.CreatedAt)
	test.Assert(t, diff < 100*time.Millisecond, "")
	diff = time.Since(job.UpdatedAt)
	test.Assert(t, diff < 100*time.Millisecond, "")
}

func TestEnqueueJobExists(t *testing.T) {
	test.SetUp(t)
	defer test.TearDown(t)
	title := types.NullString{Valid: false}
	_, err := ingest_jobs.Enqueue(factory.JobId, factory.SampleURL, title)
	test.AssertNotError(t, err, "")
	_, err = ingest_jobs.Enqueue(factory.JobId, factory.SampleURL, title)
	test.AssertError(t, err, "")
	switch terr := err.(type) {
	case *dberror.Error:
		test.AssertEquals(t, terr.Code, dberror.CodeUniqueViolation)
		test.AssertEquals(t, terr.Table, "ingest_jobs")
	default:
		t.Fatalf("Expected a dberror, got %#v", terr)
	}
}

func TestGetNonexistentReturnsErrNotFound(t *testing.T) {
	test.SetUp(t)
	defer test.TearDown(t)
	id, _ := types.NewPrefixUUID("vid_a9173b65-7714-42b4-85f2-8336f6d12180")
	_, err := ingest_jobs.Get(id)
	test.AssertEquals(t, err, ingest_jobs.ErrNotFound)
}

func TestGet(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	got, err := ingest_jobs.Get(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.ID.String(), job.ID.String())
	test.AssertEquals(t, got.SourceURL, job.SourceURL)
	test.AssertEquals(t, got.Status, models.StatusQueued)
}

func TestDelete(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	err := ingest_jobs.Delete(job.ID)
	test.AssertNotError(t, err, "")
	_, err = ingest_jobs.Get(job.ID)
	test.AssertEquals(t, err, ingest_jobs.ErrNotFound)
}

func TestDeleteNonexistentReturnsErrNotFound(t *testing.T) {
	test.SetUp(t)
	defer test.TearDown(t)
	id, _ := types.NewPrefixUUID("vid_a9173b65-7714-42b4-85f2-8336f6d12180")
	err := ingest_jobs.Delete(id)
	test.AssertEquals(t, err, ingest_jobs.ErrNotFound)
}

func TestClaim(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	claimed, err := ingest_jobs.Claim(job.ID)
	test.AssertNotError(t, err, "claiming queued job")
	test.AssertEquals(t, claimed.Status, models.StatusProcessing)
}

func TestClaimTwiceLosesTheSecondTime(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	_, err := ingest_jobs.Claim(job.ID)
	test.AssertNotError(t, err, "")
	_, err = ingest_jobs.Claim(job.ID)
	test.AssertEquals(t, err, sql.ErrNoRows)
}

func TestListByStatusReturnsOldestFirst(t *testing.T) {
	defer test.TearDown(t)
	first := factory.CreateIngestJob(t)
	second := factory.CreateIngestJob(t)
	third := factory.CreateIngestJob(t)
	_, err := ingest_jobs.Claim(third.ID)
	test.AssertNotError(t, err, "")

	jobs, err := ingest_jobs.ListByStatus(models.StatusQueued, 10)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, len(jobs), 2)
	test.AssertEquals(t, jobs[0].ID.String(), first.ID.String())
	test.AssertEquals(t, jobs[1].ID.String(), second.ID.String())
}

func TestListByStatusHonorsLimit(t *testing.T) {
	defer test.TearDown(t)
	factory.CreateIngestJob(t)
	factory.CreateIngestJob(t)
	factory.CreateIngestJob(t)
	jobs, err := ingest_jobs.ListByStatus(models.StatusQueued, 2)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, len(jobs), 2)
}

func TestListRecentReturnsNewestFirst(t *testing.T) {
	defer test.TearDown(t)
	factory.CreateIngestJob(t)
	newest := factory.CreateIngestJob(t)
	jobs, err := ingest_jobs.ListRecent(10)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, len(jobs), 2)
	test.AssertEquals(t, jobs[0].ID.String(), newest.ID.String())
}

func TestSetAssetWritesOnce(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	updated, err := ingest_jobs.SetAsset(job.ID, "ast_1", sampleResponse)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, updated.AssetID.String, "ast_1")

	_, err = ingest_jobs.SetAsset(job.ID, "ast_2", sampleResponse)
	test.AssertEquals(t, err, sql.ErrNoRows)
	got, err := ingest_jobs.Get(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.AssetID.String, "ast_1")
}

func TestSetAssetRequiresProcessing(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	_, err := ingest_jobs.SetAsset(job.ID, "ast_1", sampleResponse)
	test.AssertEquals(t, err, sql.ErrNoRows)
}

func TestSetPlaybackIDFirstWriteWins(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	updated, err := ingest_jobs.SetPlaybackID(job.ID, "pb_1")
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, updated.PlaybackID.String, "pb_1")

	_, err = ingest_jobs.SetPlaybackID(job.ID, "pb_2")
	test.AssertEquals(t, err, sql.ErrNoRows)
	got, err := ingest_jobs.Get(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.PlaybackID.String, "pb_1")
}

func TestMarkReady(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	updated, err := ingest_jobs.MarkReady(job.ID, sampleResponse)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, updated.Status, models.StatusReady)
	test.Assert(t, updated.Status.Terminal(), "ready should be terminal")
}

func TestMarkReadyRequiresProcessing(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateIngestJob(t)
	_, err := ingest_jobs.MarkReady(job.ID, sampleResponse)
	test.AssertEquals(t, err, sql.ErrNoRows)
}

func TestMarkErrored(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	updated, err := ingest_jobs.MarkErrored(job.ID, "the input was corrupt")
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, updated.Status, models.StatusErrored)
	test.AssertEquals(t, updated.LastError.String, "the input was corrupt")
}

func TestTerminalStatesStayPut(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	_, err := ingest_jobs.MarkReady(job.ID, nil)
	test.AssertNotError(t, err, "")

	_, err = ingest_jobs.MarkErrored(job.ID, "too late")
	test.AssertEquals(t, err, sql.ErrNoRows)
	_, err = ingest_jobs.Claim(job.ID)
	test.AssertEquals(t, err, sql.ErrNoRows)
	got, err := ingest_jobs.Get(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, got.Status, models.StatusReady)
}

func TestRecordErrorKeepsStatus(t *testing.T) {
	defer test.TearDown(t)
	job := factory.CreateProcessingJob(t)
	updated, err := ingest_jobs.RecordError(job.ID, "still waiting on the provider")
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, updated.Status, models.StatusProcessing)
	test.AssertEquals(t, updated.LastError.String, "still waiting on the provider")
}

func TestListResumable(t *testing.T) {
	defer test.TearDown(t)
	stale := factory.CreateProcessingJob(t)
	factory.CreateProcessingJob(t)
	factory.BackdateJob(t, stale.ID, 2*time.Minute)

	jobs, err := ingest_jobs.ListResumable(time.Now().Add(-1*time.Minute), 10)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, len(jobs), 1)
	test.AssertEquals(t, jobs[0].ID.String(), stale.ID.String())
}

func TestGetCountsByStatus(t *testing.T) {
	defer test.TearDown(t)
	factory.CreateIngestJob(t)
	factory.CreateIngestJob(t)
	factory.CreateProcessingJob(t)

	m, err := ingest_jobs.GetCountsByStatus()
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, m[models.StatusQueued], int64(2))
	test.AssertEquals(t, m[models.StatusProcessing], int64(1))
}
