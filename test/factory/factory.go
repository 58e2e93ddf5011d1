// Package factory contains helpers for instantiating tests.
package factory

import (
	"fmt"
	"testing"
	"time"

	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/db"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/mux"
	"github.com/avinash9807/Url-uploader-with-online-player/services"
	"github.com/avinash9807/Url-uploader-with-online-player/test"
	uuid "github.com/kevinburke/go.uuid"
)

var JobId types.PrefixUUID

func init() {
	id, _ := types.NewPrefixUUID("vid_6740b44e-13b9-475d-af06-979627e0e0d6")
	JobId = id
}

// SampleURL is a source URL that no test provider will actually fetch.
var SampleURL = "https://example.com/videos/movie.mp4"

// RandomId returns a random UUID with the given prefix.
func RandomId(prefix string) types.PrefixUUID {
	id := uuid.NewV4()
	return types.PrefixUUID{
		UUID:   id,
		Prefix: prefix,
	}
}

// CreateIngestJob enqueues a job with a random id and the sample source URL.
func CreateIngestJob(t testing.TB) *models.IngestJob {
	t.Helper()
	test.SetUp(t)
	title := types.NullString{Valid: true, String: "A test movie"}
	job, err := ingest_jobs.Enqueue(RandomId("vid_"), SampleURL, title)
	test.AssertNotError(t, err, "enqueueing job")
	return job
}

// CreateProcessingJob enqueues a job and claims it, leaving it in the
// processing state the way a dispatch cycle would.
func CreateProcessingJob(t testing.TB) *models.IngestJob {
	t.Helper()
	job := CreateIngestJob(t)
	claimed, err := ingest_jobs.Claim(job.ID)
	test.AssertNotError(t, err, "claiming job")
	return claimed
}

// BackdateJob rewinds a job's updated_at by age, so tests can exercise the
// resume and stuck-job paths without waiting.
func BackdateJob(t testing.TB, id types.PrefixUUID, age time.Duration) {
	t.Helper()
	_, err := db.Conn.Exec("UPDATE ingest_jobs SET updated_at = now() - $2::interval WHERE id = $1",
		id, fmt.Sprintf("%f seconds", age.Seconds()))
	test.AssertNotError(t, err, "backdating job")
}

// Processor returns an AssetProcessor with a client pointing at the given
// URL, a tiny poll budget, and sleeps disabled, so tests run fast.
func Processor(url string) *services.AssetProcessor {
	p := services.NewAssetProcessor(mux.NewClient("token-id", "token-secret", url))
	p.PollInterval = 10 * time.Millisecond
	p.PollBudget = 50 * time.Millisecond
	p.Sleep = func(d time.Duration) {}
	return p
}
