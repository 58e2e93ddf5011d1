package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/test"
	"github.com/avinash9807/Url-uploader-with-online-player/test/factory"
)

// A response the fake provider sends for one request.
type provResp struct {
	code int
	body string
}

var okCreate = provResp{201, `{"data": {"id": "ast_1", "status": "preparing"}}`}
var okPlayback = provResp{201, `{"data": {"id": "pb_1", "policy": "public"}}`}
var readyAsset = provResp{200, `{"data": {"id": "ast_1", "status": "ready", "playback_ids": [{"id": "pb_1", "policy": "public"}]}}`}
var preparingAsset = provResp{200, `{"data": {"id": "ast_1", "status": "preparing"}}`}

// fakeProvider imitates the video provider. The create and playback
// endpoints send fixed responses; asset gets walk through the get sequence,
// repeating the last entry once it runs out.
type fakeProvider struct {
	mu            sync.Mutex
	create        provResp
	playback      provResp
	gets          []provResp
	createCalls   int
	playbackCalls int
	getCalls      int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		create:   okCreate,
		playback: okPlayback,
		gets:     []provResp{readyAsset},
	}
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var resp provResp
	switch {
	case r.Method == "POST" && r.URL.Path == "/assets":
		f.createCalls++
		resp = f.create
	case r.Method == "POST" && strings.HasSuffix(r.URL.Path, "/playback-ids"):
		f.playbackCalls++
		resp = f.playback
	case r.Method == "GET" && strings.HasPrefix(r.URL.Path, "/assets/"):
		i := f.getCalls
		f.getCalls++
		if i >= len(f.gets) {
			i = len(f.gets) - 1
		}
		resp = f.gets[i]
	default:
		resp = provResp{404, `{"error": {"messages": ["no such route"]}}`}
	}
	w.WriteHeader(resp.code)
	fmt.Fprint(w, resp.body)
}

func (f *fakeProvider) counts() (create, playback, get int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls, f.playbackCalls, f.getCalls
}

func TestProcessSuccess(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.gets = []provResp{preparingAsset, preparingAsset, readyAsset}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusReady)
	test.AssertEquals(t, processed.AssetID.String, "ast_1")
	test.AssertEquals(t, processed.PlaybackID.String, "pb_1")

	create, playback, get := fp.counts()
	test.AssertEquals(t, create, 1)
	test.AssertEquals(t, playback, 1)
	test.AssertEquals(t, get, 3)
}

func TestProcessCreateRejected(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.create = provResp{422, `{"error": {"type": "invalid_parameters", "messages": ["input URL is not reachable"]}}`}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusErrored)
	test.AssertContains(t, processed.LastError.String, "input URL is not reachable")

	_, _, get := fp.counts()
	test.AssertEquals(t, get, 0)
}

func TestProcessCreateUnavailable(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.create = provResp{503, `upstream down`}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusErrored)
	test.AssertContains(t, processed.LastError.String, "provider unavailable")
}

func TestProcessPollBudgetExhausted(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.gets = []provResp{preparingAsset}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	// Budget ran out with the asset still pending; the job keeps its claim so
	// a later dispatch cycle resumes it.
	test.AssertEquals(t, processed.Status, models.StatusProcessing)
	test.AssertContains(t, processed.LastError.String, "still waiting on asset ast_1")

	// 50ms budget / 10ms interval
	_, _, get := fp.counts()
	test.AssertEquals(t, get, 5)
}

func TestProcessPollRetriesWhenUnavailable(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.gets = []provResp{{503, `upstream down`}, {502, `bad gateway`}, readyAsset}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusReady)
}

func TestProcessPollErrored(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.gets = []provResp{{200, `{"data": {"id": "ast_1", "status": "errored", "errors": {"messages": ["input file is corrupt"]}}}`}}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusErrored)
	test.AssertEquals(t, processed.LastError.String, "input file is corrupt")
}

func TestProcessTerminalJobIsANoop(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	ts := httptest.NewServer(fp)
	defer ts.Close()

	p := factory.Processor(ts.URL)
	job := factory.CreateIngestJob(t)
	processed, err := p.Process(job.ID)
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, processed.Status, models.StatusReady)
	createBefore, playbackBefore, getBefore := fp.counts()

	again, err := p.Process(job.ID)
	test.AssertNotError(t, err, "reprocessing finished job")
	test.AssertEquals(t, again.Status, models.StatusReady)
	create, playback, get := fp.counts()
	test.AssertEquals(t, create, createBefore)
	test.AssertEquals(t, playback, playbackBefore)
	test.AssertEquals(t, get, getBefore)
}

func TestProcessResumesWithoutCreating(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateProcessingJob(t)
	_, err := ingest_jobs.SetAsset(job.ID, "ast_1", nil)
	test.AssertNotError(t, err, "")

	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusReady)

	create, _, _ := fp.counts()
	test.AssertEquals(t, create, 0)
}

func TestProcessPlaybackFailureIsNotFatal(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.playback = provResp{500, `upstream down`}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	// The grant failed, but polling found the public playback id the
	// provider attached on its own.
	test.AssertEquals(t, processed.Status, models.StatusReady)
	test.AssertEquals(t, processed.PlaybackID.String, "pb_1")
}

func TestProcessSkipsGrantWhenCreateReturnsPlaybackID(t *testing.T) {
	defer test.TearDown(t)
	fp := newFakeProvider()
	fp.create = provResp{201, `{"data": {"id": "ast_1", "status": "preparing", "playback_ids": [{"id": "pb_0", "policy": "public"}]}}`}
	ts := httptest.NewServer(fp)
	defer ts.Close()

	job := factory.CreateIngestJob(t)
	processed, err := factory.Processor(ts.URL).Process(job.ID)
	test.AssertNotError(t, err, "processing job")
	test.AssertEquals(t, processed.Status, models.StatusReady)
	test.AssertEquals(t, processed.PlaybackID.String, "pb_0")

	_, playback, _ := fp.counts()
	test.AssertEquals(t, playback, 0)
}

func TestProcessUnknownJobReturnsError(t *testing.T) {
	test.SetUp(t)
	defer test.TearDown(t)
	fp := newFakeProvider()
	ts := httptest.NewServer(fp)
	defer ts.Close()

	_, err := factory.Processor(ts.URL).Process(factory.RandomId("vid_"))
	test.AssertEquals(t, err, ingest_jobs.ErrNotFound)
}
