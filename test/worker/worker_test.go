package test_worker

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avinash9807/Url-uploader-with-online-player/test"
	"github.com/avinash9807/Url-uploader-with-online-player/worker"
)

func TestTriggerHitsProcessEndpoint(t *testing.T) {
	t.Parallel()
	var gotMethod, gotPath, gotMax, gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotMax = r.URL.Query().Get("max")
		gotKey = r.Header.Get("X-API-Key")
		fmt.Fprint(w, `{"attempted": ["vid_6740b44e-13b9-475d-af06-979627e0e0d6"]}`)
	}))
	defer ts.Close()

	w := worker.New(ts.URL, "hush")
	w.BatchSize = 3
	attempted, err := w.Trigger()
	test.AssertNotError(t, err, "triggering dispatch")
	test.AssertEquals(t, gotMethod, "POST")
	test.AssertEquals(t, gotPath, "/v1/videos/process")
	test.AssertEquals(t, gotMax, "3")
	test.AssertEquals(t, gotKey, "hush")
	test.AssertEquals(t, len(attempted), 1)
	test.AssertEquals(t, attempted[0], "vid_6740b44e-13b9-475d-af06-979627e0e0d6")
}

func TestTriggerReturnsServerError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"title": "Unexpected server error. Please try again", "id": "server_error"}`)
	}))
	defer ts.Close()

	_, err := worker.New(ts.URL, "hush").Trigger()
	test.AssertError(t, err, "expected error from 500 response")
	test.AssertContains(t, err.Error(), "Unexpected server error")
}

func TestRunTriggersUntilShutdown(t *testing.T) {
	t.Parallel()
	hits := make(chan struct{}, 100)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits <- struct{}{}
		fmt.Fprint(w, `{"attempted": []}`)
	}))
	defer ts.Close()

	w := worker.New(ts.URL, "")
	w.Interval = 5 * time.Millisecond
	go w.Run()

	// Wait for a couple of cycles, then stop the loop.
	for i := 0; i < 2; i++ {
		select {
		case <-hits:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a dispatch cycle")
		}
	}
	w.Shutdown()
}
