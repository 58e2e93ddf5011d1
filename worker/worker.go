// The worker triggers dispatch cycles on the front door over HTTP.
//
// Running the trigger loop in a separate process keeps the server stateless
// between requests; if the worker dies, queued jobs simply wait for the next
// loop after a restart.
package worker

import (
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/avinash9807/Url-uploader-with-online-player/rest"
	"github.com/avinash9807/Url-uploader-with-online-player/services"
)

// DefaultInterval is how long to wait between dispatch cycles.
const DefaultInterval = 5 * time.Second

func init() {
	rand.Seed(time.Now().UnixNano())
}

// A Worker repeatedly asks the server to process pending jobs. The server
// owns claiming and error handling; a cycle that fails is logged and the
// next tick tries again, so the loop never needs backoff state.
type Worker struct {
	Client    *rest.Client
	Interval  time.Duration
	BatchSize int
	QuitChan  chan bool
}

// New returns a Worker hitting the front door at base, authenticating with
// the given API key.
func New(base, apiKey string) *Worker {
	return &Worker{
		Client:    rest.NewAPIKeyClient(apiKey, base),
		Interval:  DefaultInterval,
		BatchSize: services.DefaultBatchSize,
		QuitChan:  make(chan bool, 1),
	}
}

// dispatchResponse is the body of a successful POST /v1/videos/process.
type dispatchResponse struct {
	Attempted []string `json:"attempted"`
}

// Jitter returns a value that's around the given val, but not exactly it. The
// jitter is randomly chosen between 0.8 and 1.2 times the given value, evenly
// distributed.
func jitter(val float64) float64 {
	return val*0.8 + rand.Float64()*0.2*2*val
}

// Run triggers a dispatch cycle every Interval until Shutdown is called.
// Run blocks; start it in its own goroutine.
func (w *Worker) Run() {
	waitDuration := time.Duration(jitter(float64(w.Interval)))
	for {
		select {
		case <-w.QuitChan:
			log.Printf("worker quitting\n")
			return

		case <-time.After(waitDuration):
			waitDuration = time.Duration(jitter(float64(w.Interval)))
			start := time.Now()
			attempted, err := w.Trigger()
			go metrics.Time("worker.cycle.latency", time.Since(start))
			if err != nil {
				log.Printf("worker: Error triggering dispatch: %s", err)
				go metrics.Increment("worker.cycle.error")
				continue
			}
			if len(attempted) > 0 {
				log.Printf("worker: dispatched %d jobs: %v", len(attempted), attempted)
			}
			go metrics.Increment("worker.cycle.success")
		}
	}
}

// Trigger runs one dispatch cycle and returns the ids the server attempted.
func (w *Worker) Trigger() ([]string, error) {
	path := "/v1/videos/process?max=" + strconv.Itoa(w.BatchSize)
	req, err := w.Client.NewRequest("POST", path, nil)
	if err != nil {
		return nil, err
	}
	var resp dispatchResponse
	if err := w.Client.Do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Attempted, nil
}

// Shutdown stops the loop after the in-flight cycle, if any, completes.
func (w *Worker) Shutdown() {
	w.QuitChan <- true
	close(w.QuitChan)
}
