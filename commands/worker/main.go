// Trigger dispatch cycles against the server.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/Shyp/go-simple-metrics"
	"github.com/avinash9807/Url-uploader-with-online-player/config"
	"github.com/avinash9807/Url-uploader-with-online-player/worker"
)

func main() {
	// Every cycle opens a connection to the same server.
	httpConns, err := config.GetInt("HTTP_MAX_IDLE_CONNS")
	if err == nil {
		config.SetMaxIdleConnsPerHost(httpConns)
	} else {
		config.SetMaxIdleConnsPerHost(100)
	}

	metrics.Namespace = "uploader.worker"
	metrics.Start("worker")

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Printf("No API_KEY configured, sending unauthenticated requests")
	}

	parsedUrl := config.GetURLOrBail("SERVER_URL")
	w := worker.New(parsedUrl.String(), apiKey)
	if batch := os.Getenv("WORKER_BATCH_SIZE"); batch != "" {
		parsed, err := strconv.Atoi(batch)
		if err != nil || parsed <= 0 {
			log.Fatalf("Invalid WORKER_BATCH_SIZE: %s", batch)
		}
		w.BatchSize = parsed
	}
	go w.Run()
	log.Printf("worker started, triggering %s every %s", parsedUrl.String(), w.Interval)

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigterm
	fmt.Printf("Caught signal %v, shutting down...\n", sig)
	w.Shutdown()
	fmt.Println("Worker shut down. Quitting.")
}
