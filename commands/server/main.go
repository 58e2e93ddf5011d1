// Run the video ingest server.
//
// Configuration comes from the environment: DATABASE_URL, MUX_TOKEN_ID,
// MUX_TOKEN_SECRET, and API_KEY. If API_KEY is unset, authentication is
// disabled; do not run it that way in production.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/avinash9807/Url-uploader-with-online-player/config"
	"github.com/avinash9807/Url-uploader-with-online-player/mux"
	"github.com/avinash9807/Url-uploader-with-online-player/server"
	"github.com/avinash9807/Url-uploader-with-online-player/services"
	"github.com/avinash9807/Url-uploader-with-online-player/setup"
	"github.com/gorilla/handlers"
)

func configure() (http.Handler, error) {
	dbConns, err := config.GetInt("PG_SERVER_POOL_SIZE")
	if err != nil {
		log.Printf("Error getting database pool size: %s. Defaulting to 10", err)
		dbConns = 10
	}

	if err = setup.DB(setup.DefaultConnection, dbConns); err != nil {
		return nil, err
	}

	metrics.Namespace = "uploader.server"
	metrics.Start("web")

	go setup.MeasureActiveQueries(5 * time.Second)
	go setup.MeasureQueueDepth(5 * time.Second)

	// Every 10 minutes, check for processing jobs that haven't been updated
	// for 2 hours and mark them as errored. Suspended jobs get resumed well
	// before that by the dispatch loop, so anything this old is orphaned.
	go services.WatchStuckJobs(10*time.Minute, 2*time.Hour)

	tokenID := os.Getenv("MUX_TOKEN_ID")
	tokenSecret := os.Getenv("MUX_TOKEN_SECRET")
	if tokenID == "" || tokenSecret == "" {
		return nil, fmt.Errorf("MUX_TOKEN_ID and MUX_TOKEN_SECRET must be set")
	}
	client := mux.NewClient(tokenID, tokenSecret, config.GetString("MUX_BASE_URL", ""))
	processor := services.NewAssetProcessor(client)

	h := server.Get(server.DefaultAuthorizer, processor)

	origins := []string{"*"}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins = strings.Split(v, ",")
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-API-Key"}),
	)
	return cors(h), nil
}

func main() {
	s, err := configure()
	if err != nil {
		log.Fatal(err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	log.Printf("Listening on port %s\n", port)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%s", port), handlers.LoggingHandler(os.Stdout, s)))
}
