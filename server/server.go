// Package server provides the HTTP interface for the video ingest queue.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Shyp/go-simple-metrics"
	"github.com/Shyp/go-types"
	"github.com/avinash9807/Url-uploader-with-online-player/config"
	"github.com/avinash9807/Url-uploader-with-online-player/models"
	"github.com/avinash9807/Url-uploader-with-online-player/models/ingest_jobs"
	"github.com/avinash9807/Url-uploader-with-online-player/rest"
	"github.com/avinash9807/Url-uploader-with-online-player/services"
)

// The maximum size of an enqueue request body.
const MAX_ENQUEUE_BODY_SIZE = 100 * 1024

// DefaultListLimit is how many jobs a listing returns when the caller does
// not pass a limit.
const DefaultListLimit = 20

const maxListLimit = 100

// GET /health
var healthRoute = regexp.MustCompile(`^/health$`)

// GET/POST /v1/videos
var videosRoute = regexp.MustCompile(`^/v1/videos$`)

// POST /v1/videos/process
//
// Must go before videoIdRoute.
var processRoute = regexp.MustCompile(`^/v1/videos/process$`)

// GET/DELETE /v1/videos/vid_123
var videoIdRoute = regexp.MustCompile(`^/v1/videos/(?P<id>vid_[^\s\/]+)$`)

// GET /v1/assets
var assetsRoute = regexp.MustCompile(`^/v1/assets$`)

// DELETE /v1/assets/:asset-id
var assetIdRoute = regexp.MustCompile(`^/v1/assets/(?P<id>[^\s\/]+)$`)

// Get returns a http.Handler with all routes initialized using the given
// Authorizer. The processor is the server's handle on the job engine and
// the provider; its lifecycle belongs to the caller.
func Get(a Authorizer, processor *services.AssetProcessor) http.Handler {
	h := new(RegexpHandler)

	h.Handler(healthRoute, []string{"GET"}, healthHandler())

	h.Handler(processRoute, []string{"POST"}, authHandler(processPending(processor), a))
	h.Handler(videosRoute, []string{"GET", "POST"}, authHandler(handleVideosRoute(), a))
	h.Handler(videoIdRoute, []string{"GET", "DELETE"}, authHandler(handleVideoIdRoute(processor), a))

	h.Handler(assetsRoute, []string{"GET"}, authHandler(listAssets(processor), a))
	h.Handler(assetIdRoute, []string{"DELETE"}, authHandler(deleteAsset(processor), a))

	return serverHeaderHandler(h)
}

func serverHeaderHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Server", fmt.Sprintf("url-uploader/%s", config.Version))
		h.ServeHTTP(w, r)
	})
}

func authHandler(h http.Handler, a Authorizer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			// query param fallback, for clients that can't set headers
			key = r.URL.Query().Get("api_key")
		}
		err := a.Authorize(key)
		if err != nil {
			metrics.Increment("auth.error")
			handleAuthorizeError(w, r, err)
			return
		}
		metrics.Increment("auth.success")
		h.ServeHTTP(w, r)
	})
}

// GET /health
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
}

// GET or POST /v1/videos
func handleVideosRoute() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			createVideo().ServeHTTP(w, r)
			return
		}
		listVideos().ServeHTTP(w, r)
	})
}

// GET or DELETE /v1/videos/vid_123
func handleVideoIdRoute(processor *services.AssetProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "DELETE" {
			deleteVideo(processor).ServeHTTP(w, r)
			return
		}
		getVideo().ServeHTTP(w, r)
	})
}

// A CreateVideoRequest is sent in the body of a request to POST /v1/videos.
type CreateVideoRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// POST /v1/videos
//
// Enqueue a new ingest job. Accepts JSON or form data.
func createVideo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			badRequest(w, r, createEmptyErr("url", r.URL.Path))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, MAX_ENQUEUE_BODY_SIZE)
		defer r.Body.Close()
		var cvr CreateVideoRequest
		ct := r.Header.Get("Content-Type")
		if strings.HasPrefix(ct, "application/json") {
			if err := json.NewDecoder(r.Body).Decode(&cvr); err != nil {
				badRequest(w, r, &rest.Error{
					ID:    "invalid_request",
					Title: "Invalid request: bad JSON. Double check the types of the fields you sent",
				})
				return
			}
		} else {
			if err := r.ParseForm(); err != nil {
				badRequest(w, r, &rest.Error{
					ID:    "invalid_request",
					Title: "Invalid request: could not parse form data",
				})
				return
			}
			cvr.URL = r.PostForm.Get("url")
			cvr.Title = r.PostForm.Get("title")
		}
		if cvr.URL == "" {
			badRequest(w, r, createEmptyErr("url", r.URL.Path))
			return
		}

		id := types.GenerateUUID(ingest_jobs.Prefix)
		title := types.NullString{Valid: cvr.Title != "", String: cvr.Title}
		start := time.Now()
		job, err := ingest_jobs.Enqueue(id, cvr.URL, title)
		go metrics.Time("enqueue.latency", time.Since(start))
		if err != nil {
			writeServerError(w, r, err)
			go metrics.Increment("enqueue.error")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(job)
		go metrics.Increment("enqueue.success")
	})
}

// GET /v1/videos/vid_123
//
// Returns the ingest job, or a 404 Not Found error.
func getVideo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := videoIdRoute.FindStringSubmatch(r.URL.Path)[1]
		id, wroteResponse := getId(w, r, idStr)
		if wroteResponse == true {
			return
		}
		job, err := ingest_jobs.GetRetry(id, 3)
		if err == ingest_jobs.ErrNotFound {
			notFound(w, new404(r))
			go metrics.Increment("job.get.not_found")
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(job)
		go metrics.Increment("job.get.success")
	})
}

// GET /v1/videos?limit=20&status=queued
//
// List recent jobs, newest first, optionally filtered by status.
func listVideos() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := DefaultListLimit
		if l := r.URL.Query().Get("limit"); l != "" {
			parsed, err := strconv.Atoi(l)
			if err != nil || parsed <= 0 {
				badRequest(w, r, &rest.Error{
					ID:    "invalid_parameter",
					Title: "limit must be a number greater than zero",
				})
				return
			}
			limit = parsed
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		var jobs []*models.IngestJob
		var err error
		if status := r.URL.Query().Get("status"); status != "" {
			jobs, err = ingest_jobs.ListByStatus(models.JobStatus(status), limit)
		} else {
			jobs, err = ingest_jobs.ListRecent(limit)
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if jobs == nil {
			jobs = []*models.IngestJob{}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(jobs)
	})
}

// POST /v1/videos/process?max=2
//
// Run one dispatch cycle: claim up to max queued jobs and process each one.
// The worker loop hits this endpoint on an interval.
func processPending(processor *services.AssetProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		max := services.DefaultBatchSize
		if m := r.URL.Query().Get("max"); m != "" {
			parsed, err := strconv.Atoi(m)
			if err != nil || parsed <= 0 {
				badRequest(w, r, &rest.Error{
					ID:    "invalid_parameter",
					Title: "max must be a number greater than zero",
				})
				return
			}
			max = parsed
		}
		start := time.Now()
		attempted, err := processor.ProcessPending(max)
		go metrics.Time("dispatch.latency", time.Since(start))
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		ids := make([]string, len(attempted))
		for i, id := range attempted {
			ids[i] = id.String()
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"attempted": ids,
		})
	})
}

// DELETE /v1/videos/vid_123
//
// Delete the job record, and the provider asset if one was created.
func deleteVideo(processor *services.AssetProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idStr := videoIdRoute.FindStringSubmatch(r.URL.Path)[1]
		id, wroteResponse := getId(w, r, idStr)
		if wroteResponse == true {
			return
		}
		job, err := ingest_jobs.GetRetry(id, 3)
		if err == ingest_jobs.ErrNotFound {
			notFound(w, new404(r))
			return
		}
		if err != nil {
			writeServerError(w, r, err)
			return
		}
		if job.AssetID.Valid {
			if err := processor.Client.Assets.Delete(job.AssetID.String); err != nil {
				writeGatewayError(w, r, err)
				return
			}
		}
		if err := ingest_jobs.Delete(id); err != nil && err != ingest_jobs.ErrNotFound {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "deleted",
			"id":     id.String(),
		})
		go metrics.Increment("job.delete.success")
	})
}

// GET /v1/assets?limit=50&page=0
//
// Passthrough listing of the provider's assets, unshaped.
func listAssets(processor *services.AssetProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		page := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		if p := r.URL.Query().Get("page"); p != "" {
			if parsed, err := strconv.Atoi(p); err == nil && parsed >= 0 {
				page = parsed
			}
		}
		raw, err := processor.Client.Assets.List(limit, page)
		if err != nil {
			writeGatewayError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(raw)
	})
}

// DELETE /v1/assets/:asset-id
//
// Delete a provider asset directly, whether or not a job references it.
func deleteAsset(processor *services.AssetProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetID := assetIdRoute.FindStringSubmatch(r.URL.Path)[1]
		if err := processor.Client.Assets.Delete(assetID); err != nil {
			writeGatewayError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":   "deleted",
			"asset_id": assetID,
		})
	})
}
