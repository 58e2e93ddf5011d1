// Helpers for building various types of error responses.

package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/avinash9807/Url-uploader-with-online-player/rest"
)

func new405(r *http.Request) *rest.Error {
	return &rest.Error{
		Title:      "Method not allowed",
		ID:         "method_not_allowed",
		Instance:   r.URL.Path,
		StatusCode: 405,
	}
}

func new404(r *http.Request) *rest.Error {
	return &rest.Error{
		Title:      "Resource not found",
		ID:         "not_found",
		Instance:   r.URL.Path,
		StatusCode: 404,
	}
}

func new401(r *http.Request) *rest.Error {
	return &rest.Error{
		Title:      "Unauthorized. Please include your API key",
		ID:         "unauthorized",
		Instance:   r.URL.Path,
		StatusCode: 401,
	}
}

// createEmptyErr returns a rest.Error indicating the request omits a required
// field.
func createEmptyErr(field string, path string) *rest.Error {
	return &rest.Error{
		Title:    fmt.Sprintf("Missing required field: %s", field),
		Detail:   fmt.Sprintf("Please include a %s in the request body", field),
		ID:       "missing_parameter",
		Instance: path,
	}
}

func notFound(w http.ResponseWriter, err *rest.Error) {
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(err)
}

func badRequest(w http.ResponseWriter, r *http.Request, err *rest.Error) {
	log.Printf("400: %s %s: %s", r.Method, r.URL.Path, err.Error())
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(err)
}

func authenticate(w http.ResponseWriter, err *rest.Error) {
	w.Header().Set("WWW-Authenticate", "X-API-Key")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(err)
}

func forbidden(w http.ResponseWriter, err *rest.Error) {
	w.WriteHeader(http.StatusForbidden)
	json.NewEncoder(w).Encode(err)
}

var serverError = rest.Error{
	StatusCode: http.StatusInternalServerError,
	ID:         "server_error",
	Title:      "Unexpected server error. Please try again",
}

// writeServerError logs the provided error, and returns a generic server error
// message to the client.
func writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("500: %s %s: %s", r.Method, r.URL.Path, err)
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(serverError)
}

// writeGatewayError reports a provider failure the front door is proxying
// through, matching the shape the old Flask backend returned.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("502: %s %s: %s", r.Method, r.URL.Path, err)
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(&rest.Error{
		Title:      "Error communicating with the video provider",
		ID:         "network_error",
		Detail:     err.Error(),
		Instance:   r.URL.Path,
		StatusCode: http.StatusBadGateway,
	})
}
