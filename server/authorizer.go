package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"os"

	"github.com/avinash9807/Url-uploader-with-online-player/rest"
)

// DefaultAuthorizer checks the X-API-Key header against the API_KEY
// environment variable. If API_KEY is unset, every request is allowed; this
// matches the behavior the frontend deploys have always relied on.
var DefaultAuthorizer = NewSharedSecretAuthorizer(os.Getenv("API_KEY"))

// The Authorizer interface can be used to authorize a given request to
// access the API.
type Authorizer interface {
	// Authorize returns nil if the key is allowed to access the API, and a
	// rest.Error otherwise. The rest.Error will be returned as the body of
	// a 401 HTTP response.
	Authorize(key string) *rest.Error
}

// SharedSecretAuthorizer compares the presented API key to a single shared
// secret.
type SharedSecretAuthorizer struct {
	secret string
}

// NewSharedSecretAuthorizer creates a SharedSecretAuthorizer ready for use.
// An empty secret disables authentication.
func NewSharedSecretAuthorizer(secret string) *SharedSecretAuthorizer {
	return &SharedSecretAuthorizer{secret: secret}
}

// Authorize returns nil if key matches the configured secret, and a
// rest.Error otherwise.
func (ssa *SharedSecretAuthorizer) Authorize(key string) *rest.Error {
	if ssa.secret == "" {
		return nil
	}
	if key == "" {
		return &rest.Error{
			Title: "No authentication provided",
			ID:    "missing_authentication",
		}
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(ssa.secret)) != 1 {
		return &rest.Error{
			Title: "Missing or invalid API key",
			ID:    "forbidden",
		}
	}
	return nil
}

// forbiddenAuthorizer always denies access.
type forbiddenAuthorizer struct {
	Key string
}

func (f *forbiddenAuthorizer) Authorize(key string) *rest.Error {
	f.Key = key
	return &rest.Error{
		Title: "Invalid Access Token",
		ID:    "forbidden_api",
	}
}

// Use this if you need to bypass the API authorization scheme.
type UnsafeBypassAuthorizer struct{}

func (u *UnsafeBypassAuthorizer) Authorize(key string) *rest.Error {
	return nil
}

// handleAuthorizeError writes a non-200 authorization failure (err) to the
// response.
func handleAuthorizeError(w http.ResponseWriter, r *http.Request, err error) {
	switch err := err.(type) {
	case *rest.Error:
		if err.ID == "forbidden_api" || err.ID == "missing_authentication" {
			err.StatusCode = 401
			authenticate(w, err)
			return
		}
		if err.ID == "forbidden" {
			forbidden(w, err)
			return
		}
		if err.StatusCode == http.StatusInternalServerError || err.ID == "server_error" {
			writeServerError(w, r, err)
			return
		}
		w.WriteHeader(err.StatusCode)
		json.NewEncoder(w).Encode(err)
		return
	default:
		writeServerError(w, r, err)
	}
}
