// Package mux is a client for the Mux video API, covering the three calls
// the ingest engine needs: create an asset, grant it a public playback ID,
// and fetch its status.
//
// Responses are normalized at this boundary; callers get fixed result
// structs and typed errors, never raw provider JSON (the raw body is carried
// along for diagnostics only).
package mux

import (
	"net/http"
	"time"

	"github.com/avinash9807/Url-uploader-with-online-player/rest"
)

// DefaultBase is the production Mux video API.
const DefaultBase = "https://api.mux.com/video/v1"

const defaultHTTPTimeout = 30 * time.Second

var httpClient = &http.Client{Timeout: defaultHTTPTimeout}

// Client is an API client for the Mux video API, authenticated with a token
// id/secret pair via HTTP basic auth.
type Client struct {
	*rest.Client

	Assets *AssetService
}

// NewClient creates a new Client. If base is empty, DefaultBase is used.
func NewClient(tokenID, tokenSecret, base string) *Client {
	if base == "" {
		base = DefaultBase
	}
	c := &Client{&rest.Client{
		ID:     tokenID,
		Token:  tokenSecret,
		Client: httpClient,
		Base:   base,
	}, nil}
	c.Assets = &AssetService{Client: c}
	return c
}
