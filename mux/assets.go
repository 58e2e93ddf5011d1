package mux

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
)

// RemoteStatus is the provider's view of an asset.
type RemoteStatus string

const StatusPreparing = RemoteStatus("preparing")
const StatusReady = RemoteStatus("ready")
const StatusErrored = RemoteStatus("errored")

// An Asset is the normalized shape of a provider asset, however it was
// obtained. PlaybackIDs holds only public playback ids, in the order the
// provider returned them.
type Asset struct {
	ID          string
	Status      RemoteStatus
	PlaybackIDs []string

	// ErrorDetail is the provider's explanation when Status is errored.
	ErrorDetail string

	// RawResponse is the body the provider sent, for diagnostics.
	RawResponse json.RawMessage
}

type AssetService struct {
	Client *Client
}

// wire shapes; nothing outside this file should see them.

type assetEnvelope struct {
	Data wireAsset `json:"data"`
}

type wireAsset struct {
	ID          string           `json:"id"`
	Status      string           `json:"status"`
	PlaybackIDs []wirePlaybackID `json:"playback_ids"`
	Errors      *wireErrors      `json:"errors"`
}

type wirePlaybackID struct {
	ID     string `json:"id"`
	Policy string `json:"policy"`
}

type wireErrors struct {
	Type     string   `json:"type"`
	Messages []string `json:"messages"`
}

type errorEnvelope struct {
	Error wireErrors `json:"error"`
}

// Create asks the provider to ingest the media at sourceURL. The title, if
// non-empty, is stored as passthrough metadata. On success the returned
// Asset has a non-empty ID; it may already carry public playback ids.
func (s *AssetService) Create(sourceURL string, title string) (*Asset, error) {
	payload := map[string]interface{}{"input": sourceURL}
	if title != "" {
		payload["passthrough"] = title
	}
	raw, err := s.do("POST", "/assets", payload, "create asset")
	if err != nil {
		return nil, err
	}
	asset, err := normalize(raw)
	if err != nil {
		return nil, &UnavailableError{Op: "create asset", Err: err}
	}
	if asset.ID == "" {
		return nil, &UnavailableError{Op: "create asset", Err: errors.New("response contained no asset id")}
	}
	return asset, nil
}

// CreatePlaybackID grants the asset a public playback id and returns it.
func (s *AssetService) CreatePlaybackID(assetID string) (string, error) {
	payload := map[string]interface{}{"policy": "public"}
	path := fmt.Sprintf("/assets/%s/playback-ids", assetID)
	raw, err := s.do("POST", path, payload, "create playback id")
	if err != nil {
		return "", err
	}
	var env struct {
		Data wirePlaybackID `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &UnavailableError{Op: "create playback id", Err: err}
	}
	if env.Data.ID == "" {
		return "", &UnavailableError{Op: "create playback id", Err: errors.New("response contained no playback id")}
	}
	return env.Data.ID, nil
}

// Get fetches the asset's current status.
func (s *AssetService) Get(assetID string) (*Asset, error) {
	raw, err := s.do("GET", "/assets/"+assetID, nil, "get asset")
	if err != nil {
		return nil, err
	}
	asset, err := normalize(raw)
	if err != nil {
		return nil, &UnavailableError{Op: "get asset", Err: err}
	}
	return asset, nil
}

// List returns the provider's raw asset-list body. Used only by the front
// door's passthrough listing endpoint, which reshapes nothing.
func (s *AssetService) List(limit, page int) (json.RawMessage, error) {
	path := fmt.Sprintf("/assets?limit=%d&page=%d", limit, page)
	return s.do("GET", path, nil, "list assets")
}

// Delete removes the asset from the provider.
func (s *AssetService) Delete(assetID string) error {
	_, err := s.do("DELETE", "/assets/"+assetID, nil, "delete asset")
	return err
}

// do runs one provider call and classifies the outcome. Network failures,
// timeouts, 429s and 5xx responses are UnavailableError (retryable); other
// 4xx responses are RejectedError (terminal). The raw body is returned for
// 2xx responses.
func (s *AssetService) do(method, path string, payload interface{}, op string) (json.RawMessage, error) {
	var body *bytes.Buffer
	if payload != nil {
		body = new(bytes.Buffer)
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			return nil, err
		}
	}
	var req *http.Request
	var err error
	if body == nil {
		req, err = s.Client.NewRequest(method, path, nil)
	} else {
		req, err = s.Client.NewRequest(method, path, body)
	}
	if err != nil {
		return nil, err
	}
	res, err := s.Client.Client.Client.Do(req)
	if err != nil {
		return nil, &UnavailableError{Op: op, Err: err}
	}
	defer res.Body.Close()
	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, &UnavailableError{Op: op, Err: err}
	}
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return nil, &UnavailableError{
			Op:  op,
			Err: fmt.Errorf("provider returned %d: %s", res.StatusCode, snippet(raw)),
		}
	}
	if res.StatusCode >= 400 {
		rerr := &RejectedError{Op: op, StatusCode: res.StatusCode}
		var env errorEnvelope
		if err := json.Unmarshal(raw, &env); err == nil && len(env.Error.Messages) > 0 {
			rerr.Messages = env.Error.Messages
		} else {
			rerr.Messages = []string{snippet(raw)}
		}
		return nil, rerr
	}
	return json.RawMessage(raw), nil
}

// normalize converts a {"data": {...}} asset body into an Asset.
func normalize(raw json.RawMessage) (*Asset, error) {
	var env assetEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	asset := &Asset{
		ID:          env.Data.ID,
		Status:      RemoteStatus(env.Data.Status),
		RawResponse: raw,
	}
	for _, p := range env.Data.PlaybackIDs {
		if p.Policy == "public" {
			asset.PlaybackIDs = append(asset.PlaybackIDs, p.ID)
		}
	}
	if env.Data.Errors != nil && len(env.Data.Errors.Messages) > 0 {
		asset.ErrorDetail = env.Data.Errors.Messages[0]
	}
	return asset, nil
}

func snippet(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max])
	}
	return string(raw)
}
