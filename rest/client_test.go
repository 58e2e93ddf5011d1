package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/avinash9807/Url-uploader-with-online-player/test"
)

func TestPost(t *testing.T) {
	t.Parallel()
	var user, pass string
	var ok bool
	var requestUrl *url.URL
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		requestUrl = r.URL
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("{}"))
	}))
	defer s.Close()
	client := NewClient("foo", "bar", s.URL)
	req, err := client.NewRequest("POST", "/", nil)
	test.AssertNotError(t, err, "")
	err = client.Do(req, &struct{}{})
	test.AssertNotError(t, err, "")
	test.Assert(t, ok, "expected basic auth")
	test.AssertEquals(t, user, "foo")
	test.AssertEquals(t, pass, "bar")
	test.AssertEquals(t, requestUrl.Path, "/")
}

func TestAPIKeyClientSendsHeader(t *testing.T) {
	t.Parallel()
	var gotKey string
	var hasBasicAuth bool
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		_, _, hasBasicAuth = r.BasicAuth()
		w.Write([]byte("{}"))
	}))
	defer s.Close()
	client := NewAPIKeyClient("hush", s.URL)
	req, err := client.NewRequest("POST", "/", nil)
	test.AssertNotError(t, err, "")
	err = client.Do(req, &struct{}{})
	test.AssertNotError(t, err, "")
	test.AssertEquals(t, gotKey, "hush")
	test.Assert(t, !hasBasicAuth, "API key client should not send basic auth")
}

func TestPostError(t *testing.T) {
	t.Parallel()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(&Error{
			Title: "bad request",
			ID:    "something_bad",
		})
	}))
	defer s.Close()
	client := NewClient("foo", "bar", s.URL)
	req, err := client.NewRequest("POST", "/", nil)
	test.AssertNotError(t, err, "")
	err = client.Do(req, &struct{}{})
	test.AssertError(t, err, "")
	test.AssertEquals(t, err.Error(), "bad request")
}
