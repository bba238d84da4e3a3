package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(server *httptest.Server) *Client {
	return &Client{httpClient: server.Client(), baseURL: server.URL}
}

func TestSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req graphQLRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		assert.Equal(t, "Some Show", req.Variables["searchTitle"])
		assert.Contains(t, req.Query, "Media(type: ANIME, search: $searchTitle)")
		w.Write([]byte(`{"data":{"Media":{
			"title":{"romaji":"Some Show","english":"Some Show: Second Season","native":null},
			"coverImage":{"extraLarge":"https://img.anili.st/cover.jpg","large":"l","medium":"m"}}}}`))
	}))
	defer server.Close()

	media, err := newTestClient(server).Search(context.Background(), "Some Show")
	require.NoError(t, err)
	assert.Equal(t, []string{"Some Show", "Some Show: Second Season"}, media.Titles)
	assert.Equal(t, "https://img.anili.st/cover.jpg", media.CoverURL)
}

func TestSearch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"message":"Not Found.","status":404}],"data":{"Media":null}}`))
	}))
	defer server.Close()

	media, err := newTestClient(server).Search(context.Background(), "Nothing")
	require.NoError(t, err, "missing media is not an error")
	assert.Empty(t, media.Titles)
	assert.Empty(t, media.CoverURL)
}

func TestSearch_GraphQLError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"errors":[{"message":"Too Many Requests.","status":429}],"data":null}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "Some Show")
	assert.ErrorContains(t, err, "Too Many Requests")
}

func TestSearch_HTTPErrorWithoutJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server).Search(context.Background(), "Some Show")
	assert.ErrorContains(t, err, "502")
}
