package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{APIKey: "key", BaseURL: server.URL, Logger: zerolog.Nop()})
}

func TestAlternativeTitles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tv/71446/alternative_titles" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "key" {
			t.Error("api_key query parameter missing")
		}
		w.Write([]byte(`{"results":[{"title":"La Casa de Papel"},{"title":""},{"title":"Haus des Geldes"}]}`))
	})

	titles, err := client.AlternativeTitles(context.Background(), 71446)
	if err != nil {
		t.Fatalf("AlternativeTitles failed: %v", err)
	}
	if len(titles) != 2 {
		t.Fatalf("got %d titles, want 2 (empty entries skipped)", len(titles))
	}
	if titles[0] != "La Casa de Papel" || titles[1] != "Haus des Geldes" {
		t.Errorf("titles = %v", titles)
	}
}

func TestAlternativeTitlesNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"The resource you requested could not be found."}`))
	})

	_, err := client.AlternativeTitles(context.Background(), 1)
	if !errors.Is(err, ErrSeriesNotFound) {
		t.Errorf("err = %v, want ErrSeriesNotFound", err)
	}
}

func TestAlternativeTitlesUnconfigured(t *testing.T) {
	client := NewClient(ClientConfig{Logger: zerolog.Nop()})
	if client.IsConfigured() {
		t.Error("client without key reports configured")
	}
	if _, err := client.AlternativeTitles(context.Background(), 1); !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("err = %v, want ErrAPIKeyMissing", err)
	}
}
