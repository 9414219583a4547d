package httpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_GetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/summary" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"episodes":3}`))
	}))
	defer srv.Close()

	var out struct {
		Episodes int `json:"episodes"`
	}
	if err := New(srv.URL+"/").GetJSON(context.Background(), "/api/summary", &out); err != nil {
		t.Fatal(err)
	}
	if out.Episodes != 3 {
		t.Errorf("episodes = %d", out.Episodes)
	}
}

func TestClient_PostJSON(t *testing.T) {
	var got map[string]bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := New(srv.URL).PostJSON(context.Background(), "/api/bot", map[string]bool{"armed": true}, nil); err != nil {
		t.Fatal(err)
	}
	if !got["armed"] {
		t.Errorf("body = %v", got)
	}
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"not available"}`))
	}))
	defer srv.Close()

	err := New(srv.URL).GetJSON(context.Background(), "/api/episodes", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want StatusError", err)
	}
	if se.Code != http.StatusServiceUnavailable || se.Message != "not available" {
		t.Errorf("got %+v", se)
	}
}
