package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/titlenorm/internal/models"
)

func TestClient_Match(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/match" {
			http.NotFound(w, r)
			return
		}
		var req models.MatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		resp := models.MatchResponse{RunID: "r1"}
		for _, q := range req.Queries {
			resp.Results = append(resp.Results, models.MatchResult{Query: q, Title: strings.ToUpper(q)})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	resp, err := c.Match(context.Background(), &models.MatchRequest{Queries: []string{"a", "b"}, Record: true})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if resp.RunID != "r1" || len(resp.Results) != 2 || resp.Results[1].Title != "B" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_MatchFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		b, _ := io.ReadAll(file)
		resp := models.MatchResponse{}
		if r.FormValue("record") == "true" {
			resp.RunID = "recorded"
		}
		resp.Results = []models.MatchResult{{Query: header.Filename, Title: string(b)}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "titles.txt")
	if err := os.WriteFile(path, []byte("Nurse"), 0644); err != nil {
		t.Fatal(err)
	}
	resp, err := NewClient(srv.URL).MatchFile(context.Background(), path, true)
	if err != nil {
		t.Fatalf("MatchFile: %v", err)
	}
	if resp.RunID != "recorded" || resp.Results[0].Query != "titles.txt" || resp.Results[0].Title != "Nurse" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_LookupEscapesTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title := r.URL.Query().Get("title")
		json.NewEncoder(w).Encode(models.LookupResponse{Title: title, Classification: title})
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL).Lookup(context.Background(), "R&D Engineer")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "R&D Engineer" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(`{"error":"history not enabled"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Runs(context.Background(), 0, 10)
	if err == nil || !strings.Contains(err.Error(), "501") || !strings.Contains(err.Error(), "history not enabled") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_ReloadForce(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(models.IndexStatus{Loaded: true, Documents: 3})
	}))
	defer srv.Close()

	st, err := NewClient(srv.URL).Reload(context.Background(), true)
	if err != nil {
		t.Fatal(err)
	}
	if gotQuery != "force=true" || !st.Loaded || st.Documents != 3 {
		t.Errorf("query=%q status=%+v", gotQuery, st)
	}
}
