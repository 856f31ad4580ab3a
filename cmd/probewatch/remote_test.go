package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muurk/probewatch/internal/web"
)

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, web.Status{Mode: "connected", Link: "connected", SSID: "lab", Address: "10.0.0.7", Entries: 5})

	out := buf.String()
	for _, want := range []string{"connected", "lab", "10.0.0.7", "Entries:    5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "As of") {
		t.Errorf("zero time should be omitted:\n%s", out)
	}
}

func TestFetchRemoteTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sampleEntries())
	}))
	defer srv.Close()

	entries, err := fetchRemoteTable(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetchRemoteTable() error = %v", err)
	}
	if len(entries) != 2 || entries[0].SSID != "lab" {
		t.Errorf("fetchRemoteTable() = %+v", entries)
	}
}

func TestPrintSensorSummary_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	printSensorSummary(context.Background(), &buf, srv.URL)
	if !strings.Contains(buf.String(), "HTTP 404") {
		t.Errorf("output = %q, want HTTP 404 message", buf.String())
	}
}
