package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hybridguard/filterengine/models"
	"github.com/hybridguard/filterengine/navguard"
)

func TestDeliverSignsBodyWhenSecretPresent(t *testing.T) {
	var gotSig, gotUA string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-FilterEngine-Signature")
		gotUA = r.Header.Get("User-Agent")
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	event := NewStatsSnapshotEvent(models.NavigationStats{AllowedCount: 3}, nil, time.Unix(100, 0))
	if err := Deliver(context.Background(), srv.URL, "s3cr3t", event); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotSig == "" {
		t.Error("expected a signature header when secret is set")
	}
	if gotUA != "FilterEngine-Webhook/1.0" {
		t.Errorf("unexpected user agent: %s", gotUA)
	}
	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("decode delivered body: %v", err)
	}
	if decoded.Type != EventStatsSnapshot {
		t.Errorf("expected type %s, got %s", EventStatsSnapshot, decoded.Type)
	}
}

func TestDeliverReturnsErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	event := NewGuardianErrorEvent(navguard.GuardianError{Message: "denied", URL: "https://evil.example"}, time.Unix(0, 0))
	if err := Deliver(context.Background(), srv.URL, "", event); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
