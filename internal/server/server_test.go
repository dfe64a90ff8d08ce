package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ibeckermayer/visitbatch/internal/config"
	"github.com/ibeckermayer/visitbatch/internal/store"
)

// slowTrigger starts a batch that only finishes when release is closed.
type slowTrigger struct {
	mu        sync.Mutex
	triggered int
	release   chan struct{}
	finished  chan struct{}
	err       error
	batches   []store.Batch
	histErr   error
	lastLimit int
	size      int
}

func newSlowTrigger() *slowTrigger {
	return &slowTrigger{release: make(chan struct{}), finished: make(chan struct{}, 16), size: 50}
}

func (t *slowTrigger) TriggerBatch() (string, int, error) {
	if t.err != nil {
		return "", 0, t.err
	}
	t.mu.Lock()
	t.triggered++
	t.mu.Unlock()
	go func() {
		<-t.release
		t.finished <- struct{}{}
	}()
	return "id", t.size, nil
}

func (t *slowTrigger) RecentBatches(ctx context.Context, limit int) ([]store.Batch, error) {
	t.lastLimit = limit
	return t.batches, t.histErr
}

func TestVisitRespondsBeforeBatchFinishes(t *testing.T) {
	trig := newSlowTrigger()
	srv := New(trig)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visit", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "Batch of 50 visits scheduled" {
		t.Errorf("body = %q", got)
	}
	select {
	case <-trig.finished:
		t.Fatal("batch finished before response was checked")
	default:
	}

	close(trig.release)
	select {
	case <-trig.finished:
	case <-time.After(2 * time.Second):
		t.Fatal("batch never finished")
	}
}

func TestVisitConcurrentRequests(t *testing.T) {
	trig := newSlowTrigger()
	ts := httptest.NewServer(New(trig))
	defer ts.Close()
	defer close(trig.release)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(ts.URL + "/visit")
			if err != nil {
				t.Error(err)
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	trig.mu.Lock()
	defer trig.mu.Unlock()
	if trig.triggered != 5 {
		t.Errorf("triggered = %d, want 5", trig.triggered)
	}
}

func TestVisitRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		err    error
		want   int
	}{
		{"post not allowed", http.MethodPost, "/visit", nil, http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/nope", nil, http.StatusNotFound},
		{"trigger error", http.MethodGet, "/visit", errors.New("target.url is not set"), http.StatusServiceUnavailable},
		{"health", http.MethodGet, "/health", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := newSlowTrigger()
			trig.err = tt.err
			rec := httptest.NewRecorder()
			New(trig).ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBatches(t *testing.T) {
	trig := newSlowTrigger()
	trig.batches = []store.Batch{{ID: "b1", URL: "http://x/", Size: 50, Status: store.StatusDone, Visits: 50}}

	rec := httptest.NewRecorder()
	New(trig).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batches?limit=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if trig.lastLimit != 3 {
		t.Errorf("limit = %d, want 3", trig.lastLimit)
	}

	var body struct {
		Batches []store.Batch `json:"batches"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Batches) != 1 || body.Batches[0].ID != "b1" {
		t.Errorf("batches = %+v", body.Batches)
	}
}

func TestBatchesErrors(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		histErr error
		want    int
	}{
		{"bad limit", "?limit=x", nil, http.StatusBadRequest},
		{"zero limit", "?limit=0", nil, http.StatusBadRequest},
		{"no store", "", store.ErrNoHistory, http.StatusNotFound},
		{"db error", "", errors.New("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := newSlowTrigger()
			trig.histErr = tt.histErr
			rec := httptest.NewRecorder()
			New(trig).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/batches"+tt.query, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestVisitReportsScheduledSize(t *testing.T) {
	trig := newSlowTrigger()
	trig.size = 7
	defer close(trig.release)

	rec := httptest.NewRecorder()
	New(trig).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visit", nil))
	if got := rec.Body.String(); got != "Batch of 7 visits scheduled" {
		t.Errorf("body = %q", got)
	}
}

func TestVisitWithoutTargetExplainsFix(t *testing.T) {
	trig := newSlowTrigger()
	trig.err = config.ErrNoTarget

	rec := httptest.NewRecorder()
	New(trig).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/visit", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "VISITBATCH_TARGET_URL") {
		t.Errorf("body = %q, want a hint about VISITBATCH_TARGET_URL", rec.Body.String())
	}
}
