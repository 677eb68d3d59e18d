package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/minhvq/gapspike/internal/engine"
	"github.com/minhvq/gapspike/internal/models"
)

func newTestServer() *Server {
	return NewServer(engine.New(engine.DefaultConfig(), nil, nil))
}

func postBatch(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/receive_data", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// gapBatch carries one EURUSD tick whose open gaps 0.48% above the previous
// close. Candle times are omitted, as feeder terminals do.
func gapBatch(ts int64) string {
	return fmt.Sprintf(`{
		"timestamp": %d,
		"broker": "BrokerA",
		"data": [{
			"symbol": "EURUSD",
			"bid": 1.0900,
			"ask": 1.0901,
			"digits": 5,
			"points": 0.00001,
			"isOpen": true,
			"trademode": "FULL",
			"group": "Forex\\Majors",
			"prev_ohlc": {"open": 1.0845, "high": 1.0850, "low": 1.0840, "close": 1.0848},
			"current_ohlc": {"open": 1.0900, "high": 1.0905, "low": 1.0895, "close": 1.0900}
		}]
	}`, ts)
}

func TestReceiveDataDetectsGap(t *testing.T) {
	s := newTestServer()
	ts := time.Now().Unix()

	rec := postBatch(t, s, gapBatch(ts))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var ack struct {
		Status   string `json:"status"`
		Received int    `json:"received"`
		Skipped  int    `json:"skipped"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("bad ack: %v", err)
	}
	if ack.Status != "ok" || ack.Received != 1 || ack.Skipped != 0 {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	rec = get(t, s, "/api/results/percent")
	if rec.Code != http.StatusOK {
		t.Fatalf("results status = %d", rec.Code)
	}
	var results map[string]models.DetectionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("bad results payload: %v", err)
	}
	r, ok := results["BrokerA_EURUSD"]
	if !ok {
		t.Fatalf("expected result for BrokerA_EURUSD, got %v", results)
	}
	if !r.Gap.Detected || r.Gap.Direction != models.DirectionUp {
		t.Errorf("expected upward gap detection, got %+v", r.Gap)
	}
	if r.Gap.Reason == models.ReasonStaleCandle {
		t.Error("candle times without a wire value must default to the batch timestamp")
	}

	rec = get(t, s, "/api/alerts")
	var board map[string]models.AlertEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("bad alert payload: %v", err)
	}
	if _, ok := board["BrokerA_EURUSD"]; !ok {
		t.Errorf("expected alert board entry, got %v", board)
	}
}

func TestReceiveDataSkipsInvalidTicks(t *testing.T) {
	s := newTestServer()
	body := fmt.Sprintf(`{
		"timestamp": %d,
		"broker": "BrokerA",
		"data": [
			{"symbol": "", "bid": 1.1, "ask": 1.1001, "trademode": "FULL"},
			{"symbol": "GBPUSD", "bid": 1.25, "ask": 1.2501, "trademode": "FULL"}
		]
	}`, time.Now().Unix())

	rec := postBatch(t, s, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var ack struct {
		Received int      `json:"received"`
		Skipped  int      `json:"skipped"`
		Warnings []string `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatal(err)
	}
	if ack.Received != 2 || ack.Skipped != 1 {
		t.Errorf("unexpected ack: %+v", ack)
	}
	if len(ack.Warnings) != 1 {
		t.Errorf("expected one warning message, got %v", ack.Warnings)
	}
}

func TestReceiveDataRejectsBadRequests(t *testing.T) {
	s := newTestServer()
	ts := time.Now().Unix()

	tests := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"timestamp": `},
		{"missing broker", fmt.Sprintf(`{"timestamp": %d, "data": []}`, ts)},
		{"missing timestamp", `{"broker": "BrokerA", "data": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postBatch(t, s, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestReceiveDataMethodNotAllowed(t *testing.T) {
	s := newTestServer()
	rec := get(t, s, "/api/receive_data")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestBoardEndpointsEmpty(t *testing.T) {
	s := newTestServer()
	for _, path := range []string{
		"/api/results/percent",
		"/api/results/point",
		"/api/alerts",
		"/api/filtered",
		"/api/delays",
	} {
		rec := get(t, s, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: content type = %q", path, ct)
		}
	}
}

func TestFilteredEndpoint(t *testing.T) {
	s := newTestServer()
	body := fmt.Sprintf(`{
		"timestamp": %d,
		"broker": "BrokerA",
		"data": [{"symbol": "BADSYM", "bid": 1.0, "ask": 1.0001, "trademode": "DISABLED"}]
	}`, time.Now().Unix())
	if rec := postBatch(t, s, body); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec := get(t, s, "/api/filtered")
	var filtered map[string]models.FilteredInstrument
	if err := json.Unmarshal(rec.Body.Bytes(), &filtered); err != nil {
		t.Fatal(err)
	}
	fi, ok := filtered["BrokerA_BADSYM"]
	if !ok || fi.TradeMode != models.TradeModeDisabled {
		t.Errorf("unexpected filtered registry: %v", filtered)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer()
	rec := get(t, s, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var payload map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "ok" {
		t.Errorf("unexpected payload: %v", payload)
	}
}
