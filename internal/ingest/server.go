// Package ingest exposes the HTTP surface: the tick-batch receive endpoint
// feeder terminals POST to, and the read-only board endpoints dashboards poll.
package ingest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/minhvq/gapspike/internal/engine"
	"github.com/minhvq/gapspike/internal/logger"
	"github.com/minhvq/gapspike/internal/models"
)

const maxBodyBytes = 8 << 20 // feeder batches can carry hundreds of symbols

// TickBatchDTO is the wire shape of one POST from a feeder terminal.
type TickBatchDTO struct {
	Timestamp int64     `json:"timestamp"`
	Broker    string    `json:"broker"`
	Data      []TickDTO `json:"data"`
}

// TickDTO is one instrument's entry inside a batch.
type TickDTO struct {
	Symbol    string                 `json:"symbol"`
	Bid       float64                `json:"bid"`
	Ask       float64                `json:"ask"`
	Digits    int                    `json:"digits"`
	Points    float64                `json:"points"`
	IsOpen    bool                   `json:"isOpen"`
	TradeMode string                 `json:"trademode"`
	Group     string                 `json:"group"`
	PrevOHLC  CandleDTO              `json:"prev_ohlc"`
	CurrOHLC  CandleDTO              `json:"current_ohlc"`
	Sessions  models.SessionSchedule `json:"trade_sessions"`
}

// CandleDTO carries one OHLC bar. Time is optional on the wire; a zero value
// is replaced with the batch timestamp so day-boundary checks see today.
type CandleDTO struct {
	Time  int64   `json:"time,omitempty"`
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

func (c CandleDTO) toModel(batchTime int64) models.Candle {
	t := c.Time
	if t == 0 {
		t = batchTime
	}
	return models.Candle{Time: t, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close}
}

// toSnapshot converts a wire tick into the engine's snapshot form.
func (d *TickDTO) toSnapshot(venue string, batchTime int64) models.TickSnapshot {
	return models.TickSnapshot{
		Venue:      venue,
		Symbol:     d.Symbol,
		Timestamp:  batchTime,
		Bid:        d.Bid,
		Ask:        d.Ask,
		PointValue: d.Points,
		Digits:     d.Digits,
		MarketOpen: d.IsOpen,
		PrevCandle: d.PrevOHLC.toModel(batchTime),
		CurrCandle: d.CurrOHLC.toModel(batchTime),
		Sessions:   d.Sessions,
		GroupPath:  d.Group,
		TradeMode:  models.ParseTradeMode(d.TradeMode),
	}
}

// Server serves the ingest and board endpoints.
type Server struct {
	engine *engine.Engine
	router *mux.Router
}

// NewServer builds the HTTP routing for the given engine.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{engine: eng, router: mux.NewRouter()}

	s.router.HandleFunc("/api/receive_data", s.handleReceiveData).Methods(http.MethodPost)
	s.router.HandleFunc("/api/results/percent", s.handlePercentResults).Methods(http.MethodGet)
	s.router.HandleFunc("/api/results/point", s.handlePointResults).Methods(http.MethodGet)
	s.router.HandleFunc("/api/alerts", s.handleAlerts).Methods(http.MethodGet)
	s.router.HandleFunc("/api/filtered", s.handleFiltered).Methods(http.MethodGet)
	s.router.HandleFunc("/api/delays", s.handleDelays).Methods(http.MethodGet)
	s.router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)

	return s
}

// Handler returns the root http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleReceiveData(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var batch TickBatchDTO
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	if batch.Broker == "" {
		writeError(w, http.StatusBadRequest, "broker must not be empty")
		return
	}
	if batch.Timestamp <= 0 {
		writeError(w, http.StatusBadRequest, "timestamp must be a positive unix time")
		return
	}

	ticks := make([]models.TickSnapshot, 0, len(batch.Data))
	for i := range batch.Data {
		ticks = append(ticks, batch.Data[i].toSnapshot(batch.Broker, batch.Timestamp))
	}

	warnings := s.engine.IngestBatch(batch.Broker, batch.Timestamp, ticks)
	warningMsgs := make([]string, 0, len(warnings))
	for _, warn := range warnings {
		logger.Warn("skipped tick %s/%s: %v", batch.Broker, warn.Symbol, warn.Err)
		warningMsgs = append(warningMsgs, warn.String())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"received": len(batch.Data),
		"skipped":  len(warnings),
		"warnings": warningMsgs,
	})
}

func (s *Server) handlePercentResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.PercentResults())
}

func (s *Server) handlePointResults(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.PointResults())
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.AlertBoard())
}

func (s *Server) handleFiltered(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.FilteredInstruments())
}

func (s *Server) handleDelays(w http.ResponseWriter, _ *http.Request) {
	delays := s.engine.DelayedInstruments()
	out := make([]map[string]any, 0, len(delays))
	for _, d := range delays {
		out = append(out, map[string]any{
			"venue":         d.Venue,
			"symbol":        d.Symbol,
			"last_bid":      d.LastBid,
			"stale_seconds": int64(d.StaleFor / time.Second),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
