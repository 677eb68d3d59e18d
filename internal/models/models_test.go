package models

import (
	"math"
	"strings"
	"testing"
)

func TestParseTradeMode(t *testing.T) {
	tests := []struct {
		input string
		want  TradeMode
	}{
		{"FULL", TradeModeFull},
		{"full", TradeModeFull},
		{" longonly ", TradeModeLongOnly},
		{"SHORTONLY", TradeModeShortOnly},
		{"CLOSEONLY", TradeModeCloseOnly},
		{"DISABLED", TradeModeDisabled},
		{"", TradeModeUnknown},
		{"garbage", TradeModeUnknown},
	}
	for _, tt := range tests {
		if got := ParseTradeMode(tt.input); got != tt.want {
			t.Errorf("ParseTradeMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestTradeModeTradable(t *testing.T) {
	tradable := []TradeMode{TradeModeFull, TradeModeLongOnly, TradeModeShortOnly}
	for _, m := range tradable {
		if !m.Tradable() {
			t.Errorf("%s should be tradable", m)
		}
	}
	excluded := []TradeMode{TradeModeCloseOnly, TradeModeDisabled, TradeModeUnknown}
	for _, m := range excluded {
		if m.Tradable() {
			t.Errorf("%s should not be tradable", m)
		}
	}
}

func TestCandleDayIndex(t *testing.T) {
	midnight := int64(86400 * 19000)
	tests := []struct {
		name string
		time int64
		want int64
	}{
		{"midnight", midnight, 19000},
		{"just before next midnight", midnight + 86399, 19000},
		{"next midnight", midnight + 86400, 19001},
	}
	for _, tt := range tests {
		c := Candle{Time: tt.time}
		if got := c.DayIndex(); got != tt.want {
			t.Errorf("%s: DayIndex() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSessionScheduleOpenTime(t *testing.T) {
	s := SessionSchedule{
		CurrentDay: "Monday",
		Days: []DaySessions{
			{Day: "Monday", Sessions: []Session{{Start: "09:30", End: "16:00"}, {Start: "17:00", End: "23:00"}}},
			{Day: "Tuesday", Sessions: nil},
			{Day: "Wednesday", Sessions: []Session{{Start: "bogus", End: "16:00"}}},
		},
	}

	if min, ok := s.OpenTime("Monday"); !ok || min != 9*60+30 {
		t.Errorf("OpenTime(Monday) = %d, %v; want 570, true", min, ok)
	}
	if min, ok := s.OpenTime("monday"); !ok || min != 570 {
		t.Errorf("OpenTime should be case-insensitive, got %d, %v", min, ok)
	}
	if _, ok := s.OpenTime("Tuesday"); ok {
		t.Error("day without sessions should not report an open time")
	}
	if _, ok := s.OpenTime("Wednesday"); ok {
		t.Error("malformed start string should not report an open time")
	}
	if _, ok := s.OpenTime("Friday"); ok {
		t.Error("unlisted day should not report an open time")
	}
}

func TestInstrumentKey(t *testing.T) {
	if got := InstrumentKey("ICMarkets-Live", "EURUSD"); got != "ICMarkets-Live_EURUSD" {
		t.Errorf("InstrumentKey = %q", got)
	}
}

func TestTickSnapshotValidate(t *testing.T) {
	valid := TickSnapshot{Venue: "BrokerA", Symbol: "EURUSD", Bid: 1.1, Ask: 1.1001, PointValue: 0.0001}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid snapshot rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*TickSnapshot)
	}{
		{"empty symbol", func(s *TickSnapshot) { s.Symbol = "" }},
		{"empty venue", func(s *TickSnapshot) { s.Venue = "" }},
		{"NaN bid", func(s *TickSnapshot) { s.Bid = math.NaN() }},
		{"infinite ask", func(s *TickSnapshot) { s.Ask = math.Inf(1) }},
		{"NaN point value", func(s *TickSnapshot) { s.PointValue = math.NaN() }},
		{"negative bid", func(s *TickSnapshot) { s.Bid = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDetectionResultSummary(t *testing.T) {
	r := DetectionResult{
		Venue:        "BrokerA",
		Symbol:       "XAUUSDm",
		Mode:         ModePercent,
		MatchedAlias: "GOLD",
		Gap:          Classification{Detected: true, Direction: DirectionUp, Magnitude: 0.52, Threshold: 0.3, Reason: ReasonDetected},
	}
	s := r.Summary()
	if !strings.Contains(s, "XAUUSDm") || !strings.Contains(s, "GOLD") {
		t.Errorf("summary should name symbol and matched alias: %q", s)
	}
	if !strings.Contains(s, "gap up") {
		t.Errorf("summary should describe the gap: %q", s)
	}

	r.Mode = ModePoint
	if s := r.Summary(); !strings.Contains(s, "pts") {
		t.Errorf("point summary should use points unit: %q", s)
	}
}

func TestAlertEntryActive(t *testing.T) {
	e := AlertEntry{}
	if !e.Active() {
		t.Error("entry without grace start should be active")
	}
	now := e.LastDetected
	e.GraceStart = &now
	if e.Active() {
		t.Error("entry in grace should not be active")
	}
}
