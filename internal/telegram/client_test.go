package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/minhvq/gapspike/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"EURUSD.r: gap up", "EURUSD\\.r: gap up"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#US30", "\\#US30"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// NewClient with non-numeric chatID should return an error
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

func TestFormatMessageGroupsByVenue(t *testing.T) {
	c := &Client{}
	results := []models.DetectionResult{
		{
			Venue:     "BrokerA",
			Symbol:    "EURUSD",
			Mode:      models.ModePercent,
			Gap:       models.Classification{Detected: true, Direction: models.DirectionUp, Magnitude: 0.52, Threshold: 0.3, Reason: models.ReasonDetected},
			Detected:  true,
			Timestamp: 1_700_000_000,
		},
		{
			Venue:     "BrokerB",
			Symbol:    "XAUUSDm",
			Mode:      models.ModePercent,
			Spike:     models.Classification{Detected: true, Direction: models.DirectionDown, Magnitude: 1.8, Threshold: 1.3, Reason: models.ReasonDetected},
			Detected:  true,
			Timestamp: 1_700_000_000,
		},
	}

	msg := c.formatMessage(results)

	if !strings.Contains(msg, "BrokerA") || !strings.Contains(msg, "BrokerB") {
		t.Errorf("expected both venues in message: %q", msg)
	}
	if !strings.Contains(msg, "EURUSD") || !strings.Contains(msg, "XAUUSDm") {
		t.Errorf("expected both symbols in message: %q", msg)
	}
	if !strings.Contains(msg, "📈") {
		t.Errorf("expected up marker for gap: %q", msg)
	}
	if !strings.Contains(msg, "📉") {
		t.Errorf("expected down marker for spike: %q", msg)
	}
	if !strings.Contains(msg, "2023\\-11\\-14") {
		t.Errorf("expected escaped detection date: %q", msg)
	}
}
