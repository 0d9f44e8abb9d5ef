package backtest

import (
	"math"
	"testing"
)

func TestCalculateStats_Empty(t *testing.T) {
	stats := CalculateStats(1000, nil)
	if stats.ClosedTrades != 0 || stats.MaxDrawdown != 0 {
		t.Errorf("expected zero stats for empty ledger, got %+v", stats)
	}
}

func TestCalculateStats_WinRate(t *testing.T) {
	trades := []TradeRecord{
		{Action: ActionOpen, Balance: 990, Commission: 10},
		{Action: ActionClose, PLPercent: 0.10, GrossPL: 99, Balance: 1080, Commission: 9}, // win
		{Action: ActionOpen, Balance: 1070, Commission: 10},
		{Action: ActionClose, PLPercent: 0.05, GrossPL: 53, Balance: 1115, Commission: 8}, // win
		{Action: ActionOpen, Balance: 1105, Commission: 10},
		{Action: ActionClose, PLPercent: -0.03, GrossPL: -33, Balance: 1065, Commission: 7}, // loss
		{Action: ActionOpen, Balance: 1055, Commission: 10},
		{Action: ActionClose, PLPercent: 0.02, GrossPL: 21, Balance: 1070, Commission: 6}, // win
	}

	stats := CalculateStats(1000, trades)

	if stats.ClosedTrades != 4 {
		t.Errorf("ClosedTrades = %d, want 4", stats.ClosedTrades)
	}
	if stats.WinningTrades != 3 || stats.LosingTrades != 1 {
		t.Errorf("wins/losses = %d/%d, want 3/1", stats.WinningTrades, stats.LosingTrades)
	}
	if stats.WinRate != 75 {
		t.Errorf("WinRate = %f, want 75", stats.WinRate)
	}
	if stats.TotalGrossPL != 140 {
		t.Errorf("TotalGrossPL = %f, want 140", stats.TotalGrossPL)
	}
	if stats.TotalCommission != 70 {
		t.Errorf("TotalCommission = %f, want 70", stats.TotalCommission)
	}
}

func TestCalculateStats_IgnoresOpenEntries(t *testing.T) {
	trades := []TradeRecord{
		{Action: ActionOpen, Balance: 990},
		{Action: ActionClose, PLPercent: 0.10, Balance: 1080},
		{Action: ActionOpen, Balance: 1070},
	}

	stats := CalculateStats(1000, trades)

	if stats.ClosedTrades != 1 || stats.WinningTrades != 1 {
		t.Errorf("should only count closes, got %+v", stats)
	}
}

func TestCalculateMaxDrawdown(t *testing.T) {
	// Peak at 1155, trough at 924, DD = 20%
	balances := []float64{1000, 1100, 1155, 924, 1016.4}
	dd := calculateMaxDrawdown(balances)

	if math.Abs(dd-0.20) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, expected 0.20", dd)
	}
}

func TestCalculateStats_MaxDrawdownIsPercent(t *testing.T) {
	trades := []TradeRecord{
		{Action: ActionOpen, Balance: 1000},
		{Action: ActionClose, PLPercent: -0.5, Balance: 500},
	}

	stats := CalculateStats(1000, trades)

	if math.Abs(stats.MaxDrawdown-50) > 1e-9 {
		t.Errorf("MaxDrawdown = %f, want 50", stats.MaxDrawdown)
	}
}
