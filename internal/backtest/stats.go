package backtest

// CalculateStats computes performance statistics from the ledger
func CalculateStats(initial float64, trades []TradeRecord) Stats {
	var s Stats
	if len(trades) == 0 {
		return s
	}

	balances := make([]float64, 0, len(trades)+1)
	balances = append(balances, initial)

	for _, t := range trades {
		s.TotalCommission += t.Commission
		balances = append(balances, t.Balance)
		if t.Action != ActionClose {
			continue
		}
		s.ClosedTrades++
		s.TotalGrossPL += t.GrossPL
		if t.IsWin() {
			s.WinningTrades++
		} else {
			s.LosingTrades++
		}
	}

	if s.ClosedTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.ClosedTrades) * 100
	}
	s.MaxDrawdown = calculateMaxDrawdown(balances) * 100

	return s
}

// calculateMaxDrawdown finds the largest peak-to-trough decline of a balance curve
func calculateMaxDrawdown(balances []float64) float64 {
	var maxDD float64
	var peak float64

	for _, b := range balances {
		if b > peak {
			peak = b
		}
		if peak > 0 {
			dd := (peak - b) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}
