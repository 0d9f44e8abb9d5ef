package indicator

// WMA calculates a linearly Weighted Moving Average.
// The newest price in each window gets weight period, the oldest weight 1.
// Returns slice of length: len(prices) - period + 1
func WMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	denom := float64(period*(period+1)) / 2

	for end := period; end <= len(prices); end++ {
		var sum float64
		window := prices[end-period : end]
		for i, p := range window {
			sum += p * float64(i+1)
		}
		result = append(result, sum/denom)
	}

	return result
}

// Cascade applies WMA repeatedly, feeding each stage's output into the next.
// The result is empty as soon as any stage runs out of data.
func Cascade(prices []float64, periods ...int) []float64 {
	out := prices
	for _, p := range periods {
		out = WMA(out, p)
		if len(out) == 0 {
			return out
		}
	}
	return out
}

// Warmup returns how many leading inputs Cascade consumes before its first output.
func Warmup(periods ...int) int {
	var n int
	for _, p := range periods {
		n += p - 1
	}
	return n
}
