package vector

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Equity compounds daily returns into an equity curve starting from 1
func Equity(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}
	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	return floats.CumProd(make([]float64, len(returns)), growth)
}

// ComputeStats derives total return, CAGR, annualized volatility, Sharpe and
// max drawdown from daily returns
func ComputeStats(returns []float64, annualizationDays float64) Stats {
	if len(returns) == 0 {
		return Stats{}
	}
	if annualizationDays <= 0 {
		annualizationDays = 365
	}

	equity := Equity(returns)
	last := equity[len(equity)-1]

	s := Stats{TotalReturn: last - 1}

	years := float64(len(returns)) / annualizationDays
	switch {
	case years <= 0:
	case last <= 0:
		s.CAGR = -1
	default:
		s.CAGR = math.Pow(last, 1/years) - 1
	}

	if len(returns) > 1 {
		mean, std := stat.MeanStdDev(returns, nil)
		s.Volatility = std * math.Sqrt(annualizationDays)
		if std > 0 {
			s.Sharpe = mean / std * math.Sqrt(annualizationDays)
		}
	}

	s.MaxDrawdown = MaxDrawdown(equity)
	return s
}

// MaxDrawdown returns the worst peak-to-trough fall of an equity curve as a
// non-positive fraction
func MaxDrawdown(equity []float64) float64 {
	peak, worst := math.Inf(-1), 0.0
	for _, v := range equity {
		peak = math.Max(peak, v)
		if peak <= 0 {
			continue
		}
		worst = math.Min(worst, (v-peak)/peak)
	}
	return worst
}
