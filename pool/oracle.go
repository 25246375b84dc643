package pool

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/apollo-sturdy/pcl-go/fpmath"
)

// maxObservations bounds the cumulative-price ring kept in state.
const maxObservations = 512

// updateOracle folds the last trade price into the EMA and appends a
// cumulative-price observation. It runs at most once per distinct
// timestamp: repeated calls within the same second are no-ops, so a burst
// of trades cannot double-count.
func (s *State) updateOracle(cfg *Config, now uint64) error {
	if now <= s.LastPriceTimestamp {
		return nil
	}
	dt := now - s.LastPriceTimestamp

	power, err := fpmath.MulDiv(new(big.Int).SetUint64(dt), fpmath.Precision, new(big.Int).SetUint64(cfg.MAHalfTime), fpmath.RoundDown)
	if err != nil {
		return err
	}
	alpha, err := fpmath.HalfPow(power)
	if err != nil {
		return err
	}

	// oracle' = lastPrice*(1-alpha) + oracle*alpha
	weighted, err := fpmath.Mul(s.LastPrice, new(big.Int).Sub(fpmath.Precision, alpha))
	if err != nil {
		return err
	}
	carried, err := fpmath.Mul(s.PriceOracle, alpha)
	if err != nil {
		return err
	}
	sum := new(big.Int).Add(weighted, carried)
	s.PriceOracle, err = fpmath.Div(sum, fpmath.Precision, fpmath.RoundDown)
	if err != nil {
		return err
	}

	cum := big.NewInt(0)
	if n := len(s.Observations); n > 0 {
		cum = s.Observations[n-1].PriceCumulative
	}
	delta, err := fpmath.Mul(s.LastPrice, new(big.Int).SetUint64(dt))
	if err != nil {
		return err
	}
	next, err := fpmath.Add(cum, delta)
	if err != nil {
		return err
	}
	s.Observations = append(s.Observations, Observation{Timestamp: now, PriceCumulative: next})
	if len(s.Observations) > maxObservations {
		s.Observations = s.Observations[len(s.Observations)-maxObservations:]
	}

	s.LastPriceTimestamp = now
	return nil
}

// TWAP returns the time-weighted average of the last trade price over
// [start, end], computed from the stored observation ring. Both bounds must
// be covered by retained observations.
func (s *State) TWAP(start, end uint64) (*big.Int, error) {
	if end <= start {
		return nil, fmt.Errorf("%w: empty window", ErrInvalidInput)
	}
	a, okA := s.observationAt(start)
	b, okB := s.observationAt(end)
	if !okA || !okB || b.Timestamp <= a.Timestamp {
		return nil, fmt.Errorf("%w: window not covered by observations", ErrInvalidInput)
	}
	num := new(big.Int).Sub(b.PriceCumulative, a.PriceCumulative)
	return fpmath.Div(num, new(big.Int).SetUint64(b.Timestamp-a.Timestamp), fpmath.RoundDown)
}

// observationAt returns the newest observation at or before ts.
func (s *State) observationAt(ts uint64) (Observation, bool) {
	i := sort.Search(len(s.Observations), func(i int) bool {
		return s.Observations[i].Timestamp > ts
	})
	if i == 0 {
		return Observation{}, false
	}
	return s.Observations[i-1], true
}
