package pool

import (
	"bytes"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
)

// snapshotVersion tags the serialized layout so stores can reject blobs
// written by incompatible versions.
const snapshotVersion = 1

// stateSnapshot is the borsh wire form of State. Unbounded integers travel
// as big-endian byte strings.
type stateSnapshot struct {
	Version            uint8
	Balance0           []byte
	Balance1           []byte
	TotalShares        []byte
	PriceScale         []byte
	LastPrice          []byte
	PriceOracle        []byte
	XcpProfit          []byte
	XcpProfitReal      []byte
	D                  []byte
	LastPriceTimestamp uint64
	Observations       []observationSnapshot
}

type observationSnapshot struct {
	Timestamp       uint64
	PriceCumulative []byte
}

// MarshalBinary encodes the state as a versioned borsh blob.
func (s *State) MarshalBinary() ([]byte, error) {
	snap := stateSnapshot{
		Version:            snapshotVersion,
		Balance0:           s.Balances[0].Bytes(),
		Balance1:           s.Balances[1].Bytes(),
		TotalShares:        s.TotalShares.Bytes(),
		PriceScale:         s.PriceScale.Bytes(),
		LastPrice:          s.LastPrice.Bytes(),
		PriceOracle:        s.PriceOracle.Bytes(),
		XcpProfit:          s.XcpProfit.Bytes(),
		XcpProfitReal:      s.XcpProfitReal.Bytes(),
		D:                  s.D.Bytes(),
		LastPriceTimestamp: s.LastPriceTimestamp,
	}
	snap.Observations = make([]observationSnapshot, len(s.Observations))
	for i, o := range s.Observations {
		snap.Observations[i] = observationSnapshot{
			Timestamp:       o.Timestamp,
			PriceCumulative: o.PriceCumulative.Bytes(),
		}
	}

	var buf bytes.Buffer
	if err := bin.NewBorshEncoder(&buf).Encode(&snap); err != nil {
		return nil, fmt.Errorf("encode pool state: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a blob produced by MarshalBinary.
func (s *State) UnmarshalBinary(data []byte) error {
	var snap stateSnapshot
	if err := bin.NewBorshDecoder(data).Decode(&snap); err != nil {
		return fmt.Errorf("decode pool state: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("decode pool state: unsupported version %d", snap.Version)
	}

	s.Balances[0] = new(big.Int).SetBytes(snap.Balance0)
	s.Balances[1] = new(big.Int).SetBytes(snap.Balance1)
	s.TotalShares = new(big.Int).SetBytes(snap.TotalShares)
	s.PriceScale = new(big.Int).SetBytes(snap.PriceScale)
	s.LastPrice = new(big.Int).SetBytes(snap.LastPrice)
	s.PriceOracle = new(big.Int).SetBytes(snap.PriceOracle)
	s.XcpProfit = new(big.Int).SetBytes(snap.XcpProfit)
	s.XcpProfitReal = new(big.Int).SetBytes(snap.XcpProfitReal)
	s.D = new(big.Int).SetBytes(snap.D)
	s.LastPriceTimestamp = snap.LastPriceTimestamp
	s.Observations = make([]Observation, len(snap.Observations))
	for i, o := range snap.Observations {
		s.Observations[i] = Observation{
			Timestamp:       o.Timestamp,
			PriceCumulative: new(big.Int).SetBytes(o.PriceCumulative),
		}
	}
	return nil
}
