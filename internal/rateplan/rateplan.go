// Package rateplan maps a requested sample rate, in Hz, to the
// (srate, dec, deca) triple the device's SECONDCOMMAND sub-commands need to
// realize it.
package rateplan

import (
	"errors"
	"fmt"
)

// ErrUnsupportedRate is returned by Plan for any Hz value not on the fixed
// menu the device supports.
var ErrUnsupportedRate = errors.New("rateplan: unsupported rate")

// Bounds the device imposes on each parameter.
const (
	MinSrate = 375
	MaxSrate = 65535
	MinDec   = 1
	MaxDec   = 512
	MinDeca  = 1
	MaxDeca  = 40000

	// clockHz is the device's fixed internal clock; srate*dec*deca*rate
	// must equal it exactly for the requested rate to be realizable.
	clockHz = 60_000_000
)

// Params is the (srate, dec, deca) triple the device's configuration
// sub-commands need, plus the Hz rate it realizes.
type Params struct {
	RateHz int
	Srate  int
	Dec    int
	Deca   int
}

var table = map[int]Params{
	1:     {RateHz: 1, Srate: 60000, Dec: 1, Deca: 1000},
	10:    {RateHz: 10, Srate: 10000, Dec: 300, Deca: 2},
	100:   {RateHz: 100, Srate: 60000, Dec: 10, Deca: 1},
	250:   {RateHz: 250, Srate: 60000, Dec: 4, Deca: 1},
	500:   {RateHz: 500, Srate: 60000, Dec: 2, Deca: 1},
	750:   {RateHz: 750, Srate: 40000, Dec: 2, Deca: 1},
	1000:  {RateHz: 1000, Srate: 60000, Dec: 1, Deca: 1},
	2500:  {RateHz: 2500, Srate: 24000, Dec: 1, Deca: 1},
	5000:  {RateHz: 5000, Srate: 12000, Dec: 1, Deca: 1},
	7500:  {RateHz: 7500, Srate: 8000, Dec: 1, Deca: 1},
	10000: {RateHz: 10000, Srate: 6000, Dec: 1, Deca: 1},
}

// SupportedRates returns the fixed Hz menu, ascending.
func SupportedRates() []int {
	return []int{1, 10, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}
}

// Plan returns the (srate, dec, deca) triple for rateHz. rateHz must be one
// of SupportedRates(); any other value returns ErrUnsupportedRate.
func Plan(rateHz int) (Params, error) {
	p, ok := table[rateHz]
	if !ok {
		return Params{}, fmt.Errorf("%w: %d Hz", ErrUnsupportedRate, rateHz)
	}
	if err := p.validate(); err != nil {
		return Params{}, fmt.Errorf("rateplan: internal table entry for %d Hz invalid: %w", rateHz, err)
	}
	return p, nil
}

func (p Params) validate() error {
	if p.Srate < MinSrate || p.Srate > MaxSrate {
		return fmt.Errorf("srate %d out of [%d,%d]", p.Srate, MinSrate, MaxSrate)
	}
	if p.Dec < MinDec || p.Dec > MaxDec {
		return fmt.Errorf("dec %d out of [%d,%d]", p.Dec, MinDec, MaxDec)
	}
	if p.Deca < MinDeca || p.Deca > MaxDeca {
		return fmt.Errorf("deca %d out of [%d,%d]", p.Deca, MinDeca, MaxDeca)
	}
	product := int64(p.Dec) * int64(p.Deca) * int64(p.Srate) * int64(p.RateHz)
	if product != clockHz {
		return fmt.Errorf("dec*deca*srate*rate = %d, want %d", product, clockHz)
	}
	return nil
}
