package rateplan

import (
	"errors"
	"testing"
)

func TestPlan_SpecScenarios(t *testing.T) {
	cases := []struct {
		rateHz          int
		srate, dec, deca int
	}{
		{10, 10000, 300, 2},
		{1000, 60000, 1, 1},
		{2500, 24000, 1, 1},
	}
	for _, c := range cases {
		p, err := Plan(c.rateHz)
		if err != nil {
			t.Fatalf("Plan(%d): %v", c.rateHz, err)
		}
		if p.Srate != c.srate || p.Dec != c.dec || p.Deca != c.deca {
			t.Errorf("Plan(%d) = %+v, want srate=%d dec=%d deca=%d", c.rateHz, p, c.srate, c.dec, c.deca)
		}
	}
}

func TestPlan_UnsupportedRate(t *testing.T) {
	if _, err := Plan(42); !errors.Is(err, ErrUnsupportedRate) {
		t.Fatalf("err = %v, want ErrUnsupportedRate", err)
	}
}

func TestPlan_AllSupportedRatesSatisfyClockEquation(t *testing.T) {
	for _, rate := range SupportedRates() {
		p, err := Plan(rate)
		if err != nil {
			t.Fatalf("Plan(%d): %v", rate, err)
		}
		product := int64(p.Dec) * int64(p.Deca) * int64(p.Srate) * int64(p.RateHz)
		if product != clockHz {
			t.Errorf("rate %d: dec*deca*srate*rate = %d, want %d", rate, product, clockHz)
		}
		if p.Srate < MinSrate || p.Srate > MaxSrate {
			t.Errorf("rate %d: srate %d out of bounds", rate, p.Srate)
		}
		if p.Dec < MinDec || p.Dec > MaxDec {
			t.Errorf("rate %d: dec %d out of bounds", rate, p.Dec)
		}
		if p.Deca < MinDeca || p.Deca > MaxDeca {
			t.Errorf("rate %d: deca %d out of bounds", rate, p.Deca)
		}
	}
}
