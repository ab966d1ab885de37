package stats

import (
	"math"
	"testing"
)

func TestAverage(t *testing.T) {
	s := new(Average)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		s.Add(v)
	}
	if s.Count != 8 || s.Mean != 5 {
		t.Error("got count", s.Count, "mean", s.Mean)
	}
	// sample stddev of the series
	if math.Abs(s.StdDev-2.1381) > 1e-4 {
		t.Error("stddev: got", s.StdDev)
	}
}

func TestEMA(t *testing.T) {
	var e EMA
	v := e.Add(10, 5)
	if v != 10 {
		t.Error("first value: got", v)
	}
	e = EMA(v)
	v = e.Add(0, 5)
	if math.Abs(v-10*(1-2.0/6)) > 1e-9 {
		t.Error("got", v)
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram(0, 10, 5)
	for _, v := range []float64{0, 1, 3, 5, 9, 9.99} {
		h.Add(v)
	}
	if h.Total != 6 {
		t.Error("total: got", h.Total)
	}
	expect := []int{2, 1, 1, 0, 2}
	for i, n := range expect {
		if h.Counts[i] != n {
			t.Error("counts: got", h.Counts, "expect", expect)
			break
		}
	}
	// out of range values are clamped into the end bins
	h.Add(-5)
	h.Add(50)
	if h.Counts[0] != 3 || h.Counts[4] != 3 {
		t.Error("clamping: got", h.Counts)
	}
	if h.BinWidth() != 2 {
		t.Error("bin width: got", h.BinWidth())
	}
	if c := h.Centers(); c[0] != 1 || c[4] != 9 {
		t.Error("centers: got", c)
	}
}
