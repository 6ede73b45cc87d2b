package rules

import "testing"

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestAnomalyScore(t *testing.T) {
	tests := []struct {
		name    string
		ratings []float64
		returns int
		want    float64
	}{
		{"no ratings", nil, 0, 0.1},
		{"no ratings with returns", nil, 50, 0.1},
		{"healthy mix", []float64{4.0, 3.5, 4.2, 3.8}, 2, 0.1},
		{"mostly one-star", repeat(1.0, 10), 0, 0.9},
		{"low ratio just over cutoff", append(repeat(1.0, 4), repeat(4.0, 6)...), 0, 0.9},
		{"low ratio at cutoff stays baseline", append(repeat(1.0, 3), repeat(4.0, 7)...), 0, 0.1},
		{"all five-star with heavy returns", repeat(5.0, 10), 15, 0.9},
		{"all five-star with few returns", repeat(5.0, 10), 5, 0.1},
		{"all five-star returns at boundary", repeat(5.0, 10), 10, 0.1},
		{"excessive returns alone", []float64{3.0, 4.0}, 25, 0.7},
		{"returns at excessive boundary", []float64{3.0, 4.0}, 20, 0.1},
		{"boundary rating counts as low", []float64{1.5, 1.5, 4.0}, 0, 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AnomalyScore(tt.ratings, tt.returns); got != tt.want {
				t.Errorf("AnomalyScore(%v, %d) = %.2f, want %.2f",
					tt.ratings, tt.returns, got, tt.want)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	got := Explain(repeat(5.0, 10), 15)
	want := "rule_risk=0.90 ratings=10 returns=15"
	if got != want {
		t.Errorf("Explain = %q, want %q", got, want)
	}
}
