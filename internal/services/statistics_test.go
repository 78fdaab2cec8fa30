package services

import "testing"

func TestPercentile(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		population []float64
		want       int
	}{
		{name: "empty population", score: 5, population: nil, want: 0},
		{name: "only attempt", score: 5, population: []float64{5}, want: 0},
		{name: "best of four", score: 9, population: []float64{1, 2, 3, 9}, want: 75},
		{name: "worst of four", score: 1, population: []float64{1, 2, 3, 9}, want: 0},
		{name: "ties are not lower", score: 2, population: []float64{2, 2, 1}, want: 33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.score, tt.population)
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("percentile %d out of bounds", got)
			}
		})
	}
}

func TestAverage(t *testing.T) {
	if got := Average(nil); got != 0 {
		t.Errorf("Average(nil) = %v, want 0", got)
	}
	if got := Average([]float64{1, 2, 0.75}); got != 1.25 {
		t.Errorf("got %v, want 1.25", got)
	}
}
