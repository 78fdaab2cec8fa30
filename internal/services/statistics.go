package services

import "math"

// Percentile is round(100 × strictly lower scores / population size). The
// population includes the attempt being ranked.
func Percentile(score float64, population []float64) int {
	if len(population) == 0 {
		return 0
	}
	lower := 0
	for _, s := range population {
		if s < score {
			lower++
		}
	}
	return int(math.Round(100 * float64(lower) / float64(len(population))))
}

// Average is the plain mean, recomputed from the full population every time
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}
