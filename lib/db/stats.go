package db

import (
	"math"
)

// SizeStats describes the distribution of the encoded value sizes (in bytes) of a database.
type SizeStats struct {
	Values       int     `json:"values"`
	Total        float64 `json:"total"`
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
}

// NewSizeStats computes count, total, mean, standard deviation, minimum and
// maximum of the given sizes.
func NewSizeStats(sizes []float64) SizeStats {
	if len(sizes) == 0 {
		return SizeStats{}
	}

	min, max := sizes[0], sizes[0]
	var sum float64
	for _, v := range sizes {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(sizes))

	var sumSquaredDiffs float64
	for _, v := range sizes {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	return SizeStats{
		Values:       len(sizes),
		Total:        sum,
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(sizes))), // population formula
		Min:          min,
		Max:          max,
		Mean:         mean,
	}
}
