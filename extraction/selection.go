package extraction

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SelectSupport keeps the encoder output columns whose sample variance
// over the encoded dataset exceeds threshold. At least one column is
// always kept (the highest-variance one), so an accepted stage never
// contributes zero features.
func SelectSupport(encoded *mat.Dense, threshold float64) []bool {
	rows, cols := encoded.Dims()
	support := make([]bool, cols)
	if rows == 0 || cols == 0 {
		return support
	}

	best := 0
	bestVar := -1.0
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, encoded)
		v := stat.Variance(col, nil)
		if v > threshold {
			support[j] = true
		}
		if v > bestVar {
			bestVar = v
			best = j
		}
	}

	any := false
	for _, s := range support {
		if s {
			any = true
			break
		}
	}
	if !any {
		support[best] = true
	}
	return support
}
