package tppd

import (
	"math"
	"sort"
)

// FDRRow is one observed protein statistic with its estimated false
// discovery rate. Rows are immutable once computed
type FDRRow struct {
	Clustername string  `json:"clustername"`
	F           float64 `json:"F"`
	NObs        int     `json:"nObs"`
	PValue      float64 `json:"pValue"`
	FDR         float64 `json:"fdr"`
	Degenerate  bool    `json:"degenerate"`
}

// countGE counts entries of a sorted (ascending) slice at or above x
func countGE(sorted []float64, x float64) int {
	return len(sorted) - sort.SearchFloat64s(sorted, x)
}

// GetFDR estimates, for each observed F-statistic, the empirical FDR
// against the bootstrapped null distribution:
//
//	FDR = [#(null F >= F, same nObs stratum) / B] / #(observed F >= F)
//
// clipped at 1 and corrected to be monotonically non-decreasing as the
// F threshold decreases. Null statistics are compared within the
// observed row's nObs stratum because the degrees of freedom, and hence
// the statistic's null behavior, depend on group size. Rows come back
// sorted by F, most significant first
func GetFDR(observed, null []FStat, rounds int) []FDRRow {
	nullByStratum := make(map[int][]float64)
	for _, fs := range null {
		nullByStratum[fs.NObs] = append(nullByStratum[fs.NObs], fs.F)
	}
	for _, fvals := range nullByStratum {
		sort.Float64s(fvals)
	}

	obsSorted := make([]float64, len(observed))
	for i, fs := range observed {
		obsSorted[i] = fs.F
	}
	sort.Float64s(obsSorted)

	rows := make([]FDRRow, len(observed))
	for i, fs := range observed {
		nullGE := float64(countGE(nullByStratum[fs.NObs], fs.F)) / float64(rounds)
		obsGE := float64(countGE(obsSorted, fs.F))

		fdr := nullGE / obsGE
		if fdr > 1 {
			fdr = 1
		}

		rows[i] = FDRRow{
			Clustername: fs.Clustername,
			F:           fs.F,
			NObs:        fs.NObs,
			PValue:      fs.PValue,
			FDR:         fdr,
			Degenerate:  fs.Degenerate,
		}
	}

	// step-down correction: walking from the strictest threshold to the
	// loosest, a looser threshold may never report a lower FDR
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].F > rows[j].F
	})
	runningMax := math.Inf(-1)
	for i := range rows {
		if rows[i].FDR < runningMax {
			rows[i].FDR = runningMax
		} else {
			runningMax = rows[i].FDR
		}
	}

	return rows
}

// FindHits returns the subset of the FDR table at or below the
// significance cutoff alpha, preserving the table's ranking
func FindHits(table []FDRRow, alpha float64) []FDRRow {
	var hits []FDRRow
	for _, row := range table {
		if row.FDR <= alpha {
			hits = append(hits, row)
		}
	}
	return hits
}
