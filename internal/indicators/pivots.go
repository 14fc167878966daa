package indicators

const (
	pivotWindow    = 10
	pivotStability = 5
)

// PivotHighs scans a rolling 10-element window over the series and
// records a resistance pivot whenever the window maximum survives 5
// consecutive insertions unchanged.
func PivotHighs(values []float64) []float64 {
	return pivotScan(values, func(a, b float64) bool { return a > b })
}

// PivotLows is the support-side mirror of PivotHighs.
func PivotLows(values []float64) []float64 {
	return pivotScan(values, func(a, b float64) bool { return a < b })
}

func pivotScan(values []float64, better func(a, b float64) bool) []float64 {
	window := make([]float64, 0, pivotWindow)
	var pivots []float64
	counter := 0

	extremum := func() float64 {
		best := window[0]
		for _, v := range window[1:] {
			if better(v, best) {
				best = v
			}
		}
		return best
	}

	for _, v := range values {
		var before float64
		hasBefore := len(window) > 0
		if hasBefore {
			before = extremum()
		}

		if len(window) == pivotWindow {
			window = window[1:]
		}
		window = append(window, v)

		if hasBefore && before == extremum() {
			counter++
		} else {
			counter = 0
		}
		if counter == pivotStability {
			pivots = append(pivots, before)
		}
	}
	return pivots
}
