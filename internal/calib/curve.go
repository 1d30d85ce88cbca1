package calib

// ReliabilityBin is one point of a calibration curve: the mean predicted
// probability of the samples falling in the bin against the empirical
// fraction of positives among them.
type ReliabilityBin struct {
	MeanPredicted    float64
	FractionPositive float64
	Count            int
}

// ReliabilityCurve bins predicted class-1 probabilities into nBins equal
// intervals over [0,1] and reports, per non-empty bin, the mean prediction
// and the positive fraction. Well calibrated models land near the diagonal.
func ReliabilityCurve(probs []float64, y []int, nBins int) ([]ReliabilityBin, error) {
	if len(probs) == 0 {
		return nil, &ConfigurationError{Reason: "empty probability set"}
	}
	if len(probs) != len(y) {
		return nil, &ConfigurationError{Reason: "probability/label length mismatch"}
	}
	if nBins <= 0 {
		nBins = 10
	}
	sums := make([]float64, nBins)
	pos := make([]int, nBins)
	counts := make([]int, nBins)
	for i, p := range probs {
		b := int(p * float64(nBins))
		if b >= nBins {
			b = nBins - 1
		}
		if b < 0 {
			b = 0
		}
		sums[b] += p
		counts[b]++
		if y[i] == 1 {
			pos[b]++
		}
	}
	out := make([]ReliabilityBin, 0, nBins)
	for b := 0; b < nBins; b++ {
		if counts[b] == 0 {
			continue
		}
		out = append(out, ReliabilityBin{
			MeanPredicted:    sums[b] / float64(counts[b]),
			FractionPositive: float64(pos[b]) / float64(counts[b]),
			Count:            counts[b],
		})
	}
	return out, nil
}
