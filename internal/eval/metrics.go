package eval

// Confusion holds binary confusion counts with label 1 as the positive
// class.
type Confusion struct {
	TP, FP, TN, FN int
}

// Add accumulates another confusion table into this one.
func (c *Confusion) Add(o Confusion) {
	c.TP += o.TP
	c.FP += o.FP
	c.TN += o.TN
	c.FN += o.FN
}

// Total returns the number of samples counted.
func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

// confusionCounts tallies predictions against truth for positive label pos.
func confusionCounts(yTrue, yPred []int, pos int) Confusion {
	var c Confusion
	for i := range yTrue {
		truth := yTrue[i] == pos
		pred := yPred[i] == pos
		switch {
		case truth && pred:
			c.TP++
		case truth && !pred:
			c.FN++
		case !truth && pred:
			c.FP++
		default:
			c.TN++
		}
	}
	return c
}

func accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hits := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(yTrue))
}

// precision and recall degrade to 0 on an empty denominator, matching the
// zero-division handling of the per-fold metric table. The sweep path keeps
// undefined values explicit instead; see sweep.go.
func precision(c Confusion) float64 {
	if c.TP+c.FP == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FP)
}

func recall(c Confusion) float64 {
	if c.TP+c.FN == 0 {
		return 0
	}
	return float64(c.TP) / float64(c.TP+c.FN)
}

// fbeta weighs recall beta times as much as precision; beta=1 is F1.
func fbeta(c Confusion, beta float64) float64 {
	p := precision(c)
	r := recall(c)
	b2 := beta * beta
	if b2*p+r == 0 {
		return 0
	}
	return (1 + b2) * p * r / (b2*p + r)
}
