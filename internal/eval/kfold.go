// Package eval implements the cross-validated evaluation pipeline: seeded
// k-fold partitioning, per-fold fit/predict with a fixed metric set, and the
// precision/recall threshold sweep with cross-fold error bands.
package eval

import (
	"fmt"
	"math/rand"
)

// ConfigurationError reports an evaluation request that cannot produce
// meaningful output, e.g. an empty dataset or a fold count larger than the
// sample count.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("evaluation configuration error: %s", e.Reason)
}

// FoldSplit is one disjoint train/test index pair.
type FoldSplit struct {
	Train []int
	Test  []int
}

// KFold shuffles the index set [0,n) with the caller-supplied RNG and cuts
// it into k size-balanced contiguous test chunks. Across the returned folds
// the test indices partition the full index set exactly once.
func KFold(n, k int, rng *rand.Rand) ([]FoldSplit, error) {
	if n == 0 {
		return nil, &ConfigurationError{Reason: "empty dataset"}
	}
	if k < 2 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("fold count must be >= 2, got %d", k)}
	}
	if k > n {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("fold count %d exceeds sample count %d", k, n)}
	}
	perm := rng.Perm(n)
	folds := make([]FoldSplit, k)
	base := n / k
	extra := n % k
	start := 0
	for f := 0; f < k; f++ {
		size := base
		if f < extra {
			size++
		}
		test := make([]int, size)
		copy(test, perm[start:start+size])
		train := make([]int, 0, n-size)
		train = append(train, perm[:start]...)
		train = append(train, perm[start+size:]...)
		folds[f] = FoldSplit{Train: train, Test: test}
		start += size
	}
	return folds, nil
}

// TrainTestSplit shuffles [0,n) and splits off testRatio of it, mirroring
// the split used to carve out a calibration set from training data.
func TrainTestSplit(n int, testRatio float64, rng *rand.Rand) (train, test []int, err error) {
	if n == 0 {
		return nil, nil, &ConfigurationError{Reason: "empty dataset"}
	}
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, &ConfigurationError{Reason: fmt.Sprintf("test ratio must be in (0,1), got %g", testRatio)}
	}
	perm := rng.Perm(n)
	nTest := int(float64(n) * testRatio)
	if nTest == 0 {
		nTest = 1
	}
	test = perm[:nTest]
	train = perm[nTest:]
	return train, test, nil
}
