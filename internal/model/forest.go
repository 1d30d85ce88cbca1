package model

import (
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Forest is a bootstrap-aggregated ensemble of CART trees for binary
// classification. Probabilities are the mean of the per-tree leaf
// distributions. Class imbalance is corrected with inverse-frequency sample
// weights when Balanced is set.
type Forest struct {
	NumTrees        int
	Criterion       string // "gini" or "entropy"
	MaxFeatures     int    // 0 => sqrt(total features)
	MinSamplesSplit int
	MaxDepth        int // 0 => unlimited
	Balanced        bool
	Seed            int64
	Parallelism     int // bounded worker count for tree building, 0 => NumCPU

	trees     []*treeNode
	nFeatures int
}

// ForestOption is a functional option for NewForest.
type ForestOption func(*Forest)

func WithNumTrees(n int) ForestOption     { return func(f *Forest) { f.NumTrees = n } }
func WithCriterion(c string) ForestOption { return func(f *Forest) { f.Criterion = c } }
func WithMaxDepth(d int) ForestOption     { return func(f *Forest) { f.MaxDepth = d } }
func WithBalanced(b bool) ForestOption    { return func(f *Forest) { f.Balanced = b } }
func WithSeed(s int64) ForestOption       { return func(f *Forest) { f.Seed = s } }
func WithMaxFeatures(k int) ForestOption  { return func(f *Forest) { f.MaxFeatures = k } }
func WithParallelism(p int) ForestOption  { return func(f *Forest) { f.Parallelism = p } }

// NewForest returns a forest with the defaults used by the scorer: 100
// trees, gini splits, balanced class weights.
func NewForest(opts ...ForestOption) *Forest {
	f := &Forest{
		NumTrees:        100,
		Criterion:       "gini",
		MinSamplesSplit: 2,
		Balanced:        true,
		Seed:            32,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

type treeNode struct {
	Feature   int        `json:"f"`
	Threshold float64    `json:"t"`
	Left      *treeNode  `json:"l,omitempty"`
	Right     *treeNode  `json:"r,omitempty"`
	Leaf      bool       `json:"leaf"`
	Probs     [2]float64 `json:"p"`
	// importances are accumulated on the root node only during building.
	Importances []float64 `json:"imp,omitempty"`
}

// Fit trains the ensemble. Trees are built concurrently on independent
// bootstrap resamples; each tree owns its RNG so results are reproducible
// for a fixed seed regardless of scheduling.
func (f *Forest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("forest: empty training set")
	}
	if len(y) != len(X) {
		return errors.New("forest: X and y length mismatch")
	}
	p, err := checkDims(X, f.nFeatures)
	if err != nil {
		return err
	}
	f.nFeatures = p

	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	if f.Balanced {
		// inverse-frequency weighting: n / (nClasses * count(class))
		var counts [2]float64
		for _, label := range y {
			counts[label]++
		}
		for i, label := range y {
			if counts[label] > 0 {
				weights[i] = float64(len(y)) / (2 * counts[label])
			}
		}
	}

	maxFeat := f.MaxFeatures
	if maxFeat <= 0 || maxFeat > p {
		maxFeat = int(math.Sqrt(float64(p)))
		if maxFeat < 1 {
			maxFeat = 1
		}
	}

	f.trees = make([]*treeNode, f.NumTrees)
	var g errgroup.Group
	limit := f.Parallelism
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g.SetLimit(limit)
	for t := 0; t < f.NumTrees; t++ {
		t := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.Seed + int64(t)))
			sample := make([]int, len(X))
			for j := range sample {
				sample[j] = rng.Intn(len(X))
			}
			b := &treeBuilder{
				X: X, y: y, w: weights,
				criterion:       f.Criterion,
				maxFeatures:     maxFeat,
				minSamplesSplit: f.MinSamplesSplit,
				maxDepth:        f.MaxDepth,
				rng:             rng,
				importances:     make([]float64, p),
			}
			root := b.build(sample, 0)
			// normalize so per-tree importances sum to 1
			sum := 0.0
			for _, v := range b.importances {
				sum += v
			}
			if sum > 0 {
				for j := range b.importances {
					b.importances[j] /= sum
				}
			}
			root.Importances = b.importances
			f.trees[t] = root
			return nil
		})
	}
	return g.Wait()
}

// PredictProba returns the mean vote fraction across all trees for each row.
func (f *Forest) PredictProba(X [][]float64) ([][2]float64, error) {
	if f.trees == nil {
		return nil, errors.New("forest: not fitted")
	}
	if _, err := checkDims(X, f.nFeatures); err != nil {
		return nil, err
	}
	out := make([][2]float64, len(X))
	for i, row := range X {
		var acc [2]float64
		for _, t := range f.trees {
			p := t.predict(row)
			acc[0] += p[0]
			acc[1] += p[1]
		}
		n := float64(len(f.trees))
		out[i] = [2]float64{acc[0] / n, acc[1] / n}
	}
	return out, nil
}

// FeatureImportances returns the mean and standard deviation across trees of
// the normalized impurity-decrease importance of every feature.
func (f *Forest) FeatureImportances() (mean, std []float64, err error) {
	if f.trees == nil {
		return nil, nil, errors.New("forest: not fitted")
	}
	mean = make([]float64, f.nFeatures)
	std = make([]float64, f.nFeatures)
	n := float64(len(f.trees))
	for _, t := range f.trees {
		for j, v := range t.Importances {
			mean[j] += v / n
		}
	}
	for _, t := range f.trees {
		for j, v := range t.Importances {
			d := v - mean[j]
			std[j] += d * d / n
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j])
	}
	return mean, std, nil
}

// forestState is the serialized form of a fitted forest.
type forestState struct {
	NumTrees        int         `json:"numTrees"`
	Criterion       string      `json:"criterion"`
	MaxFeatures     int         `json:"maxFeatures"`
	MinSamplesSplit int         `json:"minSamplesSplit"`
	MaxDepth        int         `json:"maxDepth"`
	Balanced        bool        `json:"balanced"`
	Seed            int64       `json:"seed"`
	NFeatures       int         `json:"nFeatures"`
	Trees           []*treeNode `json:"trees"`
}

// MarshalJSON serializes the hyperparameters and the fitted trees so a
// trained forest can be persisted and restored.
func (f *Forest) MarshalJSON() ([]byte, error) {
	return json.Marshal(forestState{
		NumTrees:        f.NumTrees,
		Criterion:       f.Criterion,
		MaxFeatures:     f.MaxFeatures,
		MinSamplesSplit: f.MinSamplesSplit,
		MaxDepth:        f.MaxDepth,
		Balanced:        f.Balanced,
		Seed:            f.Seed,
		NFeatures:       f.nFeatures,
		Trees:           f.trees,
	})
}

// UnmarshalJSON restores a forest persisted with MarshalJSON.
func (f *Forest) UnmarshalJSON(data []byte) error {
	var st forestState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	f.NumTrees = st.NumTrees
	f.Criterion = st.Criterion
	f.MaxFeatures = st.MaxFeatures
	f.MinSamplesSplit = st.MinSamplesSplit
	f.MaxDepth = st.MaxDepth
	f.Balanced = st.Balanced
	f.Seed = st.Seed
	f.nFeatures = st.NFeatures
	f.trees = st.Trees
	return nil
}

func (t *treeNode) predict(x []float64) [2]float64 {
	node := t
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Probs
}

type treeBuilder struct {
	X               [][]float64
	y               []int
	w               []float64
	criterion       string
	maxFeatures     int
	minSamplesSplit int
	maxDepth        int
	rng             *rand.Rand
	importances     []float64
}

func (b *treeBuilder) impurity(counts [2]float64) float64 {
	total := counts[0] + counts[1]
	if total == 0 {
		return 0
	}
	p0 := counts[0] / total
	p1 := counts[1] / total
	if b.criterion == "entropy" {
		e := 0.0
		if p0 > 0 {
			e -= p0 * math.Log2(p0)
		}
		if p1 > 0 {
			e -= p1 * math.Log2(p1)
		}
		return e
	}
	return 1 - p0*p0 - p1*p1
}

func weightedCounts(y []int, w []float64, idx []int) [2]float64 {
	var c [2]float64
	for _, i := range idx {
		c[y[i]] += w[i]
	}
	return c
}

func leaf(counts [2]float64) *treeNode {
	total := counts[0] + counts[1]
	n := &treeNode{Leaf: true}
	if total > 0 {
		n.Probs = [2]float64{counts[0] / total, counts[1] / total}
	} else {
		n.Probs = [2]float64{0.5, 0.5}
	}
	return n
}

func (b *treeBuilder) build(idx []int, depth int) *treeNode {
	counts := weightedCounts(b.y, b.w, idx)
	if counts[0] == 0 || counts[1] == 0 || len(idx) < b.minSamplesSplit {
		return leaf(counts)
	}
	if b.maxDepth > 0 && depth >= b.maxDepth {
		return leaf(counts)
	}

	parentImp := b.impurity(counts)
	total := counts[0] + counts[1]

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0
	var bestLeft, bestRight []int

	p := len(b.X[0])
	feats := b.rng.Perm(p)[:b.maxFeatures]
	type pair struct {
		v float64
		i int
	}
	vals := make([]pair, 0, len(idx))
	for _, fi := range feats {
		vals = vals[:0]
		for _, i := range idx {
			vals = append(vals, pair{b.X[i][fi], i})
		}
		sort.Slice(vals, func(a, c int) bool { return vals[a].v < vals[c].v })

		var leftCounts [2]float64
		rightCounts := counts
		for s := 1; s < len(vals); s++ {
			i := vals[s-1].i
			leftCounts[b.y[i]] += b.w[i]
			rightCounts[b.y[i]] -= b.w[i]
			if vals[s].v == vals[s-1].v {
				continue
			}
			lw := leftCounts[0] + leftCounts[1]
			rw := rightCounts[0] + rightCounts[1]
			weighted := (lw/total)*b.impurity(leftCounts) + (rw/total)*b.impurity(rightCounts)
			gain := parentImp - weighted
			if gain > bestGain {
				bestGain = gain
				bestFeature = fi
				bestThreshold = (vals[s-1].v + vals[s].v) / 2
				bestLeft = bestLeft[:0]
				bestRight = bestRight[:0]
				for k := 0; k < s; k++ {
					bestLeft = append(bestLeft, vals[k].i)
				}
				for k := s; k < len(vals); k++ {
					bestRight = append(bestRight, vals[k].i)
				}
			}
		}
	}

	if bestFeature < 0 {
		return leaf(counts)
	}
	b.importances[bestFeature] += (total) * bestGain

	left := make([]int, len(bestLeft))
	copy(left, bestLeft)
	right := make([]int, len(bestRight))
	copy(right, bestRight)
	return &treeNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      b.build(left, depth+1),
		Right:     b.build(right, depth+1),
	}
}
