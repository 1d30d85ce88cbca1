package eval

import (
	"errors"
	"math/rand"
	"testing"
)

func TestKFold_Partition(t *testing.T) {
	cases := []struct{ n, k int }{
		{10, 5},
		{100, 5},
		{101, 5},
		{7, 3},
		{5, 5},
	}
	for _, tc := range cases {
		folds, err := KFold(tc.n, tc.k, rand.New(rand.NewSource(32)))
		if err != nil {
			t.Fatalf("n=%d k=%d: %v", tc.n, tc.k, err)
		}
		if len(folds) != tc.k {
			t.Fatalf("n=%d k=%d: got %d folds", tc.n, tc.k, len(folds))
		}
		seen := make(map[int]int)
		for _, fold := range folds {
			for _, i := range fold.Test {
				seen[i]++
			}
			// a test index never appears in the same fold's training set
			inTrain := make(map[int]bool, len(fold.Train))
			for _, i := range fold.Train {
				inTrain[i] = true
			}
			for _, i := range fold.Test {
				if inTrain[i] {
					t.Fatalf("n=%d k=%d: index %d in both halves", tc.n, tc.k, i)
				}
			}
			if len(fold.Train)+len(fold.Test) != tc.n {
				t.Fatalf("n=%d k=%d: fold does not cover the index set", tc.n, tc.k)
			}
		}
		if len(seen) != tc.n {
			t.Fatalf("n=%d k=%d: test folds cover %d of %d indices", tc.n, tc.k, len(seen), tc.n)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("n=%d k=%d: index %d held out %d times", tc.n, tc.k, i, c)
			}
		}
	}
}

func TestKFold_SizeBalance(t *testing.T) {
	folds, err := KFold(101, 5, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	min, max := len(folds[0].Test), len(folds[0].Test)
	for _, fold := range folds {
		if len(fold.Test) < min {
			min = len(fold.Test)
		}
		if len(fold.Test) > max {
			max = len(fold.Test)
		}
	}
	if max-min > 1 {
		t.Errorf("fold sizes differ by more than one: min=%d max=%d", min, max)
	}
}

func TestKFold_SeedControlsShuffle(t *testing.T) {
	a, err := KFold(50, 5, rand.New(rand.NewSource(32)))
	if err != nil {
		t.Fatal(err)
	}
	b, err := KFold(50, 5, rand.New(rand.NewSource(32)))
	if err != nil {
		t.Fatal(err)
	}
	for f := range a {
		for i := range a[f].Test {
			if a[f].Test[i] != b[f].Test[i] {
				t.Fatal("identical seeds produced different folds")
			}
		}
	}
}

func TestKFold_Errors(t *testing.T) {
	cases := []struct {
		name string
		n, k int
	}{
		{"empty", 0, 5},
		{"one fold", 10, 1},
		{"more folds than samples", 3, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := KFold(tc.n, tc.k, rand.New(rand.NewSource(1)))
			var ce *ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("want ConfigurationError, got %v", err)
			}
		})
	}
}

func TestTrainTestSplit(t *testing.T) {
	train, test, err := TrainTestSplit(40, 0.25, rand.New(rand.NewSource(32)))
	if err != nil {
		t.Fatal(err)
	}
	if len(test) != 10 || len(train) != 30 {
		t.Fatalf("split sizes: train=%d test=%d", len(train), len(test))
	}
	seen := make(map[int]bool)
	for _, i := range append(append([]int{}, train...), test...) {
		if seen[i] {
			t.Fatalf("index %d assigned twice", i)
		}
		seen[i] = true
	}
	if len(seen) != 40 {
		t.Errorf("split covers %d of 40 indices", len(seen))
	}

	if _, _, err := TrainTestSplit(0, 0.25, rand.New(rand.NewSource(1))); err == nil {
		t.Error("empty input should fail")
	}
	if _, _, err := TrainTestSplit(10, 1.5, rand.New(rand.NewSource(1))); err == nil {
		t.Error("ratio outside (0,1) should fail")
	}
}
