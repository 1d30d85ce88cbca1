package chem

import (
	"testing"
)

func TestNewExtractor_Validation(t *testing.T) {
	if _, err := NewExtractor(-1, 1024); err == nil {
		t.Error("negative radius should be rejected")
	}
	if _, err := NewExtractor(2, 0); err == nil {
		t.Error("zero bit length should be rejected")
	}
	ex, err := NewExtractor(0, 64)
	if err != nil {
		t.Fatalf("radius 0 should be accepted: %v", err)
	}
	if ex.Radius() != 0 || ex.BitLength() != 64 {
		t.Errorf("parameters not stored: radius=%d bits=%d", ex.Radius(), ex.BitLength())
	}
}

func TestExtract_Deterministic(t *testing.T) {
	ex, err := NewExtractor(DefaultRadius, DefaultBitLength)
	if err != nil {
		t.Fatal(err)
	}
	for _, smiles := range []string{"CCO", "c1ccccc1", "CC(=O)Oc1ccccc1C(=O)O"} {
		a, err := ex.ExtractSMILES(smiles)
		if err != nil {
			t.Fatalf("extract %q: %v", smiles, err)
		}
		b, err := ex.ExtractSMILES(smiles)
		if err != nil {
			t.Fatalf("extract %q: %v", smiles, err)
		}
		if len(a) != DefaultBitLength {
			t.Fatalf("want %d bins, got %d", DefaultBitLength, len(a))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("%q: vectors differ at bin %d: %v vs %v", smiles, i, a[i], b[i])
			}
		}
	}
}

func TestExtract_HydrogenRepresentationInvariant(t *testing.T) {
	ex, err := NewExtractor(2, 256)
	if err != nil {
		t.Fatal(err)
	}
	implicit, err := ex.ExtractSMILES("C")
	if err != nil {
		t.Fatal(err)
	}
	explicit, err := ex.ExtractSMILES("[H]C([H])([H])[H]")
	if err != nil {
		t.Fatal(err)
	}
	for i := range implicit {
		if implicit[i] != explicit[i] {
			t.Fatalf("hydrogen representation changed fingerprint at bin %d", i)
		}
	}
}

func TestExtract_CountsNotFlags(t *testing.T) {
	ex, err := NewExtractor(1, 128)
	if err != nil {
		t.Fatal(err)
	}
	fp, err := ex.ExtractSMILES("CCCCCCCC")
	if err != nil {
		t.Fatal(err)
	}
	// a long alkane repeats the same environments many times, so at least
	// one bin must count above 1
	max := 0.0
	total := 0.0
	for _, v := range fp {
		if v > max {
			max = v
		}
		total += v
		if v < 0 {
			t.Fatal("negative count")
		}
	}
	if max <= 1 {
		t.Errorf("expected repeated environments to accumulate counts, max=%v", max)
	}
	// one environment per atom per radius level (radius 1 => 2 levels),
	// 8 carbons + 18 hydrogens
	if want := 2.0 * 26; total != want {
		t.Errorf("total environment count: want %v, got %v", want, total)
	}
}

func TestExtract_DistinguishesMolecules(t *testing.T) {
	ex, err := NewExtractor(2, 1024)
	if err != nil {
		t.Fatal(err)
	}
	a, err := ex.ExtractSMILES("CCO")
	if err != nil {
		t.Fatal(err)
	}
	b, err := ex.ExtractSMILES("CCN")
	if err != nil {
		t.Fatal(err)
	}
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("ethanol and ethylamine should not share a fingerprint")
	}
}

func TestExtractSMILES_InvalidStructure(t *testing.T) {
	ex, err := NewExtractor(2, 1024)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ex.ExtractSMILES("not a molecule"); err == nil {
		t.Error("invalid SMILES should fail")
	}
}
