// Package dataset loads labeled molecule records and converts them into the
// fixed-length feature matrix consumed by the models. Records are loaded
// once and read-only afterwards.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"

	"mpscore/internal/chem"

	"github.com/rs/zerolog/log"
)

// MoleculeRecord is one labeled structure: a SMILES identifier plus the
// binary synthesizability label (0 = difficult, 1 = easy).
type MoleculeRecord struct {
	SMILES string `json:"smiles"`
	Label  int    `json:"synthesisable"`
}

// Dataset is an ordered collection of (feature vector, label) pairs. The
// insertion order only matters for fold-index bookkeeping; training ignores
// it.
type Dataset struct {
	X [][]float64
	Y []int
}

// Len returns the sample count.
func (d *Dataset) Len() int { return len(d.X) }

// Dim returns the feature vector length, 0 for an empty dataset.
func (d *Dataset) Dim() int {
	if len(d.X) == 0 {
		return 0
	}
	return len(d.X[0])
}

// Subset gathers the rows at the given indices into a new view. The
// underlying vectors are shared, never copied; they are read-only by
// contract.
func (d *Dataset) Subset(idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		X[i] = d.X[j]
		y[i] = d.Y[j]
	}
	return X, y
}

// LoadRecords reads a JSON array of labeled molecule records.
func LoadRecords(path string) ([]MoleculeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file %s: %w", path, err)
	}
	var records []MoleculeRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse dataset file %s: %w", path, err)
	}
	for i, r := range records {
		if r.Label != 0 && r.Label != 1 {
			return nil, fmt.Errorf("record %d: label must be 0 or 1, got %d", i, r.Label)
		}
		if r.SMILES == "" {
			return nil, fmt.Errorf("record %d: missing smiles", i)
		}
	}
	return records, nil
}

// FromRecords fingerprints every record with the given extractor. A record
// that fails to parse aborts the load; a partial dataset would silently
// shift the class balance.
func FromRecords(records []MoleculeRecord, ex *chem.Extractor) (*Dataset, error) {
	ds := &Dataset{
		X: make([][]float64, 0, len(records)),
		Y: make([]int, 0, len(records)),
	}
	for i, r := range records {
		fp, err := ex.ExtractSMILES(r.SMILES)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		ds.X = append(ds.X, fp)
		ds.Y = append(ds.Y, r.Label)
	}
	log.Debug().Int("records", len(records)).Int("bits", ex.BitLength()).Msg("dataset fingerprinted")
	return ds, nil
}

// Load is the one-call path from a JSON file to a feature matrix.
func Load(path string, ex *chem.Extractor) (*Dataset, error) {
	records, err := LoadRecords(path)
	if err != nil {
		return nil, err
	}
	return FromRecords(records, ex)
}
