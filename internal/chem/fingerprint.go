package chem

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"sort"
)

const (
	// DefaultRadius is the neighborhood radius used by the scorer.
	DefaultRadius = 2
	// DefaultBitLength is the fingerprint vector length used by the scorer.
	DefaultBitLength = 1024
)

// Extractor converts molecules into fixed-length count fingerprints. The
// zero value is not usable; construct with NewExtractor so the parameters
// are validated once.
type Extractor struct {
	radius    int
	bitLength int
}

// NewExtractor validates the fingerprint parameters eagerly.
func NewExtractor(radius, bitLength int) (*Extractor, error) {
	if radius < 0 {
		return nil, fmt.Errorf("fingerprint radius must be >= 0, got %d", radius)
	}
	if bitLength <= 0 {
		return nil, fmt.Errorf("fingerprint bit length must be > 0, got %d", bitLength)
	}
	return &Extractor{radius: radius, bitLength: bitLength}, nil
}

// Radius returns the configured neighborhood radius.
func (e *Extractor) Radius() int { return e.radius }

// BitLength returns the configured vector length.
func (e *Extractor) BitLength() int { return e.bitLength }

// ExtractSMILES parses the SMILES string and returns its count fingerprint.
func (e *Extractor) ExtractSMILES(smiles string) ([]float64, error) {
	mol, err := ParseSMILES(smiles)
	if err != nil {
		return nil, err
	}
	return e.Extract(mol), nil
}

// Extract computes the circular count fingerprint of a molecule. Hydrogens
// are materialized first so that molecules differing only in implicit versus
// explicit hydrogen representation produce identical vectors. Each bin holds
// the number of atom environments hashing to it, not a presence flag.
func (e *Extractor) Extract(mol *Mol) []float64 {
	m := mol.AddHydrogens()
	n := len(m.Atoms)
	fp := make([]float64, e.bitLength)

	inv := make([]uint64, n)
	for i, a := range m.Atoms {
		inv[i] = initialInvariant(a, len(m.adj[i]))
		fp[int(inv[i]%uint64(e.bitLength))]++
	}
	next := make([]uint64, n)
	for r := 1; r <= e.radius; r++ {
		for i := range m.Atoms {
			next[i] = extendInvariant(m, inv, i)
			fp[int(next[i]%uint64(e.bitLength))]++
		}
		inv, next = next, inv
	}
	return fp
}

// initialInvariant hashes the atom-local properties that seed the circular
// environment: element, degree, charge and aromaticity.
func initialInvariant(a Atom, degree int) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeU64(uint64(a.AtomicNum))
	writeU64(uint64(degree))
	writeU64(uint64(int64(a.Charge) & 0xff))
	if a.Aromatic {
		writeU64(1)
	} else {
		writeU64(0)
	}
	return h.Sum64()
}

// extendInvariant grows an atom's environment by one bond. Neighbor
// contributions are sorted before hashing so the result does not depend on
// atom input order.
func extendInvariant(m *Mol, inv []uint64, atom int) uint64 {
	nbrs := make([]uint64, 0, len(m.adj[atom]))
	for _, bi := range m.adj[atom] {
		b := m.Bonds[bi]
		other := b.A
		if other == atom {
			other = b.B
		}
		order := uint64(b.Order)
		if b.Aromatic {
			order = 4 // distinct code so aromatic rings hash apart from Kekulé forms
		}
		nbrs = append(nbrs, order<<56|inv[other]>>8)
	}
	sort.Slice(nbrs, func(i, j int) bool { return nbrs[i] < nbrs[j] })

	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], inv[atom])
	h.Write(buf[:])
	for _, v := range nbrs {
		binary.BigEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	return h.Sum64()
}
