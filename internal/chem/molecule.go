// Package chem provides molecular graph parsing and structural fingerprint
// calculation for the synthesizability scorer. Molecules are supplied as
// SMILES strings and converted into fixed-length integer count vectors that
// serve as the sole feature representation used by the models.
package chem

import (
	"fmt"
	"strings"
)

// InvalidStructureError reports a SMILES string that could not be parsed
// into a valid molecular graph.
type InvalidStructureError struct {
	SMILES string
	Pos    int
	Reason string
}

func (e *InvalidStructureError) Error() string {
	return fmt.Sprintf("invalid structure %q at position %d: %s", e.SMILES, e.Pos, e.Reason)
}

// Atom is a single node in the molecular graph.
type Atom struct {
	Symbol    string
	AtomicNum int
	Charge    int
	Aromatic  bool
	// HCount is the hydrogen count attached to this atom. For bracket atoms
	// it is the explicit count from the SMILES; for organic-subset atoms it
	// is filled in from standard valence rules after parsing.
	HCount int
	// explicitH marks bracket atoms, whose hydrogen count must not be
	// recomputed from valence.
	explicitH bool
}

// Bond connects two atoms by index. Order is 1, 2 or 3; aromatic bonds
// carry Order 1 with Aromatic set.
type Bond struct {
	A, B     int
	Order    int
	Aromatic bool
}

// Mol is a parsed molecular graph.
type Mol struct {
	Atoms []Atom
	Bonds []Bond
	adj   [][]int // neighbor bond indices per atom
}

var atomicNums = map[string]int{
	"H": 1, "B": 5, "C": 6, "N": 7, "O": 8, "F": 9,
	"P": 15, "S": 16, "Cl": 17, "Br": 35, "I": 53,
	"Si": 14, "Se": 34, "As": 33, "Li": 3, "Na": 11, "K": 19,
	"Mg": 12, "Ca": 20, "Fe": 26, "Zn": 30, "Cu": 29, "Sn": 50,
}

// normalValences lists the accepted valence states for organic-subset
// elements, lowest first. Implicit hydrogens fill up to the smallest
// valence that covers the existing bond order sum.
var normalValences = map[int][]int{
	5:  {3},
	6:  {4},
	7:  {3, 5},
	8:  {2},
	9:  {1},
	15: {3, 5},
	16: {2, 4, 6},
	17: {1},
	35: {1},
	53: {1},
}

type ringBond struct {
	atom  int
	order int
}

// ParseSMILES converts a SMILES string into a molecular graph. Only the
// commonly used subset is supported: organic-subset atoms, bracket atoms
// with charge and hydrogen counts, branches, ring closures (including %nn)
// and single/double/triple/aromatic bonds. Stereo markers are accepted and
// ignored.
func ParseSMILES(s string) (*Mol, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &InvalidStructureError{SMILES: s, Pos: 0, Reason: "empty SMILES"}
	}
	mol := &Mol{}
	var (
		prev      = -1     // index of the previous atom in the chain
		bondOrder = 0      // pending bond order, 0 means default single
		bondArom  = false  // pending bond is aromatic
		stack     []int    // branch return points
		rings     = map[int]ringBond{}
	)
	addBond := func(a, b, order int, aromatic bool) {
		mol.Bonds = append(mol.Bonds, Bond{A: a, B: b, Order: order, Aromatic: aromatic})
	}
	attach := func(idx int) {
		if prev >= 0 {
			order := bondOrder
			arom := bondArom
			if order == 0 {
				order = 1
				if mol.Atoms[prev].Aromatic && mol.Atoms[idx].Aromatic {
					arom = true
				}
			}
			addBond(prev, idx, order, arom)
		}
		prev = idx
		bondOrder = 0
		bondArom = false
	}
	closeRing := func(num, pos int) error {
		if open, ok := rings[num]; ok {
			delete(rings, num)
			order := bondOrder
			if order == 0 {
				order = open.order
			}
			arom := bondArom
			if order == 0 {
				order = 1
				if mol.Atoms[open.atom].Aromatic && mol.Atoms[prev].Aromatic {
					arom = true
				}
			}
			if open.atom == prev {
				return &InvalidStructureError{SMILES: s, Pos: pos, Reason: "ring bond to self"}
			}
			addBond(open.atom, prev, order, arom)
		} else {
			rings[num] = ringBond{atom: prev, order: bondOrder}
		}
		bondOrder = 0
		bondArom = false
		return nil
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '(':
			if prev < 0 {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "branch before any atom"}
			}
			stack = append(stack, prev)
			i++
		case c == ')':
			if len(stack) == 0 {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "unmatched closing parenthesis"}
			}
			prev = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			i++
		case c == '-':
			bondOrder = 1
			i++
		case c == '=':
			bondOrder = 2
			i++
		case c == '#':
			bondOrder = 3
			i++
		case c == ':':
			bondOrder = 1
			bondArom = true
			i++
		case c == '/' || c == '\\':
			// stereo bond direction, treated as a plain single bond
			bondOrder = 1
			i++
		case c == '.':
			prev = -1
			bondOrder = 0
			i++
		case c >= '0' && c <= '9':
			if prev < 0 {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "ring closure before any atom"}
			}
			if err := closeRing(int(c-'0'), i); err != nil {
				return nil, err
			}
			i++
		case c == '%':
			if i+2 >= len(s) || !isDigit(s[i+1]) || !isDigit(s[i+2]) {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "malformed %nn ring closure"}
			}
			if prev < 0 {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "ring closure before any atom"}
			}
			num := int(s[i+1]-'0')*10 + int(s[i+2]-'0')
			if err := closeRing(num, i); err != nil {
				return nil, err
			}
			i += 3
		case c == '[':
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, &InvalidStructureError{SMILES: s, Pos: i, Reason: "unterminated bracket atom"}
			}
			atom, err := parseBracketAtom(s[i+1:i+end], s, i)
			if err != nil {
				return nil, err
			}
			mol.Atoms = append(mol.Atoms, atom)
			attach(len(mol.Atoms) - 1)
			i += end + 1
		default:
			atom, width, err := parseOrganicAtom(s, i)
			if err != nil {
				return nil, err
			}
			mol.Atoms = append(mol.Atoms, atom)
			attach(len(mol.Atoms) - 1)
			i += width
		}
	}
	if len(stack) != 0 {
		return nil, &InvalidStructureError{SMILES: s, Pos: len(s), Reason: "unmatched opening parenthesis"}
	}
	if len(rings) != 0 {
		return nil, &InvalidStructureError{SMILES: s, Pos: len(s), Reason: "unclosed ring bond"}
	}
	if len(mol.Atoms) == 0 {
		return nil, &InvalidStructureError{SMILES: s, Pos: 0, Reason: "no atoms"}
	}
	mol.buildAdjacency()
	mol.assignImplicitHydrogens()
	return mol, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func parseOrganicAtom(s string, i int) (Atom, int, error) {
	// two-letter symbols first
	if i+1 < len(s) {
		two := s[i : i+2]
		if two == "Cl" || two == "Br" {
			return Atom{Symbol: two, AtomicNum: atomicNums[two]}, 2, nil
		}
	}
	c := s[i]
	switch c {
	case 'B', 'C', 'N', 'O', 'P', 'S', 'F', 'I':
		sym := string(c)
		return Atom{Symbol: sym, AtomicNum: atomicNums[sym]}, 1, nil
	case 'b', 'c', 'n', 'o', 'p', 's':
		sym := strings.ToUpper(string(c))
		return Atom{Symbol: sym, AtomicNum: atomicNums[sym], Aromatic: true}, 1, nil
	}
	return Atom{}, 0, &InvalidStructureError{SMILES: s, Pos: i, Reason: fmt.Sprintf("unexpected character %q", c)}
}

// parseBracketAtom parses the inside of a [...] atom: optional isotope,
// element symbol, optional chirality, optional H count, optional charge.
func parseBracketAtom(body, full string, pos int) (Atom, error) {
	atom := Atom{explicitH: true}
	i := 0
	for i < len(body) && isDigit(body[i]) {
		i++ // isotope, ignored
	}
	if i >= len(body) {
		return atom, &InvalidStructureError{SMILES: full, Pos: pos, Reason: "bracket atom without element"}
	}
	// element symbol, possibly lowercase aromatic
	sym := ""
	if body[i] >= 'A' && body[i] <= 'Z' {
		sym = string(body[i])
		i++
		if i < len(body) && body[i] >= 'a' && body[i] <= 'z' && body[i] != 'h' {
			if _, ok := atomicNums[sym+string(body[i])]; ok {
				sym += string(body[i])
				i++
			}
		}
	} else if body[i] >= 'a' && body[i] <= 'z' {
		sym = strings.ToUpper(string(body[i]))
		atom.Aromatic = true
		i++
	}
	num, ok := atomicNums[sym]
	if !ok {
		return atom, &InvalidStructureError{SMILES: full, Pos: pos, Reason: fmt.Sprintf("unknown element %q", sym)}
	}
	atom.Symbol = sym
	atom.AtomicNum = num
	for i < len(body) {
		switch body[i] {
		case '@':
			i++ // chirality, ignored
		case 'H':
			i++
			n := 1
			if i < len(body) && isDigit(body[i]) {
				n = int(body[i] - '0')
				i++
			}
			atom.HCount = n
		case '+', '-':
			sign := 1
			if body[i] == '-' {
				sign = -1
			}
			i++
			n := 1
			if i < len(body) && isDigit(body[i]) {
				n = int(body[i] - '0')
				i++
			} else {
				for i < len(body) && (body[i] == '+' || body[i] == '-') {
					n++
					i++
				}
			}
			atom.Charge = sign * n
		default:
			return atom, &InvalidStructureError{SMILES: full, Pos: pos, Reason: fmt.Sprintf("unexpected %q in bracket atom", body[i])}
		}
	}
	return atom, nil
}

func (m *Mol) buildAdjacency() {
	m.adj = make([][]int, len(m.Atoms))
	for bi, b := range m.Bonds {
		m.adj[b.A] = append(m.adj[b.A], bi)
		m.adj[b.B] = append(m.adj[b.B], bi)
	}
}

// assignImplicitHydrogens fills HCount for organic-subset atoms from the
// smallest standard valence covering the current bond order sum. Bracket
// atoms keep their explicit count.
func (m *Mol) assignImplicitHydrogens() {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		if a.explicitH {
			continue
		}
		valences, ok := normalValences[a.AtomicNum]
		if !ok {
			continue
		}
		sum := 0.0
		for _, bi := range m.adj[i] {
			b := m.Bonds[bi]
			if b.Aromatic {
				sum += 1.5
			} else {
				sum += float64(b.Order)
			}
		}
		// aromatic bond order sums are half-integral; round up so that an
		// aromatic carbon with two ring bonds still receives one hydrogen
		used := int(sum + 0.5)
		for _, v := range valences {
			if used <= v {
				a.HCount = v - used
				break
			}
		}
	}
}

// NumAtoms returns the heavy atom count before hydrogen addition.
func (m *Mol) NumAtoms() int { return len(m.Atoms) }

// AddHydrogens returns a copy of the molecule with all implicit and
// explicit hydrogen counts materialized as graph atoms. Molecules that
// differ only in hydrogen representation become identical graphs, which
// keeps fingerprints consistent across input styles.
func (m *Mol) AddHydrogens() *Mol {
	out := &Mol{
		Atoms: make([]Atom, len(m.Atoms), len(m.Atoms)+8),
		Bonds: make([]Bond, len(m.Bonds), len(m.Bonds)+8),
	}
	copy(out.Atoms, m.Atoms)
	copy(out.Bonds, m.Bonds)
	for i := range m.Atoms {
		for h := 0; h < m.Atoms[i].HCount; h++ {
			out.Atoms = append(out.Atoms, Atom{Symbol: "H", AtomicNum: 1})
			out.Bonds = append(out.Bonds, Bond{A: i, B: len(out.Atoms) - 1, Order: 1})
		}
		out.Atoms[i].HCount = 0
	}
	out.buildAdjacency()
	return out
}
