package state

import (
	"fmt"
)

// HashCheck is the outcome of comparing a ring hash with the previous run.
type HashCheck int

// Possible hash comparison outcomes.
const (
	HashUnchecked HashCheck = iota
	HashConsistent
	HashChanged
)

// Comparison describes a hash check against a previous record.
type Comparison struct {
	Check    HashCheck
	Previous Record
}

// String renders the comparison for the report, empty if nothing was compared.
func (c Comparison) String() string {
	switch c.Check {
	case HashConsistent:
		return fmt.Sprintf("consistent with run %s", c.Previous.RunID)
	case HashChanged:
		return fmt.Sprintf("differs from run %s (%s...), advisory", c.Previous.RunID, c.Previous.RingHash[:min(16, len(c.Previous.RingHash))])
	default:
		return ""
	}
}

// Compare checks the ring hash of cur against prev. Hashes are only compared when both are
// present and both runs used the same parameters.
func Compare(prev Record, cur Record) Comparison {
	c := Comparison{Previous: prev}

	if prev.RingHash == "" || cur.RingHash == "" || prev.Params != cur.Params {
		return c
	}

	if prev.RingHash == cur.RingHash {
		c.Check = HashConsistent
	} else {
		c.Check = HashChanged
	}

	return c
}
