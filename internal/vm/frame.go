package vm

import "boruna/internal/value"

// frame is one call-stack entry (spec.md §4.1 Call/Return algorithm).
type frame struct {
	funcIdx   int
	ip        int
	locals    []value.Value
	stackBase int
}
