package backtest

import "fmt"

// ParameterSet is one concrete assignment of strategy parameters. The map is
// dynamically typed at this boundary; each strategy validates and casts its
// parameters once at factory time.
type ParameterSet map[string]interface{}

// Clone returns an independent copy.
func (p ParameterSet) Clone() ParameterSet {
	out := make(ParameterSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String renders the set in sorted-insertion order for logs and reports.
func (p ParameterSet) String() string {
	return fmt.Sprintf("%v", map[string]interface{}(p))
}

// ParameterRange is one named dimension of the optimization grid.
type ParameterRange struct {
	Name   string
	Values []interface{}
}

// IntRange builds an inclusive integer sweep.
func IntRange(name string, min, max, step int) ParameterRange {
	if step <= 0 {
		step = 1
	}
	var values []interface{}
	for v := min; v <= max; v += step {
		values = append(values, v)
	}
	return ParameterRange{Name: name, Values: values}
}

// FloatRange builds an inclusive float sweep. A small epsilon keeps the upper
// bound included despite accumulation error.
func FloatRange(name string, min, max, step float64) ParameterRange {
	if step <= 0 {
		return ParameterRange{Name: name, Values: []interface{}{min}}
	}
	var values []interface{}
	for v := min; v <= max+step/1e6; v += step {
		values = append(values, v)
	}
	return ParameterRange{Name: name, Values: values}
}

// CartesianProduct enumerates every combination of the given ranges, yielding
// a fresh ParameterSet per combination in the generator's natural order.
func CartesianProduct(ranges []ParameterRange) []ParameterSet {
	if len(ranges) == 0 {
		return nil
	}

	var out []ParameterSet
	current := make(ParameterSet, len(ranges))

	var recurse func(depth int)
	recurse = func(depth int) {
		if depth == len(ranges) {
			out = append(out, current.Clone())
			return
		}
		for _, value := range ranges[depth].Values {
			current[ranges[depth].Name] = value
			recurse(depth + 1)
		}
	}
	recurse(0)

	return out
}

// TotalCombinations returns the grid size without materializing it.
func TotalCombinations(ranges []ParameterRange) int {
	if len(ranges) == 0 {
		return 0
	}
	total := 1
	for _, r := range ranges {
		total *= len(r.Values)
	}
	return total
}
