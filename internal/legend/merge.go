package legend

import "github.com/zombor/bead-tracker/internal/colorcode"

// Merge reconciles the normal and inverted passes into one list with a
// single entry per normalized code, sorted by code.
//
// A quantity of 1 is usually the parser's default rather than a printed
// count, so a later count above 1 replaces it. Otherwise the strictly larger
// count wins and ties keep the first value seen.
func Merge(primary, secondary []colorcode.Requirement) []colorcode.Requirement {
	merged := make(map[string]int)
	order := make([]string, 0, len(primary)+len(secondary))

	all := make([]colorcode.Requirement, 0, len(primary)+len(secondary))
	all = append(all, primary...)
	all = append(all, secondary...)

	for _, row := range all {
		code := colorcode.Normalize(row.Code)
		if code == "" {
			continue
		}
		current, seen := merged[code]
		switch {
		case !seen:
			merged[code] = row.Quantity
			order = append(order, code)
		case current <= 1 && row.Quantity > 1:
			merged[code] = row.Quantity
		case row.Quantity > current:
			merged[code] = row.Quantity
		}
	}

	out := make([]colorcode.Requirement, 0, len(order))
	for _, code := range order {
		out = append(out, colorcode.Requirement{Code: code, Quantity: merged[code]})
	}
	colorcode.Sort(out)
	return out
}
