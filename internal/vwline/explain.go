package vwline

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Element is one namespace^feature pair of an audit feature name.
// Quadratic and higher interactions carry several elements for one weight.
type Element struct {
	Namespace string
	Feature   string
}

// Contribution is one feature's share of an audited prediction.
type Contribution struct {
	Names        []Element
	OriginalName string  // feature name as VW printed it, e.g. "c^c8*f^f102"
	HashIndex    int64   // VW's internal hash of the feature name
	Value        float64 // feature value on the input line
	Weight       float64 // weight learned for the feature
	// Potential is Value*Weight; RelativePotential is |Potential| divided
	// by the sum of |Potential| over all features of the line.
	Potential         float64
	RelativePotential float64
}

// ParseExplanation turns the audit explanation emitted for one line into
// contributions sorted by descending relative potential.
//
// The audit format is tab-separated records of name:hashindex:value:weight,
// where weight may carry an "@average" suffix that is ignored here.
func ParseExplanation(explanation string) ([]Contribution, error) {
	raw := strings.Split(strings.TrimSpace(explanation), "\t")
	contribs := make([]Contribution, 0, len(raw))
	potentialSum := 0.0
	for _, rec := range raw {
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, ":")
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed audit record %q: want name:hash:value:weight", rec)
		}
		hash, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed audit record %q: hash: %w", rec, err)
		}
		value, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed audit record %q: value: %w", rec, err)
		}
		weightField, _, _ := strings.Cut(fields[3], "@")
		weight, err := strconv.ParseFloat(weightField, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed audit record %q: weight: %w", rec, err)
		}

		name := fields[0]
		parts := strings.Split(name, "*")
		names := make([]Element, len(parts))
		for i, part := range parts {
			names[i] = parseElement(part)
		}
		contribs = append(contribs, Contribution{
			Names:        names,
			OriginalName: name,
			HashIndex:    hash,
			Value:        value,
			Weight:       weight,
			Potential:    value * weight,
		})
		potentialSum += math.Abs(value * weight)
	}
	if potentialSum == 0 {
		// All-zero weights, e.g. an untrained model. Keep relative
		// potentials defined.
		potentialSum = 1
	}
	for i := range contribs {
		contribs[i].RelativePotential = math.Abs(contribs[i].Potential / potentialSum)
	}
	sort.SliceStable(contribs, func(i, j int) bool {
		return contribs[i].RelativePotential > contribs[j].RelativePotential
	})
	return contribs, nil
}

// parseElement splits one "namespace^feature" element; a bare element has
// no namespace.
func parseElement(element string) Element {
	ns, feat, found := strings.Cut(element, "^")
	if !found {
		return Element{Feature: element}
	}
	return Element{Namespace: ns, Feature: feat}
}

// RenderExplanation renders contributions as an aligned text table, most
// influential feature first.
func RenderExplanation(contribs []Contribution) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tVALUE\tWEIGHT\tPOTENTIAL\tRELATIVE")
	for _, c := range contribs {
		fmt.Fprintf(w, "%s\t%g\t%g\t%+.4f\t%5.1f%%\n",
			c.OriginalName, c.Value, c.Weight, c.Potential, c.RelativePotential*100)
	}
	w.Flush()
	return b.String()
}
