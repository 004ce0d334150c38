package compat

import (
	"sort"
	"strings"

	id "bloodlink/pkg/domain"
)

// alleles returns the ABO alleles a parent of the given group can pass on.
// Phenotype A or B may mask a recessive O allele, so both are considered.
func alleles(abo string) []string {
	switch abo {
	case "AB":
		return []string{"A", "B"}
	case "O":
		return []string{"O", "O"}
	default:
		return []string{abo, "O"}
	}
}

// genotypePhenotypes maps an unordered allele pair to the child phenotypes it
// can express.
var genotypePhenotypes = map[string][]string{
	"AA": {"A"},
	"AO": {"A", "O"},
	"BB": {"B"},
	"BO": {"B", "O"},
	"AB": {"A", "B", "AB"},
	"OO": {"O"},
}

// PossibleChildTypes returns every blood group a child of the two given
// parents could have. Parents must be valid groups; the result is sorted in
// canonical display order.
func PossibleChildTypes(parent1, parent2 id.BloodType) []id.BloodType {
	aboSet := make(map[string]bool)
	for _, a1 := range alleles(parent1.ABO()) {
		for _, a2 := range alleles(parent2.ABO()) {
			pair := a1 + a2
			if pair == "BA" || pair == "OA" || pair == "OB" {
				pair = string(pair[1]) + string(pair[0])
			}
			for _, pheno := range genotypePhenotypes[pair] {
				aboSet[pheno] = true
			}
		}
	}

	// RhD positive is dominant: a child of a positive parent shows positive,
	// and a negative child needs two negative parents.
	var rhs []string
	if parent1.RhPositive() || parent2.RhPositive() {
		rhs = []string{"+"}
	} else {
		rhs = []string{"-"}
	}

	seen := make(map[id.BloodType]bool)
	for abo := range aboSet {
		for _, rh := range rhs {
			bt, err := id.ParseBloodType(abo + rh)
			if err != nil {
				continue
			}
			seen[bt] = true
		}
	}

	order := id.BloodTypes()
	rank := make(map[id.BloodType]int, len(order))
	for i, bt := range order {
		rank[bt] = i
	}
	out := make([]id.BloodType, 0, len(seen))
	for bt := range seen {
		out = append(out, bt)
	}
	sort.Slice(out, func(i, j int) bool { return rank[out[i]] < rank[out[j]] })
	return out
}

// FormatChildTypes renders the possibilities the way the checker page shows
// them, e.g. "A+, A-, O+, O-".
func FormatChildTypes(types []id.BloodType) string {
	parts := make([]string, len(types))
	for i, bt := range types {
		parts[i] = bt.String()
	}
	return strings.Join(parts, ", ")
}
