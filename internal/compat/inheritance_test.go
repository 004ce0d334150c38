package compat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	id "bloodlink/pkg/domain"
)

func TestPossibleChildTypes(t *testing.T) {
	tests := []struct {
		name    string
		parent1 id.BloodType
		parent2 id.BloodType
		want    []id.BloodType
	}{
		{
			name:    "two O- parents only produce O-",
			parent1: id.BloodONeg,
			parent2: id.BloodONeg,
			want:    []id.BloodType{id.BloodONeg},
		},
		{
			name:    "two O+ parents produce only O+",
			parent1: id.BloodOPos,
			parent2: id.BloodOPos,
			want:    []id.BloodType{id.BloodOPos},
		},
		{
			name:    "mixed Rh parents produce only positive children",
			parent1: id.BloodOPos,
			parent2: id.BloodONeg,
			want:    []id.BloodType{id.BloodOPos},
		},
		{
			name:    "A and B cover all four ABO groups",
			parent1: id.BloodAPos,
			parent2: id.BloodBPos,
			want: []id.BloodType{
				id.BloodAPos, id.BloodBPos, id.BloodABPos, id.BloodOPos,
			},
		},
		{
			name:    "AB parent never passes O allele",
			parent1: id.BloodABNeg,
			parent2: id.BloodABNeg,
			want:    []id.BloodType{id.BloodANeg, id.BloodBNeg, id.BloodABNeg},
		},
		{
			name:    "AB and O yield A or B but never AB or O",
			parent1: id.BloodABPos,
			parent2: id.BloodONeg,
			want:    []id.BloodType{id.BloodAPos, id.BloodBPos},
		},
		{
			name:    "A- and O- keep the child negative",
			parent1: id.BloodANeg,
			parent2: id.BloodONeg,
			want:    []id.BloodType{id.BloodANeg, id.BloodONeg},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PossibleChildTypes(tt.parent1, tt.parent2)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPossibleChildTypesSymmetric(t *testing.T) {
	for _, p1 := range id.BloodTypes() {
		for _, p2 := range id.BloodTypes() {
			assert.Equal(t,
				PossibleChildTypes(p1, p2),
				PossibleChildTypes(p2, p1),
				"parents %s and %s", p1, p2)
		}
	}
}

func TestFormatChildTypes(t *testing.T) {
	got := FormatChildTypes([]id.BloodType{id.BloodANeg, id.BloodONeg})
	assert.Equal(t, "A-, O-", got)
}
