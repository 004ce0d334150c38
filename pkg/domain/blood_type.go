package domain

import (
	"strings"

	dErrors "bloodlink/pkg/domain-errors"
)

// BloodType is a domain value identifying an ABO/Rh blood group.
// Invariant: the value is one of the eight supported groups.
//
// Usage: construct via ParseBloodType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type BloodType string

// The eight supported blood groups.
const (
	BloodAPos  BloodType = "A+"
	BloodANeg  BloodType = "A-"
	BloodBPos  BloodType = "B+"
	BloodBNeg  BloodType = "B-"
	BloodABPos BloodType = "AB+"
	BloodABNeg BloodType = "AB-"
	BloodOPos  BloodType = "O+"
	BloodONeg  BloodType = "O-"
)

// BloodTypes lists every supported group in display order.
func BloodTypes() []BloodType {
	return []BloodType{
		BloodAPos, BloodANeg,
		BloodBPos, BloodBNeg,
		BloodABPos, BloodABNeg,
		BloodOPos, BloodONeg,
	}
}

// validBloodTypes is the single source of truth for valid groups.
var validBloodTypes = map[BloodType]bool{
	BloodAPos: true, BloodANeg: true,
	BloodBPos: true, BloodBNeg: true,
	BloodABPos: true, BloodABNeg: true,
	BloodOPos: true, BloodONeg: true,
}

// ParseBloodType constructs a BloodType from external input. Input is
// upper-cased and trimmed first, so "o-" and " AB+ " are accepted.
//
// Errors: returns CodeInvalidInput when the value is empty or not one of the
// eight groups; no other errors are expected.
func ParseBloodType(s string) (BloodType, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "blood type cannot be empty")
	}
	bt := BloodType(s)
	if !bt.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid blood type")
	}
	return bt, nil
}

// IsValid checks if the blood type is one of the supported groups.
func (bt BloodType) IsValid() bool {
	return validBloodTypes[bt]
}

// ABO returns the ABO component ("A", "B", "AB", "O").
func (bt BloodType) ABO() string {
	return strings.TrimRight(string(bt), "+-")
}

// RhPositive reports whether the group carries the Rh antigen.
func (bt BloodType) RhPositive() bool {
	return strings.HasSuffix(string(bt), "+")
}

// String returns the display form of the blood type.
func (bt BloodType) String() string {
	return string(bt)
}
