package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrOutcomeFlag       = errors.New("pass, fail, abort and pending must be 0 or 1")
	ErrMultipleOutcomes  = errors.New("only one of pass, fail, abort and pending can be 1")
	ErrOfferedQuantity   = errors.New("offered qty ctn cannot be greater than offered qty packs")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidYear       = errors.New("invalid year")
	ErrMissingDate       = errors.New("inspection date is required")
	ErrMissingInspection = errors.New("inspection id is required")
	ErrMissingInspector  = errors.New("inspector name is required")
	ErrLettersOnly       = errors.New("only letters and spaces are allowed")
	ErrNegativeValue     = errors.New("numeric fields cannot be negative")
)

// DeriveStatus returns the status label for the outcome flag set to 1,
// or "" when none is set.
func DeriveStatus(r InspectionRecord) string {
	switch {
	case r.Get(FieldPass) == 1:
		return StatusPassed
	case r.Get(FieldFail) == 1:
		return StatusFailed
	case r.Get(FieldPending) == 1:
		return StatusPending
	case r.Get(FieldAbort) == 1:
		return StatusAborted
	}
	return ""
}

// Validate checks the rules applied when a record is created or edited.
// Every violation is reported; the result wraps each sentinel.
func (r InspectionRecord) Validate() error {
	var errs []error

	set := 0
	for _, f := range OutcomeFields {
		switch r.Get(f) {
		case 0:
		case 1:
			set++
		default:
			errs = append(errs, fmt.Errorf("%s: %w", f, ErrOutcomeFlag))
		}
	}
	if set > 1 {
		errs = append(errs, ErrMultipleOutcomes)
	}

	for f := Field(0); f < NumFields; f++ {
		if r.Counts[f] < 0 {
			errs = append(errs, fmt.Errorf("%s: %w", f, ErrNegativeValue))
		}
	}

	if r.Get(FieldOfferedQtyCtn) > r.Get(FieldOfferedQtyPacks) {
		errs = append(errs, ErrOfferedQuantity)
	}
	if !isMonth(r.Month) {
		errs = append(errs, fmt.Errorf("%q: %w", r.Month, ErrInvalidMonth))
	}
	if r.Year <= 0 {
		errs = append(errs, ErrInvalidYear)
	}
	if r.InspectionDate.IsZero() {
		errs = append(errs, ErrMissingDate)
	}
	if strings.TrimSpace(r.InspectionID) == "" {
		errs = append(errs, ErrMissingInspection)
	}
	if strings.TrimSpace(r.InspectorName) == "" {
		errs = append(errs, ErrMissingInspector)
	}

	texts := []struct{ key, value string }{
		{KeyInspectorName, r.InspectorName},
		{KeyInspectionType, r.InspectionType},
		{KeyServicePerformed, r.ServicePerformed},
	}
	for _, t := range texts {
		if !lettersOnly(t.value) {
			errs = append(errs, fmt.Errorf("%s: %w", t.key, ErrLettersOnly))
		}
	}

	return errors.Join(errs...)
}

func isMonth(m string) bool {
	for _, name := range Months {
		if m == name {
			return true
		}
	}
	return false
}

func lettersOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
