package validation

import (
	"fmt"
)

// MaxSerialLength bounds serial numbers well above anything a real barcode
// carries while keeping obviously broken scanner input out of the database.
const MaxSerialLength = 256

// CheckSerialNumber rejects empty or oversized serial numbers. Serial
// numbers are matched exactly everywhere else (case-sensitive, no
// normalization), so nothing is trimmed here.
func CheckSerialNumber(field, serial string) error {
	if serial == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(serial) > MaxSerialLength {
		return fmt.Errorf("%s exceeds %d characters", field, MaxSerialLength)
	}
	return nil
}

// CheckAllocationRequest validates an allocation request before any
// transaction starts. Internal duplicates in the cell list are rejected up
// front rather than letting the unique constraint fire mid-transaction.
func CheckAllocationRequest(kitSerialNumber string, cellSerialNumbers []string) error {
	if err := CheckSerialNumber("kit serial number", kitSerialNumber); err != nil {
		return err
	}
	if len(cellSerialNumbers) == 0 {
		return fmt.Errorf("at least one cell serial number is required")
	}
	seen := make(map[string]struct{}, len(cellSerialNumbers))
	for i, cell := range cellSerialNumbers {
		if err := CheckSerialNumber(fmt.Sprintf("cell serial number at index %d", i), cell); err != nil {
			return err
		}
		if _, dup := seen[cell]; dup {
			return fmt.Errorf("duplicate cell serial number %q in request", cell)
		}
		seen[cell] = struct{}{}
	}
	return nil
}

// CheckOperatorName rejects a missing operator name.
func CheckOperatorName(operatorName string) error {
	if operatorName == "" {
		return fmt.Errorf("operator name is required")
	}
	return nil
}
