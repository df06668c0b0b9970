package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSerialNumber(t *testing.T) {
	require.NoError(t, CheckSerialNumber("kit serial number", "KIT-001"))

	err := CheckSerialNumber("kit serial number", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	err = CheckSerialNumber("cell serial number", strings.Repeat("A", MaxSerialLength+1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestCheckSerialNumberIsExact(t *testing.T) {
	// Whitespace is not trimmed; serial numbers are matched verbatim.
	require.NoError(t, CheckSerialNumber("cell serial number", " CELL-001 "))
}

func TestCheckAllocationRequest(t *testing.T) {
	tests := []struct {
		name    string
		kit     string
		cells   []string
		wantErr string
	}{
		{"ok", "KIT-1", []string{"A", "B", "C"}, ""},
		{"single cell", "KIT-1", []string{"A"}, ""},
		{"missing kit serial", "", []string{"A"}, "kit serial number is required"},
		{"nil cells", "KIT-1", nil, "at least one cell"},
		{"empty cells", "KIT-1", []string{}, "at least one cell"},
		{"blank cell serial", "KIT-1", []string{"A", ""}, "cell serial number at index 1"},
		{"duplicate cells", "KIT-1", []string{"A", "B", "A"}, `duplicate cell serial number "A"`},
		{"case-sensitive no dup", "KIT-1", []string{"a", "A"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAllocationRequest(tt.kit, tt.cells)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCheckOperatorName(t *testing.T) {
	require.NoError(t, CheckOperatorName("J. Operator"))
	require.Error(t, CheckOperatorName(""))
}
