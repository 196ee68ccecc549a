package deadline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContractType(t *testing.T) {
	tests := []struct {
		in   string
		want ContractType
	}{
		{"exclusive_right", ExclusiveRight},
		{"EXCLUSIVE_RIGHT", ExclusiveRight},
		{"専属専任", ExclusiveRight},
		{"exclusive", Exclusive},
		{"専任媒介", Exclusive},
		{" general ", General},
		{"一般", General},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseContractType(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseContractType("open")
	assert.ErrorIs(t, err, ErrInvalidContractType)
}

func TestContractTypeLabels(t *testing.T) {
	assert.Equal(t, "専属専任", ExclusiveRight.Label())
	assert.Equal(t, "専任", Exclusive.Label())
	assert.Equal(t, "一般", General.Label())

	assert.Equal(t, "週1回", ExclusiveRight.FrequencyLabel())
	assert.Equal(t, "2週に1回", Exclusive.FrequencyLabel())
	assert.Equal(t, "任意", General.FrequencyLabel())

	assert.True(t, General.Valid())
	assert.False(t, ContractType("open").Valid())
}

func TestFormatJP(t *testing.T) {
	assert.Equal(t, "2024年1月8日", FormatJP(Date(2024, 1, 8)))
}
