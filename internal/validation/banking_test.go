package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIBAN(t *testing.T) {
	tests := []struct {
		iban string
		want bool
	}{
		{"DE89 3704 0044 0532 0130 00", true},
		{"GB82WEST12345698765432", true},
		{"gb82 west 1234 5698 7654 32", true},
		{"GB82WEST12345698765431", false},
		{"DE89370400440532013", false},
		{"XX89370400440532013000", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.iban, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIBAN(tt.iban))
		})
	}
}

func TestValidABA(t *testing.T) {
	assert.True(t, ValidABA("021000021"))
	assert.True(t, ValidABA("011000015"))
	assert.False(t, ValidABA("021000022"))
	assert.False(t, ValidABA("02100002"))
	assert.False(t, ValidABA("00000000a"))
	assert.False(t, ValidABA("000000000"))
}

func TestValidBIC(t *testing.T) {
	assert.True(t, ValidBIC("DEUTDEFF"))
	assert.True(t, ValidBIC("deutdeff500"))
	assert.False(t, ValidBIC("DEUT"))
	assert.False(t, ValidBIC("DEUTDEFF5"))
}

func TestValidator_CollectsViolations(t *testing.T) {
	v := New()
	v.Required("recipient.name", " ")
	v.Currency("currency", "usd")
	v.AmountRange("amount", 0, MinTransferAmount, MaxDomesticTransferAmount)
	v.AmountRange("amount", -1, MinTransferAmount, MaxDomesticTransferAmount)
	v.MaxLength("description", "short", MaxDescriptionLength)
	v.Country("recipient.country", "US")

	require.False(t, v.Valid())
	violations := v.Violations()
	require.Len(t, violations, 3)
	assert.Equal(t, "amount", violations[0].Field)
	assert.Equal(t, "must be between 0.01 and 250000.00", violations[0].Message)
	assert.Equal(t, "currency", violations[1].Field)
	assert.Equal(t, "recipient.name", violations[2].Field)
}
