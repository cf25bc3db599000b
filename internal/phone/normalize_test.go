package phone_test

import (
	"errors"
	"testing"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/aniladanir/sms-campaign-service/internal/phone"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "already canonical", raw: "+254712345678", want: "+254712345678"},
		{name: "spaces and dashes", raw: "+254 712-345 678", want: "+254712345678"},
		{name: "parentheses", raw: "+1 (415) 555-0100", want: "+14155550100"},
		{name: "inner plus dropped", raw: "+254+712", want: "+254712"},
		{name: "no country code", raw: "0712345678", wantErr: true},
		{name: "plus after digits", raw: "0712+345", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := phone.Normalize(tt.raw)
			if tt.wantErr {
				var fe *domain.FormatError
				assert.True(t, errors.As(err, &fe), "expected FormatError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, phone.Validate("+254712345678"))
	assert.NoError(t, phone.Validate("+25471234"))
	assert.NoError(t, phone.Validate("+12"))

	for _, n := range []string{"+0712345678", "+1", "+1234567890123456", "254712345678", "+"} {
		var ve *domain.ValidationError
		assert.True(t, errors.As(phone.Validate(n), &ve), "expected ValidationError for %q", n)
	}
}

func TestCanonicalize(t *testing.T) {
	n, err := phone.Canonicalize(" +254 700 000 001 ")
	require.NoError(t, err)
	assert.Equal(t, "+254700000001", n)

	_, err = phone.Canonicalize("0712345678")
	var fe *domain.FormatError
	assert.ErrorAs(t, err, &fe)

	_, err = phone.Canonicalize("+0000")
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "KE", phone.Region("+254712345678"))
	assert.Equal(t, "US", phone.Region("+16502530000"))
	assert.Equal(t, phone.UnknownRegion, phone.Region("not a number"))
}
