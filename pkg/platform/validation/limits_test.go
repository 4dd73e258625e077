package validation

import (
	"strings"
	"testing"

	dErrors "identix/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckStringLength(t *testing.T) {
	assert.NoError(t, CheckStringLength("student_id", strings.Repeat("a", MaxIdentifierLength), MaxIdentifierLength))

	err := CheckStringLength("student_id", strings.Repeat("a", MaxIdentifierLength+1), MaxIdentifierLength)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.Contains(t, err.Error(), "student_id exceeds max length of 64")
}

type sample struct {
	StudentID   string `validate:"required,max=64"`
	Token       string `validate:"required,sampletoken"`
	HolderName  string `validate:"omitempty,notblank"`
	DocumentURI string `validate:"omitempty,uri"`
}

func TestValidate(t *testing.T) {
	RegisterStringRule("sampletoken", func(s string) bool { return strings.HasPrefix(s, "IDX-") })

	cases := []struct {
		name string
		req  sample
		msg  string
	}{
		{"ok", sample{StudentID: "CS2024001", Token: "IDX-A7B2C9"}, ""},
		{"missing", sample{Token: "IDX-A7B2C9"}, "student_id is required"},
		{"custom rule", sample{StudentID: "CS2024001", Token: "nope"}, "token is invalid"},
		{"blank", sample{StudentID: "CS2024001", Token: "IDX-A7B2C9", HolderName: "   "}, "holder_name must not be blank"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.req)
			if tc.msg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestTrimAll(t *testing.T) {
	a, b := "  CS2024001 ", "\tIDX-A7B2C9\n"
	TrimAll(&a, &b)
	assert.Equal(t, "CS2024001", a)
	assert.Equal(t, "IDX-A7B2C9", b)
}
