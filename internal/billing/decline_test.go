package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_CardErrorMessage_KnownCodes(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{
			code: "insufficient_funds",
			want: "Your card has insufficient funds to complete this transaction.",
		},
		{
			code: "incorrect_number",
			want: "Your card number is incorrect. Please enter the correct number and try again.",
		},
		{
			code: "fraudulent",
			want: "This transaction has been flagged as potentially fraudulent. Contact your bank for more information.",
		},
		{
			code: "processing_error",
			want: "An error occurred while processing the card. Please try again.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, CardErrorMessage(tt.code))
		})
	}
}

func Test_CardErrorMessage_UnknownCodeFallsBackToGeneric(t *testing.T) {
	for _, code := range []string{"", "generic_decline", "not_a_real_code"} {
		assert.Equal(t, genericDeclineMessage, CardErrorMessage(code))
	}
}

func Test_StripeError_IsDeclined(t *testing.T) {
	tests := []struct {
		name string
		err  StripeError
		want bool
	}{
		{
			name: "card_declined code",
			err:  StripeError{Code: "card_declined"},
			want: true,
		},
		{
			name: "decline code without card_declined",
			err:  StripeError{Code: "processing_error", DeclineCode: "insufficient_funds"},
			want: true,
		},
		{
			name: "plain api error",
			err:  StripeError{Code: "resource_missing"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsDeclined())
		})
	}
}
