package errors

import (
	"context"
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusFromErr(t *testing.T) {
	notFound := NewError("plan not found").WithHint("Plan not found").Mark(ErrNotFound)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: notFound, want: http.StatusNotFound},
		{name: "validation", err: NewError("bad").Mark(ErrValidation), want: http.StatusBadRequest},
		{name: "invalid state", err: NewError("draft").Mark(ErrInvalidState), want: http.StatusConflict},
		{name: "permission denied", err: NewError("no").Mark(ErrPermissionDenied), want: http.StatusForbidden},
		{name: "signature", err: NewError("sig").Mark(ErrSignature), want: http.StatusBadRequest},
		{name: "provider", err: NewError("declined").Mark(ErrProvider), want: http.StatusBadGateway},
		{
			name: "outcome unknown",
			err:  WithError(context.DeadlineExceeded).Mark(ErrProviderOutcomeUnknown),
			want: http.StatusGatewayTimeout,
		},
		{
			name: "outermost mark wins",
			err:  WithError(notFound).WithHint("Plan does not exist").Mark(ErrValidation),
			want: http.StatusBadRequest,
		},
		{
			name: "wrapping keeps the mark",
			err:  errors.Wrap(NewError("dup").Mark(ErrAlreadyExists), "create coupon"),
			want: http.StatusConflict,
		},
		{name: "unmarked", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusFromErr(tt.err))
		})
	}
}

func TestPredicates(t *testing.T) {
	err := WithError(NewError("missing").Mark(ErrNotFound)).Mark(ErrValidation)

	assert.True(t, IsValidation(err))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidState(err))

	assert.True(t, IsProvider(NewError("sig").Mark(ErrSignature)))
	assert.True(t, IsOutcomeUnknown(WithError(context.DeadlineExceeded).Mark(ErrProviderOutcomeUnknown)))
}
