package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("rolling back transaction: bad conn")
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "calculating P.5")))
	assert.False(t, IsShutdown(errors.New("rolling back transaction")))
	assert.False(t, IsShutdown(nil))
}

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "wrapped", err: NewValidationError(errors.New("bad marks")), want: "bad marks"},
		{name: "field", err: NewValidationError(nil, FieldError{Field: "id", Error: "required"}), want: "id: required"},
		{name: "empty", err: NewValidationError(nil), want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
