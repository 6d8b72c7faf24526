package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Username string `validate:"required,min=3,max=30"`
	Password string `validate:"required,min=8"`
	Nickname string `validate:"omitempty,max=50"`
}

func TestValidate_OK(t *testing.T) {
	err := Validate(signupForm{Username: "alice", Password: "password1"})
	assert.NoError(t, err)
}

func TestValidate_MissingRequired(t *testing.T) {
	err := Validate(signupForm{Password: "password1"})
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Equal(t, "is required", valErr.Fields()["Username"])
}

func TestValidate_TooShort(t *testing.T) {
	err := Validate(signupForm{Username: "alice", Password: "pw"})
	require.Error(t, err)

	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Fields()["Password"], "at least 8")
	assert.Contains(t, valErr.Error(), "Password")
}
