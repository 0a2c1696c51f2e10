package resource

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesCode(t *testing.T) {
	err := NotFound("Zone", "z1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
}

func TestErrorHelpersSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("update: %w", Conflict("Zone", "z1", "revision changed"))

	assert.True(t, IsConflict(err))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, IsValidation(err))
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "resource",
			err:  NotFound("Zone", "z1"),
			want: "NOT_FOUND: resource not found (model=Zone, id=z1)",
		},
		{
			name: "revision",
			err:  RevisionNotFound("Zone", "z1", "r9"),
			want: "NOT_FOUND: revision not found (model=Zone, id=z1, revision=r9)",
		},
		{
			name: "blob",
			err:  BlobNotFound("b1"),
			want: "NOT_FOUND: blob b1 not found",
		},
		{
			name: "no ids",
			err:  MigrationPath("v1", "v3"),
			want: `MIGRATION_PATH: no migration path from "v1" to "v3"`,
		},
		{
			name: "cause",
			err:  Validation("Zone", errors.New("name is required")),
			want: "VALIDATION: payload failed validation: name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestValidationUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Validation("Zone", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsValidation(err))
}

func TestErrorCodesAreDistinct(t *testing.T) {
	checks := map[ErrorCode]func(error) bool{
		CodeNotFound:          IsNotFound,
		CodeResourceIsDeleted: IsResourceIsDeleted,
		CodeConflict:          IsConflict,
		CodeValidation:        IsValidation,
		CodeInvalidState:      IsInvalidState,
		CodeMigrationPath:     IsMigrationPath,
		CodeConfiguration:     IsConfiguration,
	}

	for code := range checks {
		err := &Error{Code: code}
		for other, check := range checks {
			assert.Equal(t, code == other, check(err), "%s checked as %s", code, other)
		}
	}
}
