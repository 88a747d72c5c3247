package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		wantErr  bool
	}{
		{"Valid", "correct horse", "alice", false},
		{"Too short", "abc12", "alice", true},
		{"All digits", "1234567890", "alice", true},
		{"Contains username", "Alice2024!", "alice", true},
		{"No username to compare", "alice2024!", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.username)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
