package password

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGetHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{name: "regular password", password: "password123"},
		{name: "password with special chars", password: "p@ssw0rd!@#$%^&*()"},
		{name: "short password", password: "a"},
		{name: "unicode password", password: "пароль-коробка"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotHash, err := GetHash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, gotHash)
			assert.NotEqual(t, tt.password, gotHash)

			cost, err := bcrypt.Cost([]byte(gotHash))
			require.NoError(t, err)
			assert.Equal(t, Cost, cost)

			assert.NoError(t, CompareHash(gotHash, tt.password))
		})
	}
}

func TestGetHash_Salted(t *testing.T) {
	h1, err := GetHash("same-password")
	require.NoError(t, err)
	h2, err := GetHash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestCompareHash(t *testing.T) {
	correctHash, err := GetHash("correct_password")
	require.NoError(t, err)

	tests := []struct {
		name         string
		hash         string
		password     string
		wantErr      bool
		wantMismatch bool
	}{
		{name: "correct password", hash: correctHash, password: "correct_password"},
		{name: "wrong password", hash: correctHash, password: "wrong_password", wantErr: true, wantMismatch: true},
		{name: "empty password", hash: correctHash, password: "", wantErr: true, wantMismatch: true},
		{name: "corrupted hash", hash: "not-a-bcrypt-hash", password: "correct_password", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CompareHash(tt.hash, tt.password)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantMismatch, errors.Is(err, ErrMismatch))
		})
	}
}
