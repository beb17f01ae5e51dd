package user

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenGenerator(t *testing.T) {
	gen := newTokenGenerator("secret", 3*24*time.Hour)

	now := time.Now()
	usr := User{
		ID:        "5bd7d9a5-7f5c-4c3c-a3e2-6a2b3f6c9b01",
		Role:      RoleTeacher,
		Name:      "T",
		Email:     "t@test.test",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
		LastLogin: &now,
	}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken, err := gen.makeToken(usr)
	require.NoError(t, err)

	// issued a day past the timeout
	gen.nowFunc = func() time.Time { return time.Now().Add(-gen.timeout - 24*time.Hour) }
	expiredToken, err := gen.makeToken(usr)
	require.NoError(t, err)
	gen.nowFunc = time.Now

	later := now.Add(time.Minute)
	loggedIn := usr
	loggedIn.LastLogin = &later

	pwdChanged := usr
	require.NoError(t, pwdChanged.SetPassword("other"))

	otherUsr := usr
	otherUsr.ID = "0c8a3f0e-2a59-4f7b-9c1e-3f5d8e2a7b10"

	otherKeyToken, err := newTokenGenerator("other-secret", gen.timeout).makeToken(usr)
	require.NoError(t, err)

	// same claims, no signature
	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, resetClaims{
		Fingerprint:      fingerprint(usr),
		RegisteredClaims: jwt.RegisteredClaims{Subject: usr.ID, Audience: jwt.ClaimStrings{resetTokenAudience}},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "garbage", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "unsigned", usr: usr, token: noneToken, wantErr: errInvalidToken},
		{name: "other secret key", usr: usr, token: otherKeyToken, wantErr: errInvalidToken},
		{name: "other user", usr: otherUsr, token: validToken, wantErr: errInvalidToken},
		{name: "used after login", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "used after password change", usr: pwdChanged, token: validToken, wantErr: errInvalidToken},
		{name: "expired token", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "valid token", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, gen.verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "5bd7d9a5-7f5c-4c3c-a3e2-6a2b3f6c9b01"}
	id, err := DecodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)

	_, err = DecodeUID("!!!")
	assert.Error(t, err)
}
