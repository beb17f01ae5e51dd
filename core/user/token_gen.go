package user

import (
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const resetTokenAudience = "password-reset"

var (
	// errors
	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// resetClaims are the claims of a password reset token.
// Fingerprint changes with the password and the last login, so a token works only once.
type resetClaims struct {
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// tokenGenerator makes and verifies password reset tokens, as HS256 JWTs.
type tokenGenerator struct {
	key     []byte
	timeout time.Duration
	nowFunc func() time.Time // mockable
}

func newTokenGenerator(secretKey string, timeout time.Duration) *tokenGenerator {
	key := sha256.Sum256([]byte("shule.user.password-reset:" + secretKey))
	return &tokenGenerator{key: key[:], timeout: timeout, nowFunc: time.Now}
}

// EncodeUID base64 encodes given User ID
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

// DecodeUID base64 decodes given UID
func DecodeUID(uid string) (string, error) {
	idBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(idBytes), nil
}

func fingerprint(usr User) string {
	h := sha256.New()
	h.Write(usr.PasswordHash)
	if usr.LastLogin != nil {
		h.Write([]byte(usr.LastLogin.UTC().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

func (gen *tokenGenerator) makeToken(usr User) (string, error) {
	now := gen.nowFunc()
	claims := resetClaims{
		Fingerprint: fingerprint(usr),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{resetTokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(gen.timeout)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(gen.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return token, nil
}

// verifyToken returns errTokenExpired or errInvalidToken when the token cannot be used to reset the password of usr.
func (gen *tokenGenerator) verifyToken(usr User, token string) error {
	if token == "" {
		return errInvalidToken
	}

	var claims resetClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) { return gen.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(resetTokenAudience),
		jwt.WithTimeFunc(gen.nowFunc),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return errTokenExpired
		}
		return errInvalidToken
	}
	if claims.Subject != usr.ID || claims.Fingerprint != fingerprint(usr) {
		return errInvalidToken
	}
	return nil
}
