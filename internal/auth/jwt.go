package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"collabdesk/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the verified result of a bearer credential: who the caller is
// and which tenant they belong to.
type Identity struct {
	UserID      uint
	Username    string
	CompanyCode string
	Role        models.Role
}

// Claims is the JWT payload. Subject carries the numeric user id.
type Claims struct {
	Username    string      `json:"username"`
	CompanyCode string      `json:"company_code"`
	Role        models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Verifier issues and verifies HMAC-signed bearer tokens.
type Verifier struct {
	secret []byte
	expiry time.Duration
}

func NewVerifier(secret string, expiry time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), expiry: expiry}
}

// IssueToken signs a token for the given user.
func (v *Verifier) IssueToken(user *models.User, companyCode string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:    user.Username,
		CompanyCode: companyCode,
		Role:        user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify validates the credential and returns the caller's identity.
// Any parse, signature or expiry failure yields ErrInvalidToken.
func (v *Verifier) Verify(credential string) (*Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(credential, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || claims.Username == "" || claims.CompanyCode == "" {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:      uint(userID),
		Username:    claims.Username,
		CompanyCode: claims.CompanyCode,
		Role:        claims.Role,
	}, nil
}
