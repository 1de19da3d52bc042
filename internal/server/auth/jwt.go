// Package auth turns bearer tokens issued by the identity middleware into
// identity claims and local principals.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/objcatalog/internal/common"
	"github.com/dmitrijs2005/objcatalog/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the token payload. Subject carries the external identity id.
type Claims struct {
	jwt.RegisteredClaims
	IDP               string `json:"identity_provider,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	GivenName         string `json:"given_name,omitempty"`
	FamilyName        string `json:"family_name,omitempty"`
	Email             string `json:"email,omitempty"`
}

// GenerateToken signs an HS256 token for c.
func GenerateToken(c models.IdentityClaims, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.IdentityID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		IDP:               c.IDP,
		PreferredUsername: c.Username,
		Name:              c.FullName,
		GivenName:         c.FirstName,
		FamilyName:        c.LastName,
		Email:             c.Email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseIdentity validates tokenString and maps it onto identity claims.
// Expired tokens yield common.ErrTokenExpired, everything else that fails
// validation yields common.ErrInvalidToken.
func ParseIdentity(tokenString string, secretKey []byte) (*models.IdentityClaims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	username := claims.PreferredUsername
	if username == "" {
		username = claims.Subject
	}

	return &models.IdentityClaims{
		IdentityID: claims.Subject,
		IDP:        claims.IDP,
		Username:   username,
		FullName:   claims.Name,
		FirstName:  claims.GivenName,
		LastName:   claims.FamilyName,
		Email:      claims.Email,
	}, nil
}
