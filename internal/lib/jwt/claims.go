package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — данные, которые хранятся в токене.
type CustomClaims struct {
	UserID               string `json:"userId"`
	jwt.RegisteredClaims        // IssuedAt, ExpiresAt, Subject
}

// GenerateToken создает токен {userId, iat, exp=iat+ttl}, подписанный HS256.
func (j *MakerImpl) GenerateToken(userID string) (string, error) {
	const op = "jwt.GenerateToken"
	now := j.now()
	claims := CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return signed, nil
}

// ParseToken разбирает токен и классифицирует ошибку:
// ErrTokenMissing для пустой строки, ErrTokenExpired для истекшего срока,
// ErrTokenInvalid для всего остального (подпись, формат, алгоритм, пустой userId).
// Сегменты декодируются строго: ненулевые хвостовые биты base64 считаются подделкой.
//
// Срок проверяется дважды: парсером по claim exp и явным сравнением с часами,
// поэтому токен без exp или с exp в прошлом не проходит ни одним путем.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	if tokenStr == "" {
		return nil, ErrTokenMissing
	}

	claims := &CustomClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return j.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	if !j.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}
	return claims, nil
}
