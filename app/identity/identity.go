package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

type customerContextKey struct{}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens issued by the auth service.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer)}
}

func (v *Verifier) Verify(raw string) (entity.Customer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.Customer{}, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return entity.Customer{}, ErrInvalidToken
	}

	userID := strings.TrimSpace(claims.Subject)
	if userID == "" {
		return entity.Customer{}, ErrInvalidToken
	}

	return entity.Customer{ID: userID, Email: strings.TrimSpace(claims.Email)}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func WithCustomer(ctx context.Context, customer entity.Customer) context.Context {
	return context.WithValue(ctx, customerContextKey{}, customer)
}

func CustomerFromContext(ctx context.Context) (entity.Customer, bool) {
	customer, ok := ctx.Value(customerContextKey{}).(entity.Customer)
	return customer, ok
}
