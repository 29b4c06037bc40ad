package service

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/api/idtoken"
)

// ExternalIdentity es el resultado de verificar una aserción de un proveedor
// de identidad externo.
type ExternalIdentity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
	Picture  string
}

// IdentityVerifier verifica la aserción de un proveedor y extrae la
// identidad. Implementaciones: Google (verificado) y Apple (decodificado).
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (ExternalIdentity, error)
}

var ErrInvalidAssertion = errors.New("invalid identity assertion")

type googleVerifier struct {
	audience string
}

// NewGoogleVerifier valida ID tokens de Google contra el client id propio.
func NewGoogleVerifier(clientID string) IdentityVerifier {
	return &googleVerifier{audience: clientID}
}

func (v *googleVerifier) Verify(ctx context.Context, assertion string) (ExternalIdentity, error) {
	if strings.TrimSpace(assertion) == "" || v.audience == "" {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	payload, err := idtoken.Validate(ctx, assertion, v.audience)
	if err != nil {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	identity := ExternalIdentity{
		Provider: "google",
		Subject:  payload.Subject,
		Email:    claimString(payload.Claims, "email"),
		Name:     claimString(payload.Claims, "name"),
		Picture:  claimString(payload.Claims, "picture"),
	}
	if identity.Email == "" {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	return identity, nil
}

type appleVerifier struct{}

// NewAppleVerifier decodifica identity tokens de Apple. El token viene del
// flujo nativo de Sign in with Apple y se acepta sobre sus claims de
// email/subject sin reverificar contra el key set de Apple.
func NewAppleVerifier() IdentityVerifier {
	return appleVerifier{}
}

func (appleVerifier) Verify(_ context.Context, assertion string) (ExternalIdentity, error) {
	if strings.TrimSpace(assertion) == "" {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(assertion, claims); err != nil {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	identity := ExternalIdentity{
		Provider: "apple",
		Subject:  claimString(claims, "sub"),
		Email:    claimString(claims, "email"),
	}
	if identity.Email == "" || identity.Subject == "" {
		return ExternalIdentity{}, ErrInvalidAssertion
	}
	return identity, nil
}

func claimString(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	return strings.TrimSpace(v)
}
