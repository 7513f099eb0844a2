package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/vetralabs/vetra/internal/secrets"
)

const adminTokenTTL = time.Hour

var ErrInvalidAdminToken = errors.New("invalid admin token")

// AdminTokenService mints and verifies the short-lived HS256 tokens that
// guard the administrative routes (revocation, audit listing).
type AdminTokenService struct {
	secret []byte
	now    func() time.Time
}

func NewAdminTokenService(keys *secrets.Keys) *AdminTokenService {
	return &AdminTokenService{secret: keys.AdminSecret(), now: time.Now}
}

func (s *AdminTokenService) Mint(subject string) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: s.secret}, nil)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}

	now := s.now().UTC()
	claims := jwt.Claims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(adminTokenTTL)),
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize admin token: %w", err)
	}
	return token, nil
}

// Verify returns the token subject, or ErrInvalidAdminToken for any
// malformed, mis-signed or expired token.
func (s *AdminTokenService) Verify(raw string) (string, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return "", ErrInvalidAdminToken
	}
	var claims jwt.Claims
	if err := tok.Claims(s.secret, &claims); err != nil {
		return "", ErrInvalidAdminToken
	}
	if err := claims.Validate(jwt.Expected{Time: s.now().UTC()}); err != nil {
		return "", ErrInvalidAdminToken
	}
	return claims.Subject, nil
}
