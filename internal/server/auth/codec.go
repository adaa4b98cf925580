package auth

import (
	"context"
	"crypto"
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/buildingkeeper/internal/logging"
)

// ErrNoSecret is returned by NewCodec when the HS256 secret is empty.
var ErrNoSecret = errors.New("auth: shared secret is required")

var primaryMethods = map[string]jwt.SigningMethod{
	"RS256": jwt.SigningMethodRS256,
	"RS384": jwt.SigningMethodRS384,
	"RS512": jwt.SigningMethodRS512,
	"EdDSA": jwt.SigningMethodEdDSA,
}

// CodecConfig configures a Codec. PEM keys are optional; when only the
// private key is given the public key is derived from it.
type CodecConfig struct {
	Algorithm     string
	PrivateKeyPEM []byte
	PublicKeyPEM  []byte
	Secret        []byte
}

// Codec signs and verifies tokens. It is safe for concurrent use.
type Codec struct {
	method    jwt.SigningMethod
	signKey   crypto.PrivateKey
	keyErr    error
	verifyKey crypto.PublicKey
	secret    []byte
	logger    logging.Logger
	now       func() time.Time
}

// NewCodec builds a Codec. Missing or unreadable keys are not an error:
// the codec then signs with HS256 and logs why. An unknown algorithm or an
// empty secret is.
func NewCodec(cfg CodecConfig, logger logging.Logger) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}

	method, ok := primaryMethods[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("auth: unsupported algorithm %q", cfg.Algorithm)
	}

	c := &Codec{
		method: method,
		secret: append([]byte(nil), cfg.Secret...),
		logger: logger.With("module", "auth.codec"),
		now:    time.Now,
	}
	ctx := context.Background()

	if len(cfg.PrivateKeyPEM) == 0 {
		c.logger.Warn(ctx, "no private key configured, signing with HS256", "algorithm", cfg.Algorithm)
	} else {
		key, err := parsePrivateKey(method, cfg.PrivateKeyPEM)
		if err == nil {
			c.signKey = key
		} else {
			c.keyErr = err
			c.logger.Warn(ctx, "private key unusable, signing with HS256", "algorithm", cfg.Algorithm, "error", c.keyErr)
		}
	}

	switch {
	case len(cfg.PublicKeyPEM) > 0:
		pub, err := parsePublicKey(method, cfg.PublicKeyPEM)
		if err != nil {
			c.logger.Warn(ctx, "public key unusable, verifying with HS256 only", "algorithm", cfg.Algorithm, "error", err)
			break
		}
		c.verifyKey = pub
	case c.signKey != nil:
		c.verifyKey = c.signKey.(crypto.Signer).Public()
	}

	return c, nil
}

// Sign stamps iat, nbf and exp=now+ttl onto a copy of claims and signs it.
// The primary algorithm is tried first; any failure falls back to HS256.
func (c *Codec) Sign(ctx context.Context, claims Claims, ttl time.Duration) (string, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.NotBefore = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Roles != nil {
		claims.Roles = append([]string(nil), claims.Roles...)
	}

	if c.signKey != nil {
		s, err := jwt.NewWithClaims(c.method, claims).SignedString(c.signKey)
		if err == nil {
			return s, nil
		}
		c.logger.Warn(ctx, "primary signing failed, falling back to HS256", "algorithm", c.method.Alg(), "error", err)
	} else if c.keyErr != nil {
		c.logger.Warn(ctx, "signing with HS256 fallback", "algorithm", c.method.Alg(), "error", c.keyErr)
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify decodes token and checks its signature and time claims. The public
// key is tried first when configured. A token whose signature verified but
// whose claims are rejected (expired, not yet valid) fails right away; any
// other primary failure falls through to HS256. The returned error is an
// *InvalidTokenError carrying the terminal reason.
func (c *Codec) Verify(ctx context.Context, token string) (*Claims, error) {
	if c.verifyKey != nil {
		claims, err := c.parse(token, c.method, c.verifyKey)
		if err == nil {
			return claims, nil
		}
		if r := classify(err); authentic(r) {
			return nil, &InvalidTokenError{Reason: r, Err: err}
		}
		c.logger.Debug(ctx, "primary verification failed, trying HS256", "error", err)
	}

	claims, err := c.parse(token, jwt.SigningMethodHS256, c.secret)
	if err != nil {
		return nil, &InvalidTokenError{Reason: classify(err), Err: err}
	}
	return claims, nil
}

func (c *Codec) parse(token string, method jwt.SigningMethod, key any) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func parsePrivateKey(method jwt.SigningMethod, pem []byte) (crypto.PrivateKey, error) {
	if method == jwt.SigningMethodEdDSA {
		key, err := jwt.ParseEdPrivateKeyFromPEM(pem)
		if err != nil {
			return nil, err
		}
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return nil, errors.New("not an ed25519 private key")
		}
		return key, nil
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, err
	}
	return key, nil
}

func parsePublicKey(method jwt.SigningMethod, pem []byte) (crypto.PublicKey, error) {
	if method == jwt.SigningMethodEdDSA {
		return jwt.ParseEdPublicKeyFromPEM(pem)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, err
	}
	return key, nil
}
