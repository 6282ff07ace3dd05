package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens

	"github.com/iliyamo/farm-marketplace/internal/model"
)

var (
	// ErrTokenExpired is returned by Decode for a well-formed, correctly
	// signed token whose exp lies in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure: bad
	// signature, wrong algorithm, malformed segments or missing claims.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims is the payload carried by every access token.  ID is the
// prefixed account id of the backing record (F7, C9, M2), Email is the
// lower-cased email it was issued to, and Role is the session role.  The
// HasFarmer/HasCustomer hints let clients render role menus without a
// round trip; the server never trusts them and re-derives membership
// from the store on each request.
type Claims struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        model.Role `json:"role"`
	HasFarmer   bool       `json:"has_farmer"`
	HasCustomer bool       `json:"has_customer"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Claims is the payload that was signed.
type AccessToken struct {
	Token  string    // the serialized JWT string
	Exp    time.Time // the UTC expiration time
	Claims Claims    // the signed payload
}

// TokenCodec signs and verifies HS256 access tokens with a single shared
// secret.  It is safe for concurrent use.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the wall clock used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) { c.now = now }
}

// NewTokenCodec returns a codec for the given signing secret.
func NewTokenCodec(secret string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{secret: []byte(secret), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue stamps iat with the current time (whole seconds) and exp with
// iat+ttl, then signs the claims.
func (c *TokenCodec) Issue(claims Claims, ttl time.Duration) (AccessToken, error) {
	iat := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(iat)
	claims.ExpiresAt = jwt.NewNumericDate(iat.Add(ttl))
	return c.sign(claims)
}

// Reissue signs claims without touching iat or exp.  Role switches use it
// so a switched token never outlives the one it replaces.
func (c *TokenCodec) Reissue(claims Claims) (AccessToken, error) {
	if claims.ExpiresAt == nil {
		return AccessToken{}, ErrTokenInvalid
	}
	return c.sign(claims)
}

func (c *TokenCodec) sign(claims Claims) (AccessToken, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time.UTC(), Claims: claims}, nil
}

// Decode verifies the signature and expiry of raw and returns its claims.
// Only HS256 is accepted, exp is mandatory and segments must be
// canonical base64url.  On failure the returned claims are always empty.
func (c *TokenCodec) Decode(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
		// Rejects non-zero padding bits, so every character of every
		// segment is significant.
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	if claims.ID == "" || claims.Email == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
