// Package identity extracts the holder identity from a bearer access token.
// The seat map compares it with each seat's holder to tell the user's own
// holds from other customers' holds.
package identity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that cannot be parsed or fail
// verification.
var ErrInvalidToken = errors.New("invalid access token")

// Role names carried in the "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
)

// Identity is the subject of an access token.
type Identity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Raw    string `json:"-"`
}

// Anonymous reports whether no user could be determined.
func (i Identity) Anonymous() bool { return i.UserID == 0 }

// IsStaff reports whether the identity may use the counter booking screen.
func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff || i.Role == RoleAdmin
}

// Parser turns raw tokens into identities.  With an empty secret the
// signature is not checked; the backend verifies every request anyway and
// the kiosk only needs the claims.
type Parser struct {
	secret []byte
	now    func() time.Time
}

// NewParser returns a parser verifying HS256 signatures with secret when it
// is non-empty.
func NewParser(secret string) *Parser {
	p := &Parser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Verifies reports whether signatures are checked.
func (p *Parser) Verifies() bool { return len(p.secret) > 0 }

// Parse reads the identity from raw, which may carry a "Bearer " prefix.
func (p *Parser) Parse(raw string) (Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "Bearer "))
	if raw == "" {
		return Identity{}, ErrInvalidToken
	}
	claims := jwt.MapClaims{}
	if p.Verifies() {
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return p.secret, nil
		}, jwt.WithTimeFunc(p.now))
		if err != nil || !tok.Valid {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && !p.now().Before(exp.Time) {
			return Identity{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
	}

	id := Identity{Raw: raw}
	id.UserID = claimInt(claims, "userId", "user_id", "id", "sub")
	id.Email = claimString(claims, "email")
	if id.Email == "" {
		if sub := claimString(claims, "sub"); strings.Contains(sub, "@") {
			id.Email = sub
		}
	}
	id.Role = strings.ToUpper(strings.TrimPrefix(claimString(claims, "role"), "ROLE_"))
	if id.Role == "" {
		if roles, ok := claims["roles"].([]interface{}); ok && len(roles) > 0 {
			if s, ok := roles[0].(string); ok {
				id.Role = strings.ToUpper(strings.TrimPrefix(s, "ROLE_"))
			}
		}
	}
	return id, nil
}

// Sign issues an HS256 token for id valid for ttl.  It backs tests and the
// kiosk's local development login.
func Sign(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(id.UserID, 10),
		"role": id.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if id.Email != "" {
		claims["email"] = id.Email
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func claimString(c jwt.MapClaims, key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// claimInt returns the first key holding a numeric value.
func claimInt(c jwt.MapClaims, keys ...string) int64 {
	for _, k := range keys {
		switch v := c[k].(type) {
		case float64:
			if v > 0 {
				return int64(v)
			}
		case string:
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}
