package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessClaimsImplementsClaims(t *testing.T) {
	var _ jwt.Claims = (*AccessClaims)(nil)

	now := time.Unix(1700000000, 0)
	c := &AccessClaims{
		Issuer:    "https://svc.example.com/a",
		Audience:  "https://api.example.com",
		Kid:       "k1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	aud, err := c.GetAudience()
	require.NoError(t, err)
	assert.Equal(t, jwt.ClaimStrings{"https://api.example.com"}, aud)

	iss, err := c.GetIssuer()
	require.NoError(t, err)
	assert.Equal(t, c.Issuer, iss)

	nbf, err := c.GetNotBefore()
	require.NoError(t, err)
	assert.Nil(t, nbf)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"iss":"https://svc.example.com/a","aud":"https://api.example.com","kid":"k1","exp":1700000060,"iat":1700000000}`, string(out))

	c.Audience = ""
	aud, err = c.GetAudience()
	require.NoError(t, err)
	assert.Nil(t, aud)
}

func TestAccessClaimsScopes(t *testing.T) {
	c := &AccessClaims{Scope: "read:keys  write:keys admin"}
	assert.Equal(t, []string{"read:keys", "write:keys", "admin"}, c.Scopes())
	assert.True(t, c.HasScopes())
	assert.True(t, c.HasScopes("admin", "read:keys"))
	assert.False(t, c.HasScopes("delete:keys"))

	assert.Empty(t, (&AccessClaims{}).Scopes())
}
