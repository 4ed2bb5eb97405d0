package auth

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

func TestSignParseRoundTrip(t *testing.T) {
	is := NewIssuer("s3cret")

	tok, err := is.Sign(Identity{UserID: "u1", Role: model.RoleSiteManager, Email: "m@example.com"}, time.Hour)
	require.NoError(t, err)

	id, err := is.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, model.RoleSiteManager, id.Role)
	assert.True(t, id.Privileged())
}

func TestParseRejects(t *testing.T) {
	is := NewIssuer("s3cret")

	other, err := NewIssuer("other").Sign(Identity{UserID: "u1"}, time.Hour)
	require.NoError(t, err)
	_, err = is.Parse(other)
	assert.Error(t, err, "wrong secret")

	expired, err := is.Sign(Identity{UserID: "u1"}, -time.Minute)
	require.NoError(t, err)
	_, err = is.Parse(expired)
	assert.Error(t, err, "expired")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Sub: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = is.Parse(unsigned)
	assert.Error(t, err, "alg none")

	_, err = is.Parse("garbage")
	assert.Error(t, err)
}

func TestParseDefaultsRole(t *testing.T) {
	is := NewIssuer("s3cret")
	tok, err := is.Sign(Identity{UserID: "u2"}, time.Hour)
	require.NoError(t, err)

	id, err := is.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, id.Role)
	assert.False(t, id.Privileged())
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{UserID: "u1", Role: model.RoleAdmin})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
