package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("test-signing-key", "caseflow")
	unitID := id.UnitID(uuid.New())
	regionID := id.RegionID(uuid.New())
	actor := &domain.Actor{
		ID:        id.ActorID(uuid.New()),
		Role:      domain.RoleAgent,
		UnitID:    &unitID,
		RegionIDs: []id.RegionID{regionID},
	}

	signed, err := svc.Generate(actor, time.Hour)
	require.NoError(t, err)

	parsed, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, parsed.ID)
	assert.Equal(t, domain.RoleAgent, parsed.Role)
	require.NotNil(t, parsed.UnitID)
	assert.Equal(t, unitID, *parsed.UnitID)
	assert.Equal(t, []id.RegionID{regionID}, parsed.RegionIDs)
}

func TestTokenGlobalActorOmitsScopes(t *testing.T) {
	svc := NewService("test-signing-key", "caseflow")
	actor := &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.RoleAdmin}

	signed, err := svc.Generate(actor, time.Hour)
	require.NoError(t, err)

	parsed, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Nil(t, parsed.UnitID)
	assert.Nil(t, parsed.RegionIDs) // nil region set means unrestricted reach
}

func TestTokenValidationFailures(t *testing.T) {
	svc := NewService("test-signing-key", "caseflow")
	actor := &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.RoleAdmin}

	t.Run("expired token", func(t *testing.T) {
		signed, err := svc.Generate(actor, -time.Minute)
		require.NoError(t, err)
		_, err = svc.Validate(signed)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("wrong key", func(t *testing.T) {
		signed, err := svc.Generate(actor, time.Hour)
		require.NoError(t, err)
		other := NewService("different-key", "caseflow")
		_, err = other.Validate(signed)
		assert.Error(t, err)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Validate("not-a-jwt")
		assert.Error(t, err)
	})

	t.Run("unknown role in claims", func(t *testing.T) {
		bogus := &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.Role("INTERN")}
		signed, err := svc.Generate(bogus, time.Hour)
		require.NoError(t, err)
		_, err = svc.Validate(signed)
		assert.Error(t, err)
	})
}
