// Package token issues and validates the access tokens the dashboard
// presents. Claims carry the actor's role and scope bindings so the policy
// evaluator can run without a user-store round trip per request.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Claims are the JWT claims for caseflow access tokens.
type Claims struct {
	ActorID   string   `json:"actor_id"`
	Role      string   `json:"role"`
	UnitID    string   `json:"unit_id,omitempty"`
	RegionIDs []string `json:"region_ids,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and validates tokens with a shared HMAC key.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// Generate issues a token for an actor.
func (s *Service) Generate(actor *domain.Actor, expiresIn time.Duration) (string, error) {
	claims := Claims{
		ActorID: actor.ID.String(),
		Role:    actor.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	}
	if actor.UnitID != nil {
		claims.UnitID = actor.UnitID.String()
	}
	for _, r := range actor.RegionIDs {
		claims.RegionIDs = append(claims.RegionIDs, r.String())
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

// Validate parses and verifies a token, rebuilding the actor from claims.
func (s *Service) Validate(tokenString string) (*domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return actorFromClaims(claims)
}

func actorFromClaims(claims *Claims) (*domain.Actor, error) {
	actorID, err := id.ParseActorID(claims.ActorID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token actor_id is not a valid identifier")
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries unknown role")
	}

	actor := &domain.Actor{ID: actorID, Role: role}
	if claims.UnitID != "" {
		unitID, err := id.ParseUnitID(claims.UnitID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token unit_id is not a valid identifier")
		}
		actor.UnitID = &unitID
	}
	if claims.RegionIDs != nil {
		actor.RegionIDs = make([]id.RegionID, 0, len(claims.RegionIDs))
		for _, raw := range claims.RegionIDs {
			regionID, err := id.ParseRegionID(raw)
			if err != nil {
				return nil, dErrors.New(dErrors.CodeUnauthorized, "token region_ids contains an invalid identifier")
			}
			actor.RegionIDs = append(actor.RegionIDs, regionID)
		}
	}
	return actor, nil
}
