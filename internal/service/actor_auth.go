package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"cpq-engine-api/internal/model"
	mongorepo "cpq-engine-api/internal/repository/mongo"
)

// ErrInvalidCredentials is returned when the email is unknown, the actor is
// inactive, or the password does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// ActorAuthService authenticates actors against their stored bcrypt hash
// and issues a session token on success.
type ActorAuthService struct {
	actors *mongorepo.ActorRepository
	jwt    *JWTService
}

// NewActorAuthService constructs an ActorAuthService.
func NewActorAuthService(actors *mongorepo.ActorRepository, jwt *JWTService) *ActorAuthService {
	return &ActorAuthService{actors: actors, jwt: jwt}
}

// HashPassword bcrypt-hashes a plaintext password for storage on
// model.Actor.PasswordHash.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Login verifies email and password against the stored actor and, on
// success, returns a signed session token.
func (s *ActorAuthService) Login(ctx context.Context, email, password string) (string, *model.Actor, error) {
	actor, err := s.actors.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}
	if actor == nil || !actor.Active {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(actor.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(actor.ID.Hex(), actor.Role)
	if err != nil {
		return "", nil, err
	}
	return token, actor, nil
}
