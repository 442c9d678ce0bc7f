package services

import (
	"context"
	"errors"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"tubetrack-backend/internal/models"
)

// IdentityProvider verifies tokens issued by the external auth service and
// holds the shell's signed-in user.
type IdentityProvider struct {
	secret    []byte
	publisher Publisher
	log       *zap.Logger

	mu      sync.RWMutex
	current *models.User
	subs    map[int]func(*models.User)
	nextSub int
}

func NewIdentityProvider(secret string, publisher Publisher, log *zap.Logger) *IdentityProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityProvider{
		secret:    []byte(secret),
		publisher: publisher,
		log:       log,
		subs:      make(map[int]func(*models.User)),
	}
}

// Verify parses an HS256 token. The user id comes from "sub", or "user_id"
// for tokens minted by older clients.
func (p *IdentityProvider) Verify(tokenStr string) (models.User, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.User{}, &UnauthorizedError{Message: "Token has expired"}
		}
		return models.User{}, &UnauthorizedError{Message: "Invalid token"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.User{}, &UnauthorizedError{Message: "Invalid token claims"}
	}

	id, _ := claims["sub"].(string)
	if id == "" {
		id, _ = claims["user_id"].(string)
	}
	if id == "" {
		return models.User{}, &UnauthorizedError{Message: "Invalid user ID in token"}
	}
	email, _ := claims["email"].(string)
	return models.User{ID: id, Email: email}, nil
}

// Current returns the signed-in user, if any.
func (p *IdentityProvider) Current() (models.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return models.User{}, false
	}
	return *p.current, true
}

func (p *IdentityProvider) SignIn(ctx context.Context, tokenStr string) (models.User, error) {
	user, err := p.Verify(tokenStr)
	if err != nil {
		return models.User{}, err
	}
	p.set(ctx, &user)
	p.log.Info("signed in", zap.String("user_id", user.ID))
	return user, nil
}

func (p *IdentityProvider) SignOut(ctx context.Context) {
	p.set(ctx, nil)
	p.log.Info("signed out")
}

// Subscribe registers fn for sign-in and sign-out. Call the returned func to
// stop receiving updates.
func (p *IdentityProvider) Subscribe(fn func(user *models.User)) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

func (p *IdentityProvider) set(ctx context.Context, user *models.User) {
	p.mu.Lock()
	prev := p.current
	p.current = user
	subs := make([]func(*models.User), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		if user == nil {
			fn(nil)
			continue
		}
		u := *user
		fn(&u)
	}

	if p.publisher == nil {
		return
	}
	// Signing out is announced on the channel of the user who left.
	channel := ""
	if user != nil {
		channel = user.ID
	} else if prev != nil {
		channel = prev.ID
	}
	p.publisher.PublishUpdate(ctx, channel, models.WSMessage{Type: models.EventSessionChanged, Payload: user})
}
