// Package identity decides whether a visitor is anonymous or authenticated
// and supplies the identity headers for backend cart calls.
package identity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront/internal/session"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Header names understood by the backend.
const (
	HeaderAuthorization = "Authorization"
	HeaderSessionID     = "X-Session-ID"
)

// CredentialSource exposes the visitor's bearer token, if any.
type CredentialSource interface {
	BearerToken() string
}

// TokenHolder is a CredentialSource refreshed from each incoming request.
type TokenHolder struct {
	mu    sync.RWMutex
	token string
}

// NewTokenHolder creates a holder with an initial token.
func NewTokenHolder(token string) *TokenHolder {
	return &TokenHolder{token: token}
}

// Set replaces the held token.
func (h *TokenHolder) Set(token string) {
	h.mu.Lock()
	h.token = strings.TrimSpace(token)
	h.mu.Unlock()
}

// BearerToken returns the held token.
func (h *TokenHolder) BearerToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Credentials is the identity attached to one backend call.
type Credentials struct {
	Token     string
	SessionID string
}

// Authenticated reports whether the call carries a bearer token.
func (c Credentials) Authenticated() bool {
	return c.Token != ""
}

// Apply sets the identity headers on req.
func (c Credentials) Apply(req *http.Request) {
	if c.Token != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+c.Token)
	}
	if c.SessionID != "" {
		req.Header.Set(HeaderSessionID, c.SessionID)
	}
}

// Provider resolves the visitor identity. The anonymous session id lives in
// session storage and stays there after login until the backend has merged
// the anonymous cart.
type Provider struct {
	creds   CredentialSource
	storage session.Storage
	logger  zerolog.Logger
	now     func() time.Time
}

// NewProvider creates an identity provider.
func NewProvider(creds CredentialSource, storage session.Storage, logger zerolog.Logger) *Provider {
	return &Provider{
		creds:   creds,
		storage: storage,
		logger:  logger.With().Str("component", "identity").Logger(),
		now:     time.Now,
	}
}

// IsAuthenticated returns true iff a non-empty bearer token is present.
func (p *Provider) IsAuthenticated() bool {
	return strings.TrimSpace(p.creds.BearerToken()) != ""
}

// SessionID returns the anonymous session id, generating and caching one on
// first use.
func (p *Provider) SessionID(ctx context.Context) (string, error) {
	id, ok, err := p.storage.Get(ctx, session.KeySessionID)
	if err != nil {
		return "", fmt.Errorf("failed to read session id: %w", err)
	}
	if ok && id != "" {
		return id, nil
	}
	return p.generate(ctx)
}

// PendingMergeID returns the anonymous id still owed a merge into the
// user's cart, or "" when there is none. It never generates a new id.
func (p *Provider) PendingMergeID(ctx context.Context) string {
	id, _, err := p.storage.Get(ctx, session.KeySessionID)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to read session id")
		return ""
	}
	return id
}

// CompleteMerge forgets the anonymous id once a cart fetch carrying it
// together with the token succeeded. A newer id is left in place.
func (p *Provider) CompleteMerge(ctx context.Context, id string) error {
	if id == "" || id != p.PendingMergeID(ctx) {
		return nil
	}
	if err := p.storage.Remove(ctx, session.KeySessionID); err != nil {
		return fmt.Errorf("failed to remove session id: %w", err)
	}
	p.logger.Info().Str("session_id", id).Msg("anonymous cart merged")
	return nil
}

// Rotate replaces the anonymous session id with a fresh one.
func (p *Provider) Rotate(ctx context.Context) (string, error) {
	return p.generate(ctx)
}

// Credentials returns the identity for the next backend call. Authenticated
// calls carry only the token unless an anonymous id is still stored, in
// which case both are sent until a merge completes.
func (p *Provider) Credentials(ctx context.Context) (Credentials, error) {
	if p.IsAuthenticated() {
		return Credentials{
			Token:     strings.TrimSpace(p.creds.BearerToken()),
			SessionID: p.PendingMergeID(ctx),
		}, nil
	}

	id, err := p.SessionID(ctx)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{SessionID: id}, nil
}

func (p *Provider) generate(ctx context.Context) (string, error) {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	id := fmt.Sprintf("sess_%d_%s", p.now().UnixMilli(), random)
	if err := p.storage.Set(ctx, session.KeySessionID, id); err != nil {
		return "", fmt.Errorf("failed to store session id: %w", err)
	}
	p.logger.Debug().Str("session_id", id).Msg("generated anonymous session id")
	return id, nil
}
