package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/utils"
)

const (
	TokenHeader         = "api-token"
	AuthorizationHeader = "Authorization"
)

var (
	ErrInvalidToken   = errors.New("invalid api token")
	ErrInvalidIDToken = errors.New("invalid id token")
)

type (
	SimpleAuth struct {
		principal Principal
		roles     []Role
		address   game.Address
	}
	SimplePrincipal struct {
		name string
	}
)

var _ Authentication = (*SimpleAuth)(nil)

func NewSimpleAuth(name string, addr game.Address, roles ...Role) *SimpleAuth {
	return &SimpleAuth{principal: &SimplePrincipal{name: name}, roles: roles, address: addr}
}

func (s *SimplePrincipal) Name() string {
	return s.name
}

func (s *SimpleAuth) Principal() Principal {
	return s.principal
}

func (s *SimpleAuth) Roles() []Role {
	return s.roles
}

func (s *SimpleAuth) Address() game.Address {
	return s.address
}

var anon = NewSimpleAuth("anon", game.NoAddress, RoleAnonymous)

type (
	// IDTokenVerifier is satisfied by *oidc.IDTokenVerifier
	IDTokenVerifier interface {
		Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
	}

	Config struct {
		// OperatorTokenHash is the hex sha256 of the operator api token.
		OperatorTokenHash string
		OperatorAddress   game.Address
		// PlayerTokenHashes maps the hex sha256 of a player api token to the
		// player address.
		PlayerTokenHashes map[string]game.Address
		// Verifier checks bearer ID tokens, the subject is the player address.
		Verifier IDTokenVerifier
	}
	Option func(*Config)

	Authenticator struct {
		providers []AuthenticationProvider
		l         *log.Logger
	}
)

func WithOperatorToken(token string) Option {
	return func(c *Config) {
		if token != "" {
			c.OperatorTokenHash = utils.HashAPIKey(token)
		}
	}
}

func WithOperatorTokenHash(hash string) Option {
	return func(c *Config) {
		c.OperatorTokenHash = strings.ToLower(hash)
	}
}

func WithOperatorAddress(addr game.Address) Option {
	return func(c *Config) {
		c.OperatorAddress = addr
	}
}

func WithPlayerToken(addr game.Address, token string) Option {
	return func(c *Config) {
		if token != "" {
			c.PlayerTokenHashes[utils.HashAPIKey(token)] = addr
		}
	}
}

func WithPlayerTokenHash(addr game.Address, hash string) Option {
	return func(c *Config) {
		c.PlayerTokenHashes[strings.ToLower(hash)] = addr
	}
}

// WithPlayerTokenHashes parses entries of the form address=sha256hex.
func WithPlayerTokenHashes(entries []string) (Option, error) {
	parsed := map[string]game.Address{}
	for _, e := range entries {
		addr, hash, ok := strings.Cut(e, "=")
		if !ok || addr == "" || len(hash) != 64 {
			return nil, fmt.Errorf("invalid player token entry %q", e)
		}
		parsed[strings.ToLower(hash)] = game.Address(addr)
	}
	return func(c *Config) {
		for h, a := range parsed {
			c.PlayerTokenHashes[h] = a
		}
	}, nil
}

func WithIDTokenVerifier(v IDTokenVerifier) Option {
	return func(c *Config) {
		c.Verifier = v
	}
}

func NewAuthenticator(opts ...Option) *Authenticator {
	cfg := &Config{PlayerTokenHashes: map[string]game.Address{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Authenticator{
		providers: []AuthenticationProvider{
			&apiKeyAuthenticator{cfg: cfg},
			&idTokenAuthenticator{verifier: cfg.Verifier},
			&anonymousAuthenticator{},
		},
		l: log.Default().Named("auth"),
	}
}

// Middleware stores the Authentication of the request in its context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(a.handleAuth(r.Context(), r.Header)))
	})
}

func (a *Authenticator) handleAuth(ctx context.Context, h http.Header) context.Context {
	for _, p := range a.providers {
		ret, err := p.Authenticate(ctx, h)
		if err != nil {
			a.l.Warn("error authenticating", log.ErrorField(err))
			return AddAuthToContext(ctx, anon)
		}
		if ret != nil {
			return AddAuthToContext(ctx, ret)
		}
	}
	return ctx
}

type (
	anonymousAuthenticator struct{}
	idTokenAuthenticator   struct {
		verifier IDTokenVerifier
	}
	apiKeyAuthenticator struct {
		cfg *Config
	}
)

//nolint:whitespace // editor/linter issue
func (a *anonymousAuthenticator) Authenticate(
	ctx context.Context,
	h http.Header,
) (Authentication, error) {
	return anon, nil
}

//nolint:whitespace // editor/linter issue
func (a *idTokenAuthenticator) Authenticate(
	ctx context.Context,
	h http.Header,
) (Authentication, error) {
	raw, ok := strings.CutPrefix(h.Get(AuthorizationHeader), "Bearer ")
	if !ok || raw == "" || a.verifier == nil {
		return nil, nil
	}
	idToken, err := a.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIDToken, err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrInvalidIDToken)
	}
	return NewSimpleAuth(idToken.Subject, game.Address(idToken.Subject), RolePlayer), nil
}

//nolint:whitespace // editor/linter issue
func (a *apiKeyAuthenticator) Authenticate(
	ctx context.Context,
	h http.Header,
) (Authentication, error) {
	token := h.Get(TokenHeader)
	if token == "" {
		return nil, nil
	}
	hash := utils.HashAPIKey(token)
	if a.cfg.OperatorTokenHash != "" &&
		subtle.ConstantTimeCompare([]byte(hash), []byte(a.cfg.OperatorTokenHash)) == 1 {
		return NewSimpleAuth("operator", a.cfg.OperatorAddress, RoleOperator), nil
	}
	if addr, ok := a.cfg.PlayerTokenHashes[hash]; ok {
		return NewSimpleAuth(string(addr), addr, RolePlayer), nil
	}
	return nil, ErrInvalidToken
}
