package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mpapenbr/lanerace-service-go/pkg/game"
)

type Role string

const (
	RoleOperator  Role = "operator"
	RolePlayer    Role = "player"
	RoleAnonymous Role = "anonymous"
)

var ErrPermissionDenied = errors.New("permission denied")

type (
	Principal interface {
		Name() string
	}

	Authentication interface {
		Principal() Principal
		Roles() []Role
		// Address is the game address acting on behalf of the principal.
		Address() game.Address
	}

	AuthenticationProvider interface {
		// Authenticate returns nil, nil if the provider is not responsible for
		// the request.
		Authenticate(ctx context.Context, h http.Header) (Authentication, error)
	}
)

type myCtxTypeKey int

func AddAuthToContext(ctx context.Context, a Authentication) context.Context {
	return context.WithValue(ctx, myCtxTypeKey(0), a)
}

func FromContext(ctx context.Context) Authentication {
	if ctx == nil {
		return nil
	}
	if val, ok := ctx.Value(myCtxTypeKey(0)).(Authentication); ok {
		return val
	}
	return nil
}
