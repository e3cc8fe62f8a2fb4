package permission

import (
	"bytes"
	"context"
	_ "embed"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
)

type OpaPermissionEvaluator struct {
	query rego.PreparedEvalQuery
	l     *log.Logger
}

type EvalRequest struct {
	Roles     []auth.Role `json:"roles"`
	Principal string      `json:"principal"`
	Action    Permission  `json:"action"`
}

// check interface compliance
var _ PermissionEvaluator = (*OpaPermissionEvaluator)(nil)

//go:embed policy.rego
var policy []byte

//go:embed data.json
var data []byte

func NewOpaPermissionEvaluator() (*OpaPermissionEvaluator, error) {
	l := log.Default().Named("permission").Named("opa")
	store := inmem.NewFromReader(bytes.NewReader(data))
	r := rego.New(
		rego.Query("data.lanerace.authz.allow"),
		rego.Module("lanerace.authz", string(policy)),
		rego.Store(store),
	)
	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		l.Error("failed to prepare query", log.ErrorField(err))
		return nil, err
	}
	return &OpaPermissionEvaluator{query: query, l: l}, nil
}

//nolint:whitespace // editor/linter issue
func (ope *OpaPermissionEvaluator) HasPermission(
	a auth.Authentication,
	perm Permission,
) bool {
	return ope.eval(EvalRequest{
		Roles:     a.Roles(),
		Principal: string(a.Address()),
		Action:    perm,
	})
}

func (ope *OpaPermissionEvaluator) eval(req EvalRequest) bool {
	rs, err := ope.query.Eval(context.Background(), rego.EvalInput(req))
	if err != nil {
		ope.l.Error("permission evaluation failed", log.ErrorField(err))
		return false
	}
	ope.l.Debug("evaluated",
		log.Any("roles", req.Roles),
		log.String("action", string(req.Action)),
		log.Bool("allowed", rs.Allowed()))
	return rs.Allowed()
}
