package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"dfp-neo/backend/internal/policy/domain"
	userdomain "dfp-neo/backend/internal/user/domain"
)

const defaultPolicyQuery = "data.dfpneo.authz.allow"

// DefaultRegoPolicy maps roles to the capabilities they hold.
const DefaultRegoPolicy = `package dfpneo.authz

default allow := false

role_capabilities := {
	"SUPER_ADMIN": {
		"launch:access", "admin:access_panel", "users:manage", "audit:read",
		"training:manage", "maintenance:edit", "developer:tools_access",
		"schedule:create", "schedule:edit", "schedule:delete",
		"personnel:manage", "aircraft:manage",
	},
	"ADMIN": {
		"launch:access", "admin:access_panel", "users:manage", "audit:read",
		"training:manage", "schedule:create", "schedule:edit", "schedule:delete",
		"personnel:manage", "aircraft:manage",
	},
	"PILOT": {"launch:access", "schedule:create", "schedule:edit", "schedule:delete"},
	"INSTRUCTOR": {
		"launch:access", "training:manage", "schedule:create", "schedule:edit",
		"personnel:manage",
	},
	"USER": {"launch:access"},
}

allow if {
	input.capability in role_capabilities[input.role]
}
`

// OPAEvaluator evaluates role → capability decisions with an in-process Rego policy.
// The policy is compiled once; evaluation is safe for concurrent use.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty) and prepares the allow query.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"authz.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(defaultPolicyQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// Allowed reports whether role holds capability. Evaluation failures deny.
func (e *OPAEvaluator) Allowed(ctx context.Context, role userdomain.Role, capability domain.Capability) (bool, error) {
	input := map[string]interface{}{
		"role":       string(role),
		"capability": string(capability),
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// HealthCheck verifies that the prepared policy evaluates. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{"role": "", "capability": ""}))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}
