// internal/service/payment/infrastructure/cel_fault.go
package infrastructure

import (
	"context"
	"fmt"

	"checkout/internal/service/payment/domain"

	"github.com/google/cel-go/cel"
)

// CELFault 在表达式求值为 true 时拒绝授权，例如 `amount > 5000.0 || method == "crypto"`。
// 可用变量: orderId, userId, method (string)，amount (double)。
type CELFault struct {
	expr    string
	program cel.Program
}

func NewCELFault(expr string) (*CELFault, error) {
	env, err := cel.NewEnv(
		cel.Variable("orderId", cel.StringType),
		cel.Variable("userId", cel.StringType),
		cel.Variable("method", cel.StringType),
		cel.Variable("amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile decline rule %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("decline rule %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build decline rule %q: %w", expr, err)
	}
	return &CELFault{expr: expr, program: program}, nil
}

func (f *CELFault) Decide(ctx context.Context, req domain.AuthorizeRequest) (domain.Outcome, error) {
	out, _, err := f.program.ContextEval(ctx, map[string]any{
		"orderId": req.OrderID,
		"userId":  req.UserID,
		"method":  req.Method,
		"amount":  req.Amount,
	})
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("evaluate decline rule: %w", err)
	}

	decline, ok := out.Value().(bool)
	if !ok {
		return domain.Outcome{}, fmt.Errorf("decline rule returned %T", out.Value())
	}
	if !decline {
		return domain.Outcome{}, nil
	}
	return domain.Outcome{Decline: true, Reason: "Payment declined by rule: " + f.expr}, nil
}
