package query

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// filterColumns maps filter identifiers to list view columns. Description
// columns are deliberately absent so a filter cannot probe private text.
var filterColumns = map[string]string{
	"hid":          "hid",
	"name":         "name",
	"display_name": "display_name",
	"privacy":      "visibility",
	"created":      "created",
}

// FilterDeclarations returns the identifiers a list filter may reference.
func FilterDeclarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("hid", filtering.TypeString),
		filtering.DeclareIdent("name", filtering.TypeString),
		filtering.DeclareIdent("display_name", filtering.TypeString),
		filtering.DeclareIdent("privacy", filtering.TypeInt),
		filtering.DeclareIdent("created", filtering.TypeTimestamp),
	)
}

// TranslateFilter parses an AIP-160 expression and renders it as a
// condition whose values are bound on b. An empty filter yields "".
func TranslateFilter(b *Builder, filter string) (string, error) {
	if strings.TrimSpace(filter) == "" {
		return "", nil
	}
	decls, err := FilterDeclarations()
	if err != nil {
		return "", fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filter, decls)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidFilter, "parse filter", err)
	}
	condition, err := translateExpr(b, parsed.CheckedExpr.GetExpr())
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidFilter, "translate filter", err)
	}
	return condition, nil
}

func translateExpr(b *Builder, e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(b, kind.CallExpr)
	default:
		return "", fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(b *Builder, call *expr.Expr_Call) (string, error) {
	switch call.Function {
	case "_&&_", "AND":
		return translateJunction(b, call.Args, "AND")
	case "_||_", "OR":
		return translateJunction(b, call.Args, "OR")
	case "NOT", "!_":
		if len(call.Args) != 1 {
			return "", fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(b, call.Args[0])
		if err != nil {
			return "", err
		}
		return "NOT " + inner, nil
	case "_==_", "=":
		return translateComparison(b, call.Args, "=")
	case "_!=_", "!=":
		return translateComparison(b, call.Args, "!=")
	case "_<_", "<":
		return translateComparison(b, call.Args, "<")
	case "_<=_", "<=":
		return translateComparison(b, call.Args, "<=")
	case "_>_", ">":
		return translateComparison(b, call.Args, ">")
	case "_>=_", ">=":
		return translateComparison(b, call.Args, ">=")
	default:
		return "", fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateJunction(b *Builder, args []*expr.Expr, op string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translateExpr(b, args[0])
	if err != nil {
		return "", err
	}
	right, err := translateExpr(b, args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func translateComparison(b *Builder, args []*expr.Expr, op string) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("comparison requires 2 arguments")
	}
	ident, ok := args[0].ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", args[0].ExprKind)
	}
	column, ok := filterColumns[ident.IdentExpr.Name]
	if !ok {
		return "", fmt.Errorf("unknown field: %s", ident.IdentExpr.Name)
	}
	value, err := extractValue(args[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", column, op, b.Bind(value)), nil
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestamp(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	switch kind := c.GetConstantKind().(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return int64(kind.Uint64Value), nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

func extractTimestamp(e *expr.Expr) (time.Time, error) {
	constant, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	value, ok := constant.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, value.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", value.StringValue)
	}
	return t.UTC(), nil
}
