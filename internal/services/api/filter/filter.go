// Package filter translates AIP-160 filter expressions from list requests
// into SQL conditions for the store.
package filter

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/oilandrope/internal/platform/errors"
	"github.com/louisbranch/oilandrope/internal/storage"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Param is the query parameter carrying the filter expression.
const Param = "filter"

type field struct {
	column string
	kind   *expr.Type
}

// Resource declares the fields a listing may be filtered by.
type Resource struct {
	name   string
	fields map[string]field
}

// Places filters /api/roleplay/place/.
var Places = Resource{name: "places", fields: map[string]field{
	"name":       {column: "name", kind: filtering.TypeString},
	"site_type":  {column: "site_type", kind: filtering.TypeInt},
	"parent_id":  {column: "parent_id", kind: filtering.TypeString},
	"owner_id":   {column: "owner_id", kind: filtering.TypeString},
	"user_id":    {column: "user_id", kind: filtering.TypeString},
	"created_at": {column: "created_at", kind: filtering.TypeTimestamp},
}}

// Campaigns filters /api/roleplay/campaign/.
var Campaigns = Resource{name: "campaigns", fields: map[string]field{
	"name":       {column: "name", kind: filtering.TypeString},
	"system":     {column: "system", kind: filtering.TypeInt},
	"owner_id":   {column: "owner_id", kind: filtering.TypeString},
	"is_public":  {column: "is_public", kind: filtering.TypeBool},
	"place_id":   {column: "place_id", kind: filtering.TypeString},
	"created_at": {column: "created_at", kind: filtering.TypeTimestamp},
}}

// Sessions filters /api/roleplay/session/.
var Sessions = Resource{name: "sessions", fields: map[string]field{
	"name":        {column: "name", kind: filtering.TypeString},
	"campaign_id": {column: "campaign_id", kind: filtering.TypeString},
	"system":      {column: "system", kind: filtering.TypeInt},
	"next_game":   {column: "next_game", kind: filtering.TypeTimestamp},
	"created_at":  {column: "created_at", kind: filtering.TypeTimestamp},
}}

// Races filters /api/roleplay/race/.
var Races = Resource{name: "races", fields: map[string]field{
	"name":              {column: "name", kind: filtering.TypeString},
	"affected_by_armor": {column: "affected_by_armor", kind: filtering.TypeBool},
	"created_at":        {column: "created_at", kind: filtering.TypeTimestamp},
}}

func (r Resource) declarations() (*filtering.Declarations, error) {
	opts := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, f := range r.fields {
		opts = append(opts, filtering.DeclareIdent(name, f.kind))
	}
	return filtering.NewDeclarations(opts...)
}

// Parse parses an AIP-160 expression for resource. An empty expression
// yields an empty condition.
func Parse(resource Resource, filterStr string) (storage.Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return storage.Condition{}, nil
	}
	cond, err := parse(resource, filterStr)
	if err != nil {
		return storage.Condition{}, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument,
			fmt.Sprintf("invalid %s filter: %v", resource.name, err),
			map[string]string{"Field": Param}, err)
	}
	return cond, nil
}

func parse(resource Resource, filterStr string) (storage.Condition, error) {
	decls, err := resource.declarations()
	if err != nil {
		return storage.Condition{}, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return storage.Condition{}, fmt.Errorf("parse filter: %w", err)
	}
	t := translator{resource: resource}
	return t.expr(parsed.CheckedExpr.Expr)
}

type translator struct {
	resource Resource
}

func (t translator) expr(e *expr.Expr) (storage.Condition, error) {
	if e == nil {
		return storage.Condition{}, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return t.call(kind.CallExpr)
	default:
		return storage.Condition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

var comparisons = map[string]string{
	"_==_": "=", "=": "=",
	"_!=_": "!=", "!=": "!=",
	"_<_": "<", "<": "<",
	"_<=_": "<=", "<=": "<=",
	"_>_": ">", ">": ">",
	"_>=_": ">=", ">=": ">=",
}

func (t translator) call(call *expr.Expr_Call) (storage.Condition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return t.join(call.Args, "AND")
	case "_||_", "OR":
		return t.join(call.Args, "OR")
	case "NOT":
		if len(call.Args) != 1 {
			return storage.Condition{}, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := t.expr(call.Args[0])
		if err != nil {
			return storage.Condition{}, err
		}
		return storage.Condition{Clause: "NOT (" + inner.Clause + ")", Params: inner.Params}, nil
	case ":":
		return t.has(call.Args)
	}
	if op, ok := comparisons[call.Function]; ok {
		return t.comparison(call.Args, op)
	}
	return storage.Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
}

func (t translator) join(args []*expr.Expr, op string) (storage.Condition, error) {
	if len(args) != 2 {
		return storage.Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := t.expr(args[0])
	if err != nil {
		return storage.Condition{}, err
	}
	right, err := t.expr(args[1])
	if err != nil {
		return storage.Condition{}, err
	}
	return storage.Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

// has maps the ":" operator to a case-insensitive substring match on
// string fields.
func (t translator) has(args []*expr.Expr) (storage.Condition, error) {
	if len(args) != 2 {
		return storage.Condition{}, fmt.Errorf("has requires 2 arguments")
	}
	f, err := t.field(args[0])
	if err != nil {
		return storage.Condition{}, err
	}
	value, err := t.value(args[1])
	if err != nil {
		return storage.Condition{}, err
	}
	text, ok := value.(string)
	if !ok {
		return storage.Condition{}, fmt.Errorf("has requires a string value")
	}
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(text)
	return storage.Condition{
		Clause: fmt.Sprintf(`%s LIKE ? ESCAPE '\'`, f.column),
		Params: []any{"%" + escaped + "%"},
	}, nil
}

func (t translator) comparison(args []*expr.Expr, op string) (storage.Condition, error) {
	if len(args) != 2 {
		return storage.Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}
	f, err := t.field(args[0])
	if err != nil {
		return storage.Condition{}, err
	}
	value, err := t.value(args[1])
	if err != nil {
		return storage.Condition{}, err
	}
	if b, ok := value.(bool); ok {
		value = 0
		if b {
			value = 1
		}
	}
	return storage.Condition{
		Clause: fmt.Sprintf("%s %s ?", f.column, op),
		Params: []any{value},
	}, nil
}

func (t translator) field(e *expr.Expr) (field, error) {
	if e == nil {
		return field{}, fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return field{}, fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	f, ok := t.resource.fields[ident.IdentExpr.Name]
	if !ok {
		return field{}, fmt.Errorf("unknown field: %s", ident.IdentExpr.Name)
	}
	return f, nil
}

func (t translator) value(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return constValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return timestampMillis(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func constValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// timestampMillis converts timestamp("...") to the unix milliseconds the
// store persists.
func timestampMillis(e *expr.Expr) (int64, error) {
	constant, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
	str, ok := constant.ConstExpr.ConstantKind.(*expr.Constant_StringValue)
	if !ok {
		return 0, fmt.Errorf("timestamp argument must be a string")
	}
	ts, err := time.Parse(time.RFC3339Nano, str.StringValue)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp format: %s", str.StringValue)
	}
	return ts.UTC().UnixMilli(), nil
}
