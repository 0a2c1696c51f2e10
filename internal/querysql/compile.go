// Package querysql translates search queries into parameterised SQLite SQL
// over the resource_meta table.
//
// Indexed data is stored as canonical JSON text. Every leaf condition is
// compiled against two expressions: the field value (json_extract) and its
// JSON type (json_type), which is NULL when the key is absent. Type guards
// reproduce the canonical evaluator's rules, so a translated query selects
// exactly what package queryeval selects.
//
// Each leaf compiles to CASE WHEN <cond> THEN 1 ELSE 0 END. Leaves are never
// NULL, which keeps NOT correct in the presence of absent fields.
//
// Conditions the translator cannot express faithfully (regex, equality
// against arrays and objects) are reported as untranslatable. Compile then
// pushes down what it can and marks the statement Residual: the caller must
// evaluate the full query over the returned candidates.
package querysql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/revstore/internal/ir"
	"github.com/roach88/revstore/internal/queryir"
	"github.com/roach88/revstore/internal/resource"
)

// ErrUntranslatable marks conditions that have no faithful SQL form.
var ErrUntranslatable = errors.New("untranslatable condition")

// MetaColumns is the column list every compiled SELECT returns, in scan
// order.
const MetaColumns = "resource_id, current_revision_id, schema_version, total_revision_count, " +
	"created_time, created_by, updated_time, updated_by, is_deleted, indexed_data, seq"

// Statement is a compiled search.
type Statement struct {
	// SQL selects MetaColumns.
	SQL  string
	Args []any

	// CountSQL counts the matching rows, ignoring pagination.
	CountSQL  string
	CountArgs []any

	// Residual is true when part of the predicate could not be translated.
	// SQL then returns a superset of the matches, unsorted and unpaginated,
	// and the caller must evaluate the query over it.
	Residual bool

	// Reason explains why the statement is residual.
	Reason string
}

// Compiler compiles queries for one meta table.
//
// CRITICAL: All literal values are parameterized, never interpolated.
// Field paths are embedded in JSON path literals only after
// queryir.ValidField has accepted them.
type Compiler struct {
	Table string
}

// NewCompiler creates a compiler for the default resource_meta table.
func NewCompiler() *Compiler {
	return &Compiler{Table: "resource_meta"}
}

// Compile converts q into a Statement scoped to model.
func (c *Compiler) Compile(model string, q queryir.SearchQuery) (*Statement, error) {
	if err := queryir.Validate(q); err != nil {
		return nil, err
	}

	where, args := c.compileBase(model, q)

	stmt := &Statement{}
	if q.Filter != nil {
		filterSQL, filterArgs, err := c.compilePredicate(q.Filter)
		switch {
		case err == nil:
			where = append(where, filterSQL)
			args = append(args, filterArgs...)
		case errors.Is(err, ErrUntranslatable):
			stmt.Residual = true
			stmt.Reason = err.Error()
			pushed, pushedArgs := c.pushDown(q.Filter)
			where = append(where, pushed...)
			args = append(args, pushedArgs...)
		default:
			return nil, err
		}
	}

	whereSQL := strings.Join(where, " AND ")
	from := fmt.Sprintf("FROM %s\nWHERE %s", c.Table, whereSQL)

	stmt.SQL = fmt.Sprintf("SELECT %s\n%s", MetaColumns, from)
	stmt.Args = args
	stmt.CountSQL = "SELECT count(*)\n" + from
	stmt.CountArgs = args

	if stmt.Residual {
		return stmt, nil
	}

	stmt.SQL += "\nORDER BY " + c.orderBy(q.Sort)
	switch {
	case q.Limit > 0:
		stmt.SQL += "\nLIMIT ? OFFSET ?"
		stmt.Args = append(append([]any{}, args...), int64(q.Limit), int64(q.Offset))
	case q.Offset > 0:
		stmt.SQL += "\nLIMIT -1 OFFSET ?"
		stmt.Args = append(append([]any{}, args...), int64(q.Offset))
	}
	return stmt, nil
}

// compileBase translates deletion state, time ranges and actor lists.
func (c *Compiler) compileBase(model string, q queryir.SearchQuery) ([]string, []any) {
	where := []string{"model = ?"}
	args := []any{model}

	switch q.DeletionState() {
	case queryir.Live:
		where = append(where, "is_deleted = 0")
	case queryir.Deleted:
		where = append(where, "is_deleted = 1")
	}

	timeRange := func(column string, r queryir.TimeRange) {
		if !r.From.IsZero() {
			where = append(where, column+" >= ?")
			args = append(args, string(ir.Time(r.From)))
		}
		if !r.To.IsZero() {
			where = append(where, column+" < ?")
			args = append(args, string(ir.Time(r.To)))
		}
	}
	timeRange("created_time", q.CreatedTime)
	timeRange("updated_time", q.UpdatedTime)

	actors := func(column string, names []string) {
		if len(names) == 0 {
			return
		}
		where = append(where, fmt.Sprintf("%s IN (%s)", column, placeholders(len(names))))
		for _, n := range names {
			args = append(args, n)
		}
	}
	actors("created_by", q.CreatedBy)
	actors("updated_by", q.UpdatedBy)

	return where, args
}

// pushDown translates the translatable conjuncts of a top-level and group.
// Anything else stays entirely with the caller.
func (c *Compiler) pushDown(p queryir.Predicate) ([]string, []any) {
	g, ok := queryir.Unwrap(p).(queryir.Group)
	if !ok || g.Op != queryir.GroupAnd {
		return nil, nil
	}
	var where []string
	var args []any
	for _, child := range g.Children {
		sql, childArgs, err := c.compilePredicate(child)
		if err != nil {
			continue
		}
		where = append(where, sql)
		args = append(args, childArgs...)
	}
	return where, args
}

func (c *Compiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := queryir.Unwrap(p).(type) {
	case queryir.Condition:
		return c.compileCondition(pred)
	case queryir.Group:
		return c.compileGroup(pred)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *Compiler) compileGroup(g queryir.Group) (string, []any, error) {
	if len(g.Children) == 0 {
		if g.Op == queryir.GroupAnd {
			return "1", nil, nil
		}
		return "0", nil, nil
	}

	parts := make([]string, 0, len(g.Children))
	var args []any
	for _, child := range g.Children {
		sql, childArgs, err := c.compilePredicate(child)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, childArgs...)
	}

	switch g.Op {
	case queryir.GroupOr:
		return "(" + strings.Join(parts, " OR ") + ")", args, nil
	case queryir.GroupNot:
		return "NOT (" + strings.Join(parts, " AND ") + ")", args, nil
	default:
		return "(" + strings.Join(parts, " AND ") + ")", args, nil
	}
}

// operand is a resolved field: a value expression and a type expression
// yielding a json_type name, or NULL when the field is absent.
type operand struct {
	value string
	typ   string

	// path is the JSON path literal of an indexed field; empty for meta
	// fields and transformed values, which can never be arrays.
	path string
}

func (c *Compiler) operand(field string, t queryir.Transform) operand {
	var o operand
	switch field {
	case resource.FieldSchemaVersion:
		o = operand{value: field, typ: "(CASE WHEN schema_version IS NULL THEN 'null' ELSE 'text' END)"}
	case resource.FieldIsDeleted:
		o = operand{value: field, typ: "(CASE WHEN is_deleted THEN 'true' ELSE 'false' END)"}
	case resource.FieldTotalRevisionCount:
		o = operand{value: field, typ: "'integer'"}
	default:
		if resource.IsMetaField(field) {
			o = operand{value: field, typ: "'text'"}
			break
		}
		path := jsonPath(field)
		o = operand{
			value: fmt.Sprintf("json_extract(indexed_data, %s)", path),
			typ:   fmt.Sprintf("json_type(indexed_data, %s)", path),
			path:  path,
		}
	}

	if t != queryir.Length {
		return o
	}
	if o.path == "" {
		return operand{
			value: fmt.Sprintf("(CASE WHEN %s = 'text' THEN length(%s) END)", o.typ, o.value),
			typ:   fmt.Sprintf("(CASE WHEN %s = 'text' THEN 'integer' END)", o.typ),
		}
	}
	return operand{
		value: fmt.Sprintf("(CASE WHEN %s = 'text' THEN length(%s) WHEN %s IN ('array', 'object') THEN (SELECT count(*) FROM json_each(indexed_data, %s)) END)",
			o.typ, o.value, o.typ, o.path),
		typ: fmt.Sprintf("(CASE WHEN %s IN ('text', 'array', 'object') THEN 'integer' END)", o.typ),
	}
}

// jsonPath quotes an indexed path as a single JSON object key. Indexed data
// is flat, so "stats.level" is one key, not a nested lookup.
func jsonPath(field string) string {
	return `'$."` + field + `"'`
}

func (c *Compiler) compileCondition(cond queryir.Condition) (string, []any, error) {
	if !queryir.ValidField(cond.Field) {
		return "", nil, fmt.Errorf("invalid field path %q", cond.Field)
	}
	o := c.operand(cond.Field, cond.Transform)

	var sql string
	var args []any
	var err error

	switch cond.Op {
	case queryir.OpEq:
		sql, args, err = eq(o, cond.Value)
	case queryir.OpNe:
		sql, args, err = eq(o, cond.Value)
		return not(sql), args, err
	case queryir.OpGt, queryir.OpGte, queryir.OpLt, queryir.OpLte:
		sql, args, err = ordered(o, cond.Op, cond.Value)
	case queryir.OpContains:
		sql, args, err = contains(o, cond.Value)
	case queryir.OpStartsWith:
		s := string(cond.Value.(ir.IRString))
		sql = fmt.Sprintf("%s = 'text' AND substr(%s, 1, length(?)) = ?", o.typ, o.value)
		args = []any{s, s}
	case queryir.OpEndsWith:
		s := string(cond.Value.(ir.IRString))
		sql = fmt.Sprintf("%s = 'text' AND (? = '' OR substr(%s, -length(?)) = ?)", o.typ, o.value)
		args = []any{s, s, s}
	case queryir.OpInList:
		sql, args, err = inList(o, cond.Value)
	case queryir.OpNotInList:
		sql, args, err = inList(o, cond.Value)
		return not(sql), args, err
	case queryir.OpIsNull:
		if cond.Value.(ir.IRBool) {
			sql = fmt.Sprintf("%s = 'null'", o.typ)
		} else {
			sql = fmt.Sprintf("%s <> 'null'", o.typ)
		}
	case queryir.OpExists:
		if cond.Value.(ir.IRBool) {
			sql = fmt.Sprintf("%s IS NOT NULL", o.typ)
		} else {
			sql = fmt.Sprintf("%s IS NULL", o.typ)
		}
	case queryir.OpRegex:
		err = fmt.Errorf("%w: regex on %s", ErrUntranslatable, cond.Field)
	default:
		err = fmt.Errorf("unsupported operator %q", cond.Op)
	}
	if err != nil {
		return "", nil, err
	}
	return leaf(sql), args, nil
}

func leaf(cond string) string {
	return "CASE WHEN " + cond + " THEN 1 ELSE 0 END"
}

func not(cond string) string {
	return "CASE WHEN " + cond + " THEN 0 ELSE 1 END"
}

// eq compiles equality with a literal. The type guard keeps strings,
// numbers and booleans apart the way ir.Equal does.
func eq(o operand, lit ir.IRValue) (string, []any, error) {
	switch v := lit.(type) {
	case ir.IRString:
		return fmt.Sprintf("%s = 'text' AND %s = ?", o.typ, o.value), []any{string(v)}, nil
	case ir.IRInt:
		return fmt.Sprintf("%s IN ('integer', 'real') AND %s = ?", o.typ, o.value), []any{int64(v)}, nil
	case ir.IRFloat:
		return fmt.Sprintf("%s IN ('integer', 'real') AND %s = ?", o.typ, o.value), []any{float64(v)}, nil
	case ir.IRBool:
		if v {
			return fmt.Sprintf("%s = 'true'", o.typ), nil, nil
		}
		return fmt.Sprintf("%s = 'false'", o.typ), nil, nil
	case ir.IRNull:
		return fmt.Sprintf("%s = 'null'", o.typ), nil, nil
	default:
		return "", nil, fmt.Errorf("%w: equality with %s", ErrUntranslatable, ir.TypeName(lit))
	}
}

var sqlOps = map[queryir.Op]string{
	queryir.OpGt:  ">",
	queryir.OpGte: ">=",
	queryir.OpLt:  "<",
	queryir.OpLte: "<=",
}

func ordered(o operand, op queryir.Op, lit ir.IRValue) (string, []any, error) {
	sqlOp := sqlOps[op]
	switch v := lit.(type) {
	case ir.IRString:
		return fmt.Sprintf("%s = 'text' AND %s %s ?", o.typ, o.value, sqlOp), []any{string(v)}, nil
	case ir.IRInt:
		return fmt.Sprintf("%s IN ('integer', 'real') AND %s %s ?", o.typ, o.value, sqlOp), []any{int64(v)}, nil
	case ir.IRFloat:
		return fmt.Sprintf("%s IN ('integer', 'real') AND %s %s ?", o.typ, o.value, sqlOp), []any{float64(v)}, nil
	default:
		return "", nil, fmt.Errorf("%w: ordering on %s", ErrUntranslatable, ir.TypeName(lit))
	}
}

// contains matches substrings of text values and members of arrays.
func contains(o operand, lit ir.IRValue) (string, []any, error) {
	var parts []string
	var args []any

	if s, ok := lit.(ir.IRString); ok {
		parts = append(parts, fmt.Sprintf("(%s = 'text' AND instr(%s, ?) > 0)", o.typ, o.value))
		args = append(args, string(s))
	}

	if o.path != "" {
		elem, elemArgs, err := eq(operand{value: "e.value", typ: "e.type"}, lit)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, fmt.Sprintf("(%s = 'array' AND EXISTS (SELECT 1 FROM json_each(indexed_data, %s) AS e WHERE %s))",
			o.typ, o.path, elem))
		args = append(args, elemArgs...)
	}

	if len(parts) == 0 {
		return "0", nil, nil
	}
	return strings.Join(parts, " OR "), args, nil
}

func inList(o operand, lit ir.IRValue) (string, []any, error) {
	items, _ := lit.(ir.IRArray)
	if len(items) == 0 {
		return "0", nil, nil
	}
	parts := make([]string, 0, len(items))
	var args []any
	for _, item := range items {
		sql, itemArgs, err := eq(o, item)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, itemArgs...)
	}
	return strings.Join(parts, " OR "), args, nil
}

// orderBy reproduces queryeval's ordering: a type rank first (absent and
// null, booleans, numbers, strings, arrays, objects), then the value, then
// resource_id ascending.
func (c *Compiler) orderBy(keys []queryir.SortKey) string {
	parts := make([]string, 0, 2*len(keys)+1)
	for _, key := range keys {
		o := c.operand(key.Field, queryir.NoTransform)
		dir := "ASC"
		if key.Desc {
			dir = "DESC"
		}
		rank := fmt.Sprintf("CASE WHEN %[1]s IN ('true', 'false') THEN 1 WHEN %[1]s IN ('integer', 'real') THEN 2 "+
			"WHEN %[1]s = 'text' THEN 3 WHEN %[1]s = 'array' THEN 4 WHEN %[1]s = 'object' THEN 5 ELSE 0 END", o.typ)
		parts = append(parts, rank+" "+dir, o.value+" COLLATE BINARY "+dir)
	}
	parts = append(parts, "resource_id ASC")
	return strings.Join(parts, ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
