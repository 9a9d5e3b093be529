package sqltext

import (
	"fmt"
	"strconv"

	"github.com/bwservicing/certtrack/internal/models"
	srvErrors "github.com/bwservicing/certtrack/pkg/errors"
)

type Kind string

const (
	KindSelect Kind = "SELECT"
	KindInsert Kind = "INSERT"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

// Value is either a positional parameter ($n, 1-based) or a literal.
type Value struct {
	Param   int
	Literal any
}

type Condition struct {
	Column string
	Value  Value
}

type Assignment struct {
	Column string
	Value  Value
}

// Statement is one parsed statement of the supported grammar.
type Statement struct {
	Kind      Kind
	Table     string
	Columns   []string // SELECT list; nil for *
	Where     []Condition
	Order     []models.OrderBy
	Limit     *Value
	Offset    *Value
	Set       []Assignment // UPDATE assignments and INSERT column/value pairs
	Returning bool
	// Params is the highest placeholder number referenced.
	Params int
}

// Parse parses a single statement. Anything outside the grammar fails with a
// ParseError naming the construct.
func Parse(sql string) (*Statement, error) {
	tokens, err := lex(sql)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, used: map[int]bool{}}

	var stmt *Statement
	switch t := p.peek(); {
	case t.is(tokKeyword, "SELECT"):
		stmt, err = p.parseSelect()
	case t.is(tokKeyword, "INSERT"):
		stmt, err = p.parseInsert()
	case t.is(tokKeyword, "UPDATE"):
		stmt, err = p.parseUpdate()
	case t.is(tokKeyword, "DELETE"):
		stmt, err = p.parseDelete()
	case t.kind == tokEOF:
		return nil, srvErrors.NewParseError("empty statement", t.pos, "")
	default:
		return nil, srvErrors.NewParseError(describe(t), t.pos, "expected SELECT, INSERT, UPDATE or DELETE")
	}
	if err != nil {
		return nil, err
	}

	if p.peek().is(tokSymbol, ";") {
		p.next()
	}
	if t := p.peek(); t.kind != tokEOF {
		if t.is(tokKeyword, "SELECT") || t.is(tokKeyword, "INSERT") || t.is(tokKeyword, "UPDATE") || t.is(tokKeyword, "DELETE") {
			return nil, srvErrors.NewParseError("multiple statements", t.pos, "")
		}
		return nil, p.unexpected(t)
	}

	for n := 1; n <= stmt.Params; n++ {
		if !p.used[n] {
			return nil, srvErrors.NewParseError(fmt.Sprintf("placeholder $%d", n), 0, "placeholders must be numbered without gaps")
		}
	}
	return stmt, nil
}

type parser struct {
	tokens []token
	i      int
	used   map[int]bool
	max    int
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (p *parser) peek() token {
	return p.tokens[p.i]
}

func (p *parser) next() token {
	t := p.tokens[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) expectKeyword(kw string) error {
	t := p.next()
	if !t.is(tokKeyword, kw) {
		return p.unexpectedWant(t, kw)
	}
	return nil
}

func (p *parser) expectSymbol(sym string) error {
	t := p.next()
	if !t.is(tokSymbol, sym) {
		return p.unexpectedWant(t, sym)
	}
	return nil
}

func (p *parser) name() (string, error) {
	t := p.next()
	if t.kind != tokIdent {
		return "", p.unexpectedWant(t, "a name")
	}
	return t.text, nil
}

// ident reads a column name. A name followed by "(" is a function call.
func (p *parser) ident() (string, error) {
	name, err := p.name()
	if err != nil {
		return "", err
	}
	if n := p.peek(); n.is(tokSymbol, "(") {
		return "", srvErrors.NewParseError("function "+name, n.pos, "")
	}
	return name, nil
}

// table reads a table name. After INSERT INTO the name is followed by the
// column list, so "(" is only a table function elsewhere.
func (p *parser) table(columnList bool) (string, error) {
	if t := p.peek(); t.is(tokSymbol, "(") {
		return "", srvErrors.NewParseError("subquery", t.pos, "")
	}
	name, err := p.name()
	if err != nil {
		return "", err
	}
	switch t := p.peek(); {
	case t.is(tokSymbol, "(") && !columnList:
		return "", srvErrors.NewParseError("function "+name, t.pos, "")
	case t.kind == tokIdent, t.is(tokKeyword, "AS"):
		return "", srvErrors.NewParseError("table alias", t.pos, "")
	case t.is(tokSymbol, ","):
		return "", srvErrors.NewParseError("multiple tables", t.pos, "")
	}
	return name, nil
}

func (p *parser) value() (Value, error) {
	t := p.next()
	switch {
	case t.kind == tokParam:
		n, err := strconv.Atoi(t.text)
		if err != nil || n < 1 {
			return Value{}, srvErrors.NewParseError("placeholder $"+t.text, t.pos, "placeholders start at $1")
		}
		p.used[n] = true
		if n > p.max {
			p.max = n
		}
		return Value{Param: n}, nil
	case t.kind == tokString:
		return Value{Literal: t.text}, nil
	case t.kind == tokNumber:
		if n, err := strconv.ParseInt(t.text, 10, 64); err == nil {
			return Value{Literal: n}, nil
		}
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Value{}, srvErrors.NewParseError("number "+t.text, t.pos, "")
		}
		return Value{Literal: f}, nil
	case t.is(tokKeyword, "NULL"):
		return Value{Literal: nil}, nil
	case t.is(tokKeyword, "TRUE"):
		return Value{Literal: true}, nil
	case t.is(tokKeyword, "FALSE"):
		return Value{Literal: false}, nil
	case t.is(tokSymbol, "("):
		if n := p.peek(); n.is(tokKeyword, "SELECT") {
			return Value{}, srvErrors.NewParseError("subquery", t.pos, "")
		}
		return Value{}, srvErrors.NewParseError("expression", t.pos, "")
	case t.kind == tokIdent && p.peek().is(tokSymbol, "("):
		return Value{}, srvErrors.NewParseError("function "+t.text, t.pos, "")
	}
	return Value{}, p.unexpectedWant(t, "a value")
}

// where parses "col = v [AND col = v]...". Each column may appear once.
func (p *parser) where() ([]Condition, error) {
	var conds []Condition
	seen := map[string]bool{}
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		op := p.next()
		if !op.is(tokSymbol, "=") {
			return nil, p.unexpectedWant(op, "=")
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if seen[col] {
			return nil, srvErrors.NewParseError("repeated condition on "+col, op.pos, "")
		}
		seen[col] = true
		conds = append(conds, Condition{Column: col, Value: v})

		if !p.peek().is(tokKeyword, "AND") {
			return conds, nil
		}
		p.next()
	}
}

func (p *parser) returning() bool {
	if !p.peek().is(tokKeyword, "RETURNING") {
		return false
	}
	p.next()
	return true
}

func (p *parser) parseSelect() (*Statement, error) {
	p.next()
	stmt := &Statement{Kind: KindSelect}

	if t := p.peek(); t.is(tokKeyword, "DISTINCT") {
		return nil, srvErrors.NewParseError("DISTINCT", t.pos, "")
	}
	if p.peek().is(tokSymbol, "*") {
		p.next()
	} else {
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			if t := p.peek(); t.is(tokKeyword, "AS") || t.kind == tokIdent {
				return nil, srvErrors.NewParseError("column alias", t.pos, "")
			}
			stmt.Columns = append(stmt.Columns, col)
			if !p.peek().is(tokSymbol, ",") {
				break
			}
			p.next()
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.table(false)
	if err != nil {
		return nil, err
	}
	stmt.Table = table

	if p.peek().is(tokKeyword, "WHERE") {
		p.next()
		if stmt.Where, err = p.where(); err != nil {
			return nil, err
		}
	}

	if p.peek().is(tokKeyword, "ORDER") {
		p.next()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			col, err := p.ident()
			if err != nil {
				return nil, err
			}
			o := models.OrderBy{Column: col, Direction: models.SortAsc}
			switch t := p.peek(); {
			case t.is(tokKeyword, "ASC"):
				p.next()
			case t.is(tokKeyword, "DESC"):
				p.next()
				o.Direction = models.SortDesc
			}
			stmt.Order = append(stmt.Order, o)
			if !p.peek().is(tokSymbol, ",") {
				break
			}
			p.next()
		}
	}

	if p.peek().is(tokKeyword, "LIMIT") {
		p.next()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		stmt.Limit = &v
	}
	if p.peek().is(tokKeyword, "OFFSET") {
		p.next()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		stmt.Offset = &v
	}

	stmt.Params = p.max
	return stmt, nil
}

func (p *parser) parseInsert() (*Statement, error) {
	p.next()
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.table(true)
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Kind: KindInsert, Table: table}

	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var cols []string
	seen := map[string]bool{}
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if seen[col] {
			return nil, srvErrors.NewParseError("repeated column "+col, p.peek().pos, "")
		}
		seen[col] = true
		cols = append(cols, col)
		if !p.peek().is(tokSymbol, ",") {
			break
		}
		p.next()
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}

	if t := p.peek(); t.is(tokKeyword, "SELECT") {
		return nil, srvErrors.NewParseError("INSERT ... SELECT", t.pos, "")
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	open := p.peek()
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var vals []Value
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
		if !p.peek().is(tokSymbol, ",") {
			break
		}
		p.next()
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if t := p.peek(); t.is(tokSymbol, ",") {
		return nil, srvErrors.NewParseError("multi-row VALUES", t.pos, "")
	}
	if len(vals) != len(cols) {
		return nil, srvErrors.NewParseError("VALUES", open.pos,
			fmt.Sprintf("%d columns but %d values", len(cols), len(vals)))
	}
	for i, c := range cols {
		stmt.Set = append(stmt.Set, Assignment{Column: c, Value: vals[i]})
	}

	stmt.Returning, err = p.returningStar()
	if err != nil {
		return nil, err
	}
	stmt.Params = p.max
	return stmt, nil
}

func (p *parser) parseUpdate() (*Statement, error) {
	p.next()
	table, err := p.table(false)
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Kind: KindUpdate, Table: table}

	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	for {
		col, err := p.ident()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if seen[col] {
			return nil, srvErrors.NewParseError("repeated column "+col, p.peek().pos, "")
		}
		seen[col] = true
		stmt.Set = append(stmt.Set, Assignment{Column: col, Value: v})
		if !p.peek().is(tokSymbol, ",") {
			break
		}
		p.next()
	}

	if t := p.peek(); t.is(tokKeyword, "FROM") {
		return nil, srvErrors.NewParseError("UPDATE ... FROM", t.pos, "")
	}
	if p.peek().is(tokKeyword, "WHERE") {
		p.next()
		if stmt.Where, err = p.where(); err != nil {
			return nil, err
		}
	}

	if stmt.Returning, err = p.returningStar(); err != nil {
		return nil, err
	}
	stmt.Params = p.max
	return stmt, nil
}

func (p *parser) parseDelete() (*Statement, error) {
	p.next()
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.table(false)
	if err != nil {
		return nil, err
	}
	stmt := &Statement{Kind: KindDelete, Table: table}

	if t := p.peek(); t.kind == tokIdent && t.text == "USING" {
		return nil, srvErrors.NewParseError("DELETE ... USING", t.pos, "")
	}
	if p.peek().is(tokKeyword, "WHERE") {
		p.next()
		if stmt.Where, err = p.where(); err != nil {
			return nil, err
		}
	}

	if stmt.Returning, err = p.returningStar(); err != nil {
		return nil, err
	}
	stmt.Params = p.max
	return stmt, nil
}

// returningStar accepts an optional RETURNING *. Column lists are not supported.
func (p *parser) returningStar() (bool, error) {
	if !p.returning() {
		return false, nil
	}
	if t := p.next(); !t.is(tokSymbol, "*") {
		return false, srvErrors.NewParseError("RETURNING column list", t.pos, "only RETURNING * is supported")
	}
	return true, nil
}

func (p *parser) unexpected(t token) error {
	return srvErrors.NewParseError(describe(t), t.pos, "")
}

func (p *parser) unexpectedWant(t token, want string) error {
	return srvErrors.NewParseError(describe(t), t.pos, "expected "+want)
}

// describe names a token the way a ParseError reports it. Keywords that are
// valid SQL but outside the grammar are reported by name.
func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokKeyword:
		switch t.text {
		case "INNER", "LEFT", "RIGHT", "FULL", "CROSS", "ON":
			return "JOIN"
		case "GROUP":
			return "GROUP BY"
		}
		return t.text
	case tokString:
		return "string literal"
	case tokNumber:
		return "number " + t.text
	case tokParam:
		return "placeholder $" + t.text
	case tokSymbol:
		return "symbol " + t.text
	default:
		return "name " + t.text
	}
}
