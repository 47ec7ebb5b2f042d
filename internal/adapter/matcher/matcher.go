// Package matcher contains the default [domain.Matcher] implementation.
package matcher

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/fieldnavigator"
)

// oper evaluates a field operator against the values found at addr.
type oper func(domain.Document, []string, any) (bool, error)

// logic evaluates a logical operator. match is called for each
// sub-expression.
type logic func(arg any, match func(any) (bool, error)) (bool, error)

// Matcher implements [domain.Matcher].
type Matcher struct {
	docFac    domain.DocumentFactory
	comparer  domain.Comparer
	fieldNav  domain.FieldNavigator
	compFuncs map[string]oper
	logicOps  map[string]logic
}

// NewMatcher returns a new implementation of domain.Matcher.
func NewMatcher(opts ...Option) domain.Matcher {
	m := &Matcher{
		docFac:   data.NewDocument,
		comparer: comparer.NewComparer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fieldNav == nil {
		m.fieldNav = fieldnavigator.NewFieldNavigator(m.docFac)
	}

	m.logicOps = map[string]logic{
		"$and": m.and,
		"$or":  m.or,
		"$nor": m.nor("$nor"),
		"$not": m.nor("$not"),
	}
	m.compFuncs = map[string]oper{
		"$eq":     m.eq,
		"$ne":     m.ne,
		"$gt":     m.rangeOp("$gt", func(c int) bool { return c > 0 }),
		"$gte":    m.rangeOp("$gte", func(c int) bool { return c >= 0 }),
		"$lt":     m.rangeOp("$lt", func(c int) bool { return c < 0 }),
		"$lte":    m.rangeOp("$lte", func(c int) bool { return c <= 0 }),
		"$in":     m.in,
		"$nin":    m.nin,
		"$exists": m.exists,
		"$type":   m.typeOf,
	}
	return m
}

// Match implements [domain.Matcher]. A nil query matches everything.
func (m *Matcher) Match(val any, qry any) (bool, error) {
	if qry == nil {
		return true, nil
	}
	query, err := m.asDocument(qry)
	if err != nil {
		return false, err
	}

	doc, ok := val.(domain.Document)
	if !ok {
		return m.nonDocMatch(val, query)
	}
	return m.matchDoc(doc, query)
}

func (m *Matcher) asDocument(v any) (domain.Document, error) {
	if doc, ok := v.(domain.Document); ok {
		return doc, nil
	}
	doc, err := m.docFac(v)
	if err != nil {
		return nil, domain.ErrValidation{Reason: fmt.Sprintf("query must be an object, got %T", v)}
	}
	return doc, nil
}

// nonDocMatch evaluates a query against a primitive by placing both under
// the same key.
func (m *Matcher) nonDocMatch(val any, qry domain.Document) (bool, error) {
	valDoc, err := m.docFac(nil)
	if err != nil {
		return false, err
	}
	valDoc.Set("value", val)
	return m.matchField(valDoc, []string{"value"}, qry)
}

// matchDoc evaluates a top-level query. Plain fields and logical operators
// can be mixed here and are combined with AND.
func (m *Matcher) matchDoc(obj, qry domain.Document) (bool, error) {
	for key, value := range qry.Iter() {
		var matches bool
		var err error
		if strings.HasPrefix(key, "$") {
			fn, ok := m.logicOps[key]
			if !ok {
				return false, domain.ErrUnknownOperator{Operator: key}
			}
			matches, err = fn(value, func(sub any) (bool, error) {
				return m.Match(obj, sub)
			})
		} else {
			var addr []string
			if addr, err = m.fieldNav.GetAddress(key); err != nil {
				return false, err
			}
			matches, err = m.matchField(obj, addr, value)
		}
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

// matchField evaluates the expression found at a field position.
func (m *Matcher) matchField(obj domain.Document, addr []string, value any) (bool, error) {
	valueDoc, ok := value.(domain.Document)
	if !ok {
		return m.eq(obj, addr, value)
	}
	if valueDoc.Len() == 0 {
		return m.eq(obj, addr, value)
	}

	hasOps, err := m.hasOperators(valueDoc)
	if err != nil {
		return false, err
	}

	if !hasOps {
		// implicit $and over the nested paths
		for key, sub := range valueDoc.Iter() {
			subAddr, err := m.fieldNav.GetAddress(key)
			if err != nil {
				return false, err
			}
			matches, err := m.matchField(obj, append(append([]string{}, addr...), subAddr...), sub)
			if err != nil || !matches {
				return false, err
			}
		}
		return true, nil
	}

	for op := range valueDoc.Keys() {
		_, isComp := m.compFuncs[op]
		_, isLogic := m.logicOps[op]
		if !isComp && !isLogic {
			return false, domain.ErrUnknownOperator{Operator: op}
		}
	}

	for op, arg := range valueDoc.Iter() {
		var matches bool
		if fn, ok := m.logicOps[op]; ok {
			matches, err = fn(arg, func(sub any) (bool, error) {
				return m.matchField(obj, addr, sub)
			})
		} else {
			matches, err = m.compFuncs[op](obj, addr, arg)
		}
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) hasOperators(qry domain.Document) (bool, error) {
	totalFields := 0
	dollarFields := 0
	for field := range qry.Keys() {
		totalFields++
		if strings.HasPrefix(field, "$") {
			dollarFields++
		}
	}
	if dollarFields > 0 && totalFields != dollarFields {
		return false, domain.ErrMixedOperators
	}
	return dollarFields > 0, nil
}

func (m *Matcher) subExpressions(op string, arg any) ([]any, error) {
	switch t := arg.(type) {
	case []any:
		return t, nil
	case domain.Document:
		if op == "$not" {
			return []any{t}, nil
		}
	}
	return nil, domain.ErrValidation{Path: op, Reason: fmt.Sprintf("%s operator used without an array", op)}
}

func (m *Matcher) and(arg any, match func(any) (bool, error)) (bool, error) {
	subs, err := m.subExpressions("$and", arg)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		matches, err := match(sub)
		if err != nil || !matches {
			return false, err
		}
	}
	return true, nil
}

func (m *Matcher) or(arg any, match func(any) (bool, error)) (bool, error) {
	subs, err := m.subExpressions("$or", arg)
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		matches, err := match(sub)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

// nor serves both $nor and $not: true iff no sub-expression matches.
func (m *Matcher) nor(op string) logic {
	return func(arg any, match func(any) (bool, error)) (bool, error) {
		subs, err := m.subExpressions(op, arg)
		if err != nil {
			return false, err
		}
		for _, sub := range subs {
			matches, err := match(sub)
			if err != nil {
				return false, err
			}
			if matches {
				return false, nil
			}
		}
		return true, nil
	}
}

// values returns every candidate value found at addr. Arrays contribute
// their elements and themselves.
func (m *Matcher) values(obj domain.Document, addr []string) ([]any, error) {
	fields, _, err := m.fieldNav.GetField(obj, addr...)
	if err != nil {
		return nil, err
	}
	res := make([]any, 0, len(fields))
	for _, field := range fields {
		value, defined := field.Get()
		if !defined {
			res = append(res, field)
			continue
		}
		if arr, ok := value.([]any); ok {
			res = append(res, arr...)
		}
		res = append(res, value)
	}
	return res, nil
}

func (m *Matcher) someValue(obj domain.Document, addr []string, fn func(any) (bool, error)) (bool, error) {
	values, err := m.values(obj, addr)
	if err != nil {
		return false, err
	}
	for _, value := range values {
		matches, err := fn(value)
		if err != nil || matches {
			return matches, err
		}
	}
	return false, nil
}

func (m *Matcher) isDefined(v any) bool {
	if g, ok := v.(domain.Getter); ok {
		_, defined := g.Get()
		return defined
	}
	return true
}

func (m *Matcher) equals(a, b any) (bool, error) {
	if !m.isDefined(a) || !m.isDefined(b) {
		return false, nil
	}
	c, err := m.comparer.Compare(a, b)
	return c == 0, err
}

func (m *Matcher) eq(obj domain.Document, addr []string, arg any) (bool, error) {
	return m.someValue(obj, addr, func(value any) (bool, error) {
		return m.equals(value, arg)
	})
}

func (m *Matcher) ne(obj domain.Document, addr []string, arg any) (bool, error) {
	matches, err := m.eq(obj, addr, arg)
	return !matches, err
}

func (m *Matcher) rangeOp(name string, accept func(int) bool) oper {
	return func(obj domain.Document, addr []string, arg any) (bool, error) {
		if !m.isScalable(arg) {
			return false, domain.ErrValidation{
				Path:   strings.Join(addr, ".") + "." + name,
				Reason: fmt.Sprintf("expected a number or a date, got %T", arg),
			}
		}
		return m.someValue(obj, addr, func(value any) (bool, error) {
			if !m.comparer.Comparable(value, arg) {
				return false, nil
			}
			c, err := m.comparer.Compare(value, arg)
			if err != nil {
				return false, err
			}
			return accept(c), nil
		})
	}
}

func (m *Matcher) isScalable(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32,
		uint64, float32, float64, *big.Int, time.Time:
		return true
	}
	return false
}

func (m *Matcher) in(obj domain.Document, addr []string, arg any) (bool, error) {
	set, ok := arg.([]any)
	if !ok {
		return false, domain.ErrValidation{
			Path:   strings.Join(addr, ".") + ".$in",
			Reason: "$in operator called with a non-array",
		}
	}
	return m.someValue(obj, addr, func(value any) (bool, error) {
		for _, item := range set {
			matches, err := m.equals(value, item)
			if err != nil || matches {
				return matches, err
			}
		}
		return false, nil
	})
}

func (m *Matcher) nin(obj domain.Document, addr []string, arg any) (bool, error) {
	if _, ok := arg.([]any); !ok {
		return false, domain.ErrValidation{
			Path:   strings.Join(addr, ".") + ".$nin",
			Reason: "$nin operator called with a non-array",
		}
	}
	matches, err := m.in(obj, addr, arg)
	return !matches, err
}

func (m *Matcher) exists(obj domain.Document, addr []string, arg any) (bool, error) {
	fields, _, err := m.fieldNav.GetField(obj, addr...)
	if err != nil {
		return false, err
	}

	want := m.isTruthy(arg)
	for _, field := range fields {
		if _, defined := field.Get(); defined {
			return want, nil
		}
	}
	return !want, nil
}

func (m *Matcher) isTruthy(value any) bool {
	switch t := value.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if n, ok := data.AsInt64(value); ok {
		return n != 0
	}
	if f, ok := value.(float64); ok {
		return f != 0
	}
	return true
}

func (m *Matcher) typeOf(obj domain.Document, addr []string, arg any) (bool, error) {
	want, ok := arg.(string)
	if !ok {
		return false, domain.ErrValidation{
			Path:   strings.Join(addr, ".") + ".$type",
			Reason: "$type operator called with a non-string",
		}
	}
	return m.someValue(obj, addr, func(value any) (bool, error) {
		return TypeName(value) == want, nil
	})
}

// TypeName returns the name used by $type for the runtime type of v.
func TypeName(v any) string {
	if g, ok := v.(domain.Getter); ok {
		val, defined := g.Get()
		if !defined {
			return "undefined"
		}
		v = val
	}
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case time.Time:
		return "date"
	case *big.Int:
		return "bigint"
	case []any:
		return "array"
	case domain.Document:
		return "object"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32,
		uint64, float32, float64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
