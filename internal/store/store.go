// Package store is the generic document store the matching core persists into.
//
// Documents are typed Go structs carrying matching `json` and `bson` tags. Backends
// encode them at the boundary (JSONB for postgres, BSON for mongo, JSON bytes in
// memory) so callers never handle serialized text. Create is a conditional insert:
// a second Create for the same (collection, id) fails with ErrConflict on every
// backend, which is what callers rely on for idempotent record creation.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document already exists")
	ErrInvalid  = errors.New("invalid query")
)

// Store is the CRUD + query contract every backend implements.
type Store interface {
	// Create inserts doc under id. Returns ErrConflict if the id is taken.
	Create(ctx context.Context, collection, id string, doc any, opts ...CreateOption) error
	// Get decodes the document into out. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string, out any) error
	// Update shallow-merges patch into the stored document.
	Update(ctx context.Context, collection, id string, patch map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// List decodes matching documents into out (a pointer to a slice) and
	// returns the total number of matches ignoring Limit/Offset.
	List(ctx context.Context, collection string, q Query, out any) (int, error)
}

type createOptions struct {
	acl []string
}

type CreateOption func(*createOptions)

// WithACL records the user ids allowed to read the document.
func WithACL(userIDs ...string) CreateOption {
	return func(o *createOptions) {
		o.acl = append(o.acl, userIDs...)
	}
}

func applyCreateOptions(opts []CreateOption) createOptions {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Op string

const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLt       Op = "lt"
	OpLte      Op = "lte"
	OpIn       Op = "in"
	OpContains Op = "contains" // array field contains Value
	OpIsNull   Op = "is_null"
	OpNotNull  Op = "not_null"
	OpSearch   Op = "search" // case-insensitive substring
	OpOr       Op = "or"
)

// Predicate is one filter clause. Field is a dotted path into the document.
type Predicate struct {
	Field  string
	Op     Op
	Value  any
	Values []any
	Any    []Predicate
}

func Eq(field string, v any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Predicate  { return Predicate{Field: field, Op: OpNe, Value: v} }
func Gt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpGt, Value: v} }
func Gte(field string, v any) Predicate { return Predicate{Field: field, Op: OpGte, Value: v} }
func Lt(field string, v any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: v} }
func Lte(field string, v any) Predicate { return Predicate{Field: field, Op: OpLte, Value: v} }
func IsNull(field string) Predicate     { return Predicate{Field: field, Op: OpIsNull} }
func NotNull(field string) Predicate    { return Predicate{Field: field, Op: OpNotNull} }
func Search(field, text string) Predicate {
	return Predicate{Field: field, Op: OpSearch, Value: text}
}
func Contains(field string, v any) Predicate {
	return Predicate{Field: field, Op: OpContains, Value: v}
}
func Or(preds ...Predicate) Predicate { return Predicate{Op: OpOr, Any: preds} }

// In matches documents whose field equals any of values.
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// InStrings is In for a string slice.
func InStrings(field string, values []string) Predicate {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return In(field, vals...)
}

// Sort orders results. Set Time when the field holds a timestamp so backends
// that store times as text compare them chronologically.
type Sort struct {
	Field string
	Desc  bool
	Time  bool
}

type Query struct {
	Predicates []Predicate
	Sort       []Sort
	Limit      int
	Offset     int
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func validateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: bad field %q", ErrInvalid, field)
	}
	return nil
}

func validateQuery(q Query) error {
	if q.Limit < 0 || q.Offset < 0 {
		return fmt.Errorf("%w: negative limit or offset", ErrInvalid)
	}
	for _, p := range q.Predicates {
		if err := validatePredicate(p); err != nil {
			return err
		}
	}
	for _, s := range q.Sort {
		if err := validateField(s.Field); err != nil {
			return err
		}
	}
	return nil
}

func validatePredicate(p Predicate) error {
	switch p.Op {
	case OpOr:
		for _, sub := range p.Any {
			if err := validatePredicate(sub); err != nil {
				return err
			}
		}
		return nil
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpContains, OpSearch:
		if p.Value == nil {
			return fmt.Errorf("%w: %s on %q needs a value", ErrInvalid, p.Op, p.Field)
		}
	case OpIn, OpIsNull, OpNotNull:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalid, p.Op)
	}
	if p.Op == OpSearch {
		if _, ok := p.Value.(string); !ok {
			return fmt.Errorf("%w: search on %q needs a string", ErrInvalid, p.Field)
		}
	}
	return validateField(p.Field)
}
