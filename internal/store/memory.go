package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryDoc struct {
	raw     []byte
	fields  map[string]any
	acl     []string
	created time.Time
}

// MemoryStore keeps documents in process. Used for development and tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		now:         time.Now,
	}
}

func (m *MemoryStore) Create(ctx context.Context, collection, id string, doc any, opts ...CreateOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o := applyCreateOptions(opts)
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	fields, err := fieldsOf(raw)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]*memoryDoc)
		m.collections[collection] = coll
	}
	if _, exists := coll[id]; exists {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
	}
	coll[id] = &memoryDoc{raw: raw, fields: fields, acl: o.acl, created: m.now()}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, collection, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	doc, ok := m.collections[collection][id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return decode(doc.raw, out)
}

func (m *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rawPatch, err := encode(patch)
	if err != nil {
		return err
	}
	patchFields, err := fieldsOf(rawPatch)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	merged := make(map[string]any, len(doc.fields)+len(patchFields))
	for k, v := range doc.fields {
		merged[k] = v
	}
	for k, v := range patchFields {
		merged[k] = v
	}
	raw, err := encode(merged)
	if err != nil {
		return err
	}
	doc.raw = raw
	doc.fields = merged
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(m.collections[collection], id)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, collection string, q Query, out any) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateQuery(q); err != nil {
		return 0, err
	}

	type entry struct {
		id  string
		doc *memoryDoc
	}

	m.mu.RLock()
	matched := make([]entry, 0)
	for id, doc := range m.collections[collection] {
		if matchAll(id, doc.fields, q.Predicates) {
			matched = append(matched, entry{id: id, doc: doc})
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		for _, s := range q.Sort {
			c := compareForSort(lookup(a.id, a.doc.fields, s.Field), lookup(b.id, b.doc.fields, s.Field), s.Time)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		if !a.doc.created.Equal(b.doc.created) {
			return a.doc.created.Before(b.doc.created)
		}
		return a.id < b.id
	})

	total := len(matched)
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	rows := make([][]byte, 0, end-start)
	for _, e := range matched[start:end] {
		rows = append(rows, e.doc.raw)
	}
	return total, decodeList(rows, out)
}

// ACL returns the access list recorded at creation.
func (m *MemoryStore) ACL(collection, id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if doc, ok := m.collections[collection][id]; ok {
		return append([]string(nil), doc.acl...)
	}
	return nil
}

func fieldsOf(raw []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if err := decode(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func lookup(id string, fields map[string]any, path string) any {
	if path == "id" {
		return id
	}
	var cur any = fields
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = obj[part]
	}
	return cur
}

func matchAll(id string, fields map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		if !matchOne(id, fields, p) {
			return false
		}
	}
	return true
}

func matchOne(id string, fields map[string]any, p Predicate) bool {
	if p.Op == OpOr {
		for _, sub := range p.Any {
			if matchOne(id, fields, sub) {
				return true
			}
		}
		return false
	}

	val := lookup(id, fields, p.Field)
	switch p.Op {
	case OpIsNull:
		return val == nil
	case OpNotNull:
		return val != nil
	case OpEq:
		c, ok := compare(val, p.Value)
		return ok && c == 0
	case OpNe:
		c, ok := compare(val, p.Value)
		return !ok || c != 0
	case OpGt, OpGte, OpLt, OpLte:
		c, ok := compare(val, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case OpGt:
			return c > 0
		case OpGte:
			return c >= 0
		case OpLt:
			return c < 0
		default:
			return c <= 0
		}
	case OpIn:
		for _, v := range p.Values {
			if c, ok := compare(val, v); ok && c == 0 {
				return true
			}
		}
		return false
	case OpContains:
		arr, ok := val.([]any)
		if !ok {
			return false
		}
		for _, item := range arr {
			if c, ok := compare(item, p.Value); ok && c == 0 {
				return true
			}
		}
		return false
	case OpSearch:
		s, ok := val.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(p.Value.(string)))
	}
	return false
}

// compare orders a decoded document value against a Go query value.
func compare(docVal, queryVal any) (int, bool) {
	if docVal == nil {
		return 0, false
	}
	switch kindOf(queryVal) {
	case kindTime:
		a, ok1 := toTime(docVal)
		b, ok2 := toTime(queryVal)
		if !ok1 || !ok2 {
			return 0, false
		}
		return a.Compare(b), true
	case kindNumber:
		a, ok1 := toFloat(docVal)
		b, _ := toFloat(queryVal)
		if !ok1 {
			return 0, false
		}
		return cmpFloat(a, b), true
	case kindBool:
		a, ok := docVal.(bool)
		if !ok {
			return 0, false
		}
		if a == queryVal.(bool) {
			return 0, true
		}
		if !a {
			return -1, true
		}
		return 1, true
	case kindString:
		a, ok := docVal.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(a, queryVal.(string)), true
	default:
		return 0, false
	}
}

func compareForSort(a, b any, asTime bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if asTime {
		ta, ok1 := toTime(a)
		tb, ok2 := toTime(b)
		if ok1 && ok2 {
			return ta.Compare(tb)
		}
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return cmpFloat(fa, fb)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
