package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	mongoACLField     = "_acl"
	mongoCreatedField = "_created"
)

// MongoStore maps each collection onto a mongo collection of the same name.
// Documents are stored as native BSON through their bson tags.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, doc any, opts ...CreateOption) error {
	o := applyCreateOptions(opts)

	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	m["_id"] = id
	m[mongoCreatedField] = time.Now().UTC()
	if len(o.acl) > 0 {
		m[mongoACLField] = o.acl
	}

	if _, err := s.db.Collection(collection).InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrConflict)
		}
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	coll := s.db.Collection(collection)
	set := setFields(patch)
	if len(set) == 0 {
		// $set rejects an empty document; still report a missing id
		n, err := coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
		if err != nil {
			return fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
		if n == 0 {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return nil
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

// setFields drops identity keys from a patch
func setFields(patch map[string]any) bson.M {
	set := bson.M{}
	for k, v := range patch {
		if k == "id" || k == "_id" {
			continue
		}
		set[k] = v
	}
	return set
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string, q Query, out any) (int, error) {
	if err := validateQuery(q); err != nil {
		return 0, err
	}
	filter, err := buildFilter(q.Predicates)
	if err != nil {
		return 0, err
	}

	coll := s.db.Collection(collection)
	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}

	findOpts := options.Find().SetSort(buildSort(q.Sort))
	if q.Limit > 0 {
		findOpts.SetLimit(int64(q.Limit))
	}
	if q.Offset > 0 {
		findOpts.SetSkip(int64(q.Offset))
	}

	cursor, err := coll.Find(ctx, filter, findOpts)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", collection, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return 0, fmt.Errorf("decode %s: %w", collection, err)
	}
	return int(total), nil
}

func mongoField(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

func buildFilter(preds []Predicate) (bson.M, error) {
	if len(preds) == 0 {
		return bson.M{}, nil
	}
	clauses := make(bson.A, 0, len(preds))
	for _, p := range preds {
		c, err := buildClause(p)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 1 {
		return clauses[0].(bson.M), nil
	}
	return bson.M{"$and": clauses}, nil
}

func buildClause(p Predicate) (bson.M, error) {
	if p.Op == OpOr {
		if len(p.Any) == 0 {
			return bson.M{"_id": bson.M{"$in": bson.A{}}}, nil
		}
		subs := make(bson.A, 0, len(p.Any))
		for _, sub := range p.Any {
			c, err := buildClause(sub)
			if err != nil {
				return nil, err
			}
			subs = append(subs, c)
		}
		return bson.M{"$or": subs}, nil
	}

	field := mongoField(p.Field)
	switch p.Op {
	case OpEq:
		return bson.M{field: p.Value}, nil
	case OpNe:
		return bson.M{field: bson.M{"$ne": p.Value}}, nil
	case OpGt:
		return bson.M{field: bson.M{"$gt": p.Value}}, nil
	case OpGte:
		return bson.M{field: bson.M{"$gte": p.Value}}, nil
	case OpLt:
		return bson.M{field: bson.M{"$lt": p.Value}}, nil
	case OpLte:
		return bson.M{field: bson.M{"$lte": p.Value}}, nil
	case OpIn:
		return bson.M{field: bson.M{"$in": bson.A(p.Values)}}, nil
	case OpContains:
		// a scalar match against an array field matches any element
		return bson.M{field: p.Value}, nil
	case OpIsNull:
		return bson.M{field: nil}, nil
	case OpNotNull:
		return bson.M{field: bson.M{"$ne": nil}}, nil
	case OpSearch:
		text := regexp.QuoteMeta(strings.TrimSpace(p.Value.(string)))
		return bson.M{field: bson.M{"$regex": text, "$options": "i"}}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalid, p.Op)
	}
}

func buildSort(sorts []Sort) bson.D {
	d := make(bson.D, 0, len(sorts)+2)
	seen := make(map[string]bool, len(sorts))
	for _, s := range sorts {
		key := mongoField(s.Field)
		if seen[key] {
			continue
		}
		seen[key] = true
		dir := 1
		if s.Desc {
			dir = -1
		}
		d = append(d, bson.E{Key: key, Value: dir})
	}
	// mongo rejects repeated sort keys
	for _, key := range []string{mongoCreatedField, "_id"} {
		if !seen[key] {
			d = append(d, bson.E{Key: key, Value: 1})
		}
	}
	return d
}
