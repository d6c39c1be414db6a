package mongostore

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/angelmondragon/brandpay-backend/pkg/docstore"
)

var operators = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpNe:  "$ne",
	docstore.OpIn:  "$in",
	docstore.OpNin: "$nin",
	docstore.OpLt:  "$lt",
	docstore.OpLte: "$lte",
	docstore.OpGt:  "$gt",
	docstore.OpGte: "$gte",
}

func fieldKey(field string) string {
	if field == "id" {
		return "_id"
	}
	return field
}

// toBSON turns a filter into a query document. Conditions on the same field are
// merged into one operator document.
func toBSON(filter docstore.Filter) (bson.M, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query := bson.M{}
	for _, cond := range filter {
		key := fieldKey(cond.Field)
		op := operators[cond.Op]
		existing, ok := query[key].(bson.M)
		if !ok {
			existing = bson.M{}
			query[key] = existing
		}
		if _, dup := existing[op]; dup {
			return nil, fmt.Errorf("duplicate %s condition on %q", cond.Op, cond.Field)
		}
		existing[op] = cond.Value
	}
	return query, nil
}

func toSort(sort []docstore.Sort) (bson.D, error) {
	out := bson.D{}
	for _, s := range sort {
		if !docstore.ValidField(s.Field) {
			return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidField, s.Field)
		}
		dir := 1
		if s.Desc {
			dir = -1
		}
		out = append(out, bson.E{Key: fieldKey(s.Field), Value: dir})
	}
	return out, nil
}
