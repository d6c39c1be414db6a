package errors

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrorDump is the server-side view of an error. It is logged, never returned to callers.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	// Store driver diagnostics, set when a Postgres or Mongo error is in the chain.
	Driver     string `json:"driver,omitempty"`
	DriverCode string `json:"driver_code,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"driver_message,omitempty"`
}

// Dump flattens err and its cause chain.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	var writeErr mongo.WriteException
	var cmdErr mongo.CommandError
	switch {
	case errors.As(err, &pgxErr):
		d.Driver, d.DriverCode = "postgres", pgxErr.Code
		d.Constraint, d.Table, d.Column = pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName
		d.Detail, d.Message = pgxErr.Detail, pgxErr.Message
	case errors.As(err, &pqErr):
		d.Driver, d.DriverCode = "postgres", string(pqErr.Code)
		d.Constraint, d.Table, d.Column = pqErr.Constraint, pqErr.Table, pqErr.Column
		d.Detail, d.Message = pqErr.Detail, pqErr.Message
	case errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0:
		first := writeErr.WriteErrors[0]
		d.Driver, d.DriverCode = "mongo", strconv.Itoa(first.Code)
		d.Message = first.Message
	case errors.As(err, &cmdErr):
		d.Driver, d.DriverCode = "mongo", strconv.Itoa(int(cmdErr.Code))
		d.Message = cmdErr.Message
	}
	return d
}

// Fields renders the dump as structured log fields.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.Driver == "" {
		return fields
	}
	fields["store_driver"] = d.Driver
	fields["store_code"] = d.DriverCode
	fields["store_message"] = d.Message
	for key, value := range map[string]string{
		"store_detail":     d.Detail,
		"store_table":      d.Table,
		"store_column":     d.Column,
		"store_constraint": d.Constraint,
	} {
		if value != "" {
			fields[key] = value
		}
	}
	return fields
}
