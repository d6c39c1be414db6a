package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

func jsonValue(v any) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func jsonScan(src any, dest any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// JSONMap stores free-form gateway and partner payloads.
type JSONMap map[string]any

func (JSONMap) GormDataType() string { return "json" }

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return jsonValue(map[string]any(m))
}

func (m *JSONMap) Scan(src any) error {
	out := map[string]any{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// RateTable maps currency code to its rate against the USD base.
type RateTable map[string]decimal.Decimal

func (RateTable) GormDataType() string { return "json" }

func (r RateTable) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return jsonValue(map[string]decimal.Decimal(r))
}

func (r *RateTable) Scan(src any) error {
	out := map[string]decimal.Decimal{}
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*r = out
	return nil
}
