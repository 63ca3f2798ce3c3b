package index

import (
	"encoding/json"
	"fmt"
	"strconv"

	domidx "github.com/kailas-cloud/seqdex/internal/domain/index"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

// fieldRow is the JSON-serializable representation of a field for HSET.
type fieldRow struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// indexToHash converts a domain Index to a map for HSET.
func indexToHash(idx domidx.Index) (map[string]string, error) {
	rows := make([]fieldRow, len(idx.Fields()))
	for i, f := range idx.Fields() {
		rows[i] = fieldRow{Name: f.Name(), Type: string(f.FieldType())}
	}
	fieldsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]string{
		"name":        idx.Name(),
		"fields_json": string(fieldsJSON),
		"created_at":  strconv.FormatInt(idx.CreatedAt(), 10),
	}, nil
}

// indexFromHash hydrates a domain Index from an HGETALL result map.
func indexFromHash(m map[string]string) (domidx.Index, error) {
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domidx.Index{}, fmt.Errorf("invalid created_at: %w", err)
	}

	var rows []fieldRow
	if err := json.Unmarshal([]byte(m["fields_json"]), &rows); err != nil {
		return domidx.Index{}, fmt.Errorf("unmarshal fields: %w", err)
	}

	fields := make([]field.Field, len(rows))
	for i, r := range rows {
		fields[i] = field.Reconstruct(r.Name, field.Type(r.Type))
	}
	return domidx.Reconstruct(m["name"], fields, createdAt), nil
}
