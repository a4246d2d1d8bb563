package crud

import (
	"database/sql"

	"github.com/conduit-lang/smokescreen/pkg/orm"
)

// ScanRecords scans SQL rows into records of table. Byte slices are
// converted to strings.
func ScanRecords(rows *sql.Rows, table string) ([]*orm.Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []*orm.Record
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		attrs := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				attrs[col] = string(b)
			} else {
				attrs[col] = values[i]
			}
		}
		results = append(results, orm.NewRecord(table, attrs))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Models converts records to a model slice
func Models(records []*orm.Record) []orm.Model {
	models := make([]orm.Model, len(records))
	for i, rec := range records {
		models[i] = rec
	}
	return models
}
