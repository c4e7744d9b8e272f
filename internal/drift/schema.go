package drift

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/leapstack-labs/dqsentry/internal/adapter"
	"github.com/leapstack-labs/dqsentry/internal/stage"
)

// schemaDoc mirrors the schema configuration YAML document. A column's
// value is either a bare type string or a mapping with a "type" key.
type schemaDoc struct {
	Tables map[string]tableDoc `koanf:"tables"`
}

type tableDoc struct {
	Columns map[string]any `koanf:"columns"`
}

// LoadExpectedSchema reads the declared schema configuration. A missing
// file yields an empty schema (drift detection degrades to unexpected
// tables only).
func LoadExpectedSchema(path string) (Schema, error) {
	if path == "" {
		return Schema{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Schema{}, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to read schema config %s: %w", path, err)
	}
	var doc schemaDoc
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("failed to decode schema config %s: %w", path, err)
	}

	schema := make(Schema, len(doc.Tables))
	for table, payload := range doc.Tables {
		columns := make(map[string]string, len(payload.Columns))
		for column, value := range payload.Columns {
			switch v := value.(type) {
			case string:
				columns[column] = v
			case map[string]any:
				columns[column] = fmt.Sprintf("%v", v["type"])
			default:
				columns[column] = fmt.Sprintf("%v", v)
			}
		}
		schema[table] = columns
	}
	return schema, nil
}

// CollectObservedSchema introspects the staged store's actual tables,
// columns, and types, keyed by logical table name.
func CollectObservedSchema(ctx context.Context, db adapter.Adapter) (Schema, error) {
	tables, err := db.StagingTables(ctx)
	if err != nil {
		return nil, err
	}

	schema := make(Schema, len(tables))
	for _, table := range tables {
		columns, err := db.TableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		logical := strings.TrimPrefix(table, stage.Prefix)
		observed := make(map[string]string, len(columns))
		for _, col := range columns {
			observed[col.Name] = col.Type
		}
		schema[logical] = observed
	}
	return schema, nil
}
