package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TableRef names a table within a schema. Schema is empty for backends
// without namespaces (SQLite).
type TableRef struct {
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// ParseTableRef splits "schema.table" at the first dot. A bare name leaves
// Schema empty so the catalog can resolve it.
func ParseTableRef(s string) TableRef {
	s = strings.TrimSpace(s)
	if schema, name, ok := strings.Cut(s, "."); ok && schema != "" && name != "" {
		return TableRef{Schema: schema, Name: name}
	}
	return TableRef{Name: s}
}

// Description is business context supplied by the operator, not the database.
type ColumnSchema struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	IsNullable  bool   `json:"is_nullable"`
	Description string `json:"description,omitempty"`
}

type TableSchema struct {
	TableRef
	Description string         `json:"description,omitempty"`
	Columns     []ColumnSchema `json:"columns"`
}

// FormatSchema renders tables as the compact outline an agent's prompt uses
// to write SQL:
//
//	Table: public.transactions -- Card and transfer activity
//	  - id: integer (NOT NULL)
//	  - memo: text (NULL) -- Free text from the bank
func FormatSchema(tables []TableSchema) string {
	if len(tables) == 0 {
		return "No tables found"
	}
	var b strings.Builder
	for i, t := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table: %s%s\n", t.TableRef, describe(t.Description))
		for _, c := range t.Columns {
			nullable := "NOT NULL"
			if c.IsNullable {
				nullable = "NULL"
			}
			fmt.Fprintf(&b, "  - %s: %s (%s)%s\n", c.Name, c.DataType, nullable, describe(c.Description))
		}
	}
	return b.String()
}

func describe(desc string) string {
	if desc == "" {
		return ""
	}
	return " -- " + desc
}

// FormatSample renders sample rows one JSON object per line, columns in the
// given order.
func FormatSample(table TableRef, set *RowSet) string {
	if set == nil || len(set.Rows) == 0 {
		return fmt.Sprintf("Table %s is empty", table)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Sample data from %s:\n", table)
	for _, row := range set.Rows {
		b.WriteString("  ")
		b.Write(orderedJSON(set.Columns, row))
		b.WriteString("\n")
	}
	return b.String()
}

// orderedJSON encodes row as a JSON object with keys in column order.
// Values that cannot be encoded fall back to their %v form.
func orderedJSON(columns []string, row map[string]any) []byte {
	if len(columns) == 0 {
		columns = sortedKeys(row)
	}
	buf := []byte{'{'}
	for i, col := range columns {
		if i > 0 {
			buf = append(buf, ", "...)
		}
		key, _ := json.Marshal(col)
		buf = append(buf, key...)
		buf = append(buf, ": "...)
		val, err := json.Marshal(row[col])
		if err != nil {
			val, _ = json.Marshal(fmt.Sprintf("%v", row[col]))
		}
		buf = append(buf, val...)
	}
	return append(buf, '}')
}
