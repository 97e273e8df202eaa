package postgres

// queryListTables has one %s placeholder for the schema filter clause.
const queryListTables = `
	SELECT t.table_schema, t.table_name
	FROM information_schema.tables t
	WHERE %s
		AND t.table_type IN ('BASE TABLE', 'VIEW')
	ORDER BY t.table_schema, t.table_name`

// queryColumns: $1 is the schema, $2 the table name. COMMENT ON COLUMN
// values become descriptions.
const queryColumns = `
	SELECT c.column_name, c.data_type, c.is_nullable = 'YES',
		COALESCE(pg_catalog.col_description(
			format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int
		), '')
	FROM information_schema.columns c
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

// queryTableComment: $1 is the schema, $2 the table name.
const queryTableComment = `
	SELECT COALESCE(pg_catalog.obj_description(format('%I.%I', $1::text, $2::text)::regclass, 'pg_class'), '')`

// queryResolveSchema finds the schema of an unqualified table name. It has
// one %s placeholder for the schema filter clause; $1 is the table name.
const queryResolveSchema = `
	SELECT t.table_schema
	FROM information_schema.tables t
	WHERE t.table_name = $1
		AND %s
	ORDER BY (t.table_schema = 'public') DESC, t.table_schema
	LIMIT 1`
