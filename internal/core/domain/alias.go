package domain

import (
	"slices"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ExtractAliasMap maps source column name to every output alias it is
// renamed to with AS in the top-level SELECT list, in select-list order.
// Expressions are ignored. Unparseable input yields an empty map, leaving
// masking to the literal column names.
func ExtractAliasMap(sql string) map[string][]string {
	aliases := make(map[string][]string)

	tree, err := pg_query.Parse(sql)
	if err != nil || len(tree.Stmts) == 0 || tree.Stmts[0].Stmt == nil {
		return aliases
	}

	sel := tree.Stmts[0].Stmt.GetSelectStmt()
	if sel == nil {
		return aliases
	}

	for _, target := range sel.TargetList {
		rt := target.GetResTarget()
		if rt == nil || rt.Name == "" {
			continue
		}
		col := columnRefName(rt.Val)
		if col != "" && col != rt.Name && !slices.Contains(aliases[col], rt.Name) {
			aliases[col] = append(aliases[col], rt.Name)
		}
	}
	return aliases
}

// columnRefName returns the bare column of a (possibly qualified) column
// reference, or "" for anything else.
func columnRefName(node *pg_query.Node) string {
	ref := node.GetColumnRef()
	if ref == nil || len(ref.Fields) == 0 {
		return ""
	}
	return ref.Fields[len(ref.Fields)-1].GetString_().GetSval()
}
