package domain

import (
	"sort"
	"strings"
	"unicode"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// defaultDenyKeywords are the mutating, DDL and DCL keywords refused anywhere
// in a statement. Operators tune the list per dialect through the policy file.
var defaultDenyKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"EXEC", "EXECUTE", "MERGE", "GRANT", "REVOKE",
}

// Stored-procedure name prefixes (SQL Server system and extended procs).
var defaultDenyPrefixes = []string{"sp_", "xp_"}

// DenyList is an immutable set of forbidden words and word prefixes.
// Matching is case-insensitive and on whole words only.
type DenyList struct {
	keywords map[string]struct{}
	prefixes []string
}

// NewDenyList copies keywords and prefixes into a new DenyList.
func NewDenyList(keywords, prefixes []string) DenyList {
	d := DenyList{keywords: make(map[string]struct{}, len(keywords))}
	for _, k := range keywords {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k != "" {
			d.keywords[k] = struct{}{}
		}
	}
	for _, p := range prefixes {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			d.prefixes = append(d.prefixes, p)
		}
	}
	return d
}

func DefaultDenyList() DenyList {
	return NewDenyList(defaultDenyKeywords, defaultDenyPrefixes)
}

// Keywords returns the deny-listed keywords in sorted order.
func (d DenyList) Keywords() []string {
	out := make([]string, 0, len(d.keywords))
	for k := range d.keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Prefixes returns a copy of the deny-listed prefixes.
func (d DenyList) Prefixes() []string {
	return append([]string(nil), d.prefixes...)
}

// match reports whether an upper-cased word is forbidden.
func (d DenyList) match(word string) bool {
	if _, ok := d.keywords[word]; ok {
		return true
	}
	for _, p := range d.prefixes {
		if strings.HasPrefix(word, p) {
			return true
		}
	}
	return false
}

// KeywordValidator is a conservative textual guard: the statement must start
// with SELECT and must not mention any deny-listed word. It is not a parser,
// so forbidden words inside string literals are rejected too.
type KeywordValidator struct {
	deny DenyList
}

func NewKeywordValidator(deny DenyList) *KeywordValidator {
	return &KeywordValidator{deny: deny}
}

// Validate never modifies sql; execution always uses the caller's text.
func (v *KeywordValidator) Validate(sql string) Verdict {
	body := skipLeadingNoise(sql)
	if body == "" {
		return Reject(ReasonEmpty)
	}

	if !strings.EqualFold(firstWord(body), "SELECT") {
		return Reject(ReasonNotASelect)
	}

	for _, word := range strings.FieldsFunc(sql, isSeparator) {
		upper := strings.ToUpper(word)
		if v.deny.match(upper) {
			return RejectKeyword(upper)
		}
	}
	return Allow()
}

// skipLeadingNoise drops leading whitespace and SQL comments. An unterminated
// comment swallows the rest of the input.
func skipLeadingNoise(sql string) string {
	s := sql
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return ""
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return ""
			}
			s = s[i+4:]
		default:
			return s
		}
	}
}

// TrimTrailingNoise drops trailing whitespace, comments and statement
// terminators so the statement can be embedded as a subquery.
func TrimTrailingNoise(sql string) string {
	s := sql
	for {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
		switch {
		case strings.HasSuffix(s, ";"):
			s = s[:len(s)-1]
		case strings.HasSuffix(s, "*/"):
			i := strings.LastIndex(s[:len(s)-2], "/*")
			if i < 0 {
				return s
			}
			s = s[:i]
		default:
			lineStart := strings.LastIndexByte(s, '\n') + 1
			i := lineCommentStart(s[lineStart:])
			if i < 0 {
				return s
			}
			s = s[:lineStart+i]
		}
	}
}

// lineCommentStart returns the offset of a "--" outside quotes, or -1.
func lineCommentStart(line string) int {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			return i
		}
	}
	return -1
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSeparator(r rune) bool {
	return !isWordRune(r)
}

// firstWord returns the leading word of s, or "" when s starts with punctuation.
func firstWord(s string) string {
	end := strings.IndexFunc(s, isSeparator)
	if end < 0 {
		return s
	}
	return s[:end]
}

// ParserValidator runs the statement through PostgreSQL's own parser and
// accepts exactly one plain SELECT. It complements KeywordValidator for
// Postgres backends: it catches multi-statement input and SELECT ... INTO.
type ParserValidator struct{}

func NewParserValidator() *ParserValidator {
	return &ParserValidator{}
}

func (v *ParserValidator) Validate(sql string) Verdict {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Reject(ReasonEmpty)
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return Reject(ReasonParseFailed)
	}

	switch len(tree.Stmts) {
	case 0:
		return Reject(ReasonEmpty)
	case 1:
	default:
		return Reject(ReasonMultipleStatements)
	}

	stmt := tree.Stmts[0].Stmt
	if stmt == nil {
		return Reject(ReasonEmpty)
	}

	sel, ok := stmt.Node.(*pg_query.Node_SelectStmt)
	if !ok {
		return Reject(ReasonNotASelect)
	}
	if sel.SelectStmt.GetIntoClause() != nil {
		return RejectKeyword("INTO")
	}
	// WITH d AS (DELETE ... RETURNING *) SELECT ... parses as a SELECT.
	for _, cte := range sel.SelectStmt.GetWithClause().GetCtes() {
		if cte.GetCommonTableExpr().GetCtequery().GetSelectStmt() == nil {
			return Reject(ReasonNotASelect)
		}
	}
	return Allow()
}

// ChainValidator applies validators in order and returns the first rejection.
type ChainValidator struct {
	validators []interface{ Validate(string) Verdict }
}

func NewChainValidator(validators ...interface{ Validate(string) Verdict }) *ChainValidator {
	return &ChainValidator{validators: validators}
}

func (c *ChainValidator) Validate(sql string) Verdict {
	for _, v := range c.validators {
		if verdict := v.Validate(sql); !verdict.Allowed {
			return verdict
		}
	}
	return Allow()
}
