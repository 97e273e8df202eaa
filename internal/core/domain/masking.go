package domain

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// MaskType represents a column masking strategy.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid returns true for a known strategy or the empty "no mask" value.
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// Apply transforms one value. Masked values may change type (an int account
// number becomes a string under hash or partial). SQL NULL stays NULL.
func (m MaskType) Apply(value any) any {
	if value == nil {
		return nil
	}
	switch m {
	case MaskRedact:
		return "***"
	case MaskHash:
		sum := sha256.Sum256(fmt.Appendf(nil, "%v", value))
		return fmt.Sprintf("%x", sum)
	case MaskPartial:
		return lastFour(fmt.Sprintf("%v", value))
	case MaskNull:
		return nil
	default:
		return value
	}
}

// lastFour keeps the trailing four runes visible, as on a card statement.
func lastFour(s string) string {
	runes := []rune(s)
	if len(runes) <= 4 {
		return "***" + s
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

// Masker hides sensitive columns in result rows. Columns are matched by
// name, case-insensitively, regardless of the table they come from.
type Masker struct {
	masks map[string]MaskType
}

func NewMasker(masks map[string]MaskType) *Masker {
	m := &Masker{masks: make(map[string]MaskType, len(masks))}
	for col, mt := range masks {
		if mt != "" {
			m.masks[strings.ToLower(col)] = mt
		}
	}
	return m
}

func (m *Masker) Empty() bool {
	return m == nil || len(m.masks) == 0
}

// ForQuery returns a masker that also covers aliases introduced by sql, so
// "SELECT account_number AS acct" stays masked.
func (m *Masker) ForQuery(sql string) *Masker {
	if m.Empty() {
		return m
	}
	aliases := ExtractAliasMap(sql)
	if len(aliases) == 0 {
		return m
	}
	out := &Masker{masks: make(map[string]MaskType, len(m.masks)+len(aliases))}
	for col, mt := range m.masks {
		out.masks[col] = mt
	}
	for col, names := range aliases {
		mt, ok := m.masks[strings.ToLower(col)]
		if !ok {
			continue
		}
		for _, alias := range names {
			out.masks[strings.ToLower(alias)] = mt
		}
	}
	return out
}

// Apply masks rows in place.
func (m *Masker) Apply(rows []map[string]any) {
	if m.Empty() {
		return
	}
	for _, row := range rows {
		for col, val := range row {
			if mt, ok := m.masks[strings.ToLower(col)]; ok {
				row[col] = mt.Apply(val)
			}
		}
	}
}

func sortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
