package policy

import (
	"fmt"
	"time"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy holds operator-controlled configuration loaded from a YAML file.
// Every section is optional; omitted settings keep the built-in defaults.
type Policy struct {
	Validation ValidationConfig `yaml:"validation"`
	Retry      RetryConfig      `yaml:"retry"`
	Masking    MaskingConfig    `yaml:"masking"`
	Context    ContextConfig    `yaml:"context"`
}

// ValidationConfig replaces the deny lists. A nil slice keeps the default;
// an explicit empty list disables that check.
type ValidationConfig struct {
	DenyKeywords []string `yaml:"deny_keywords"`
	DenyPrefixes []string `yaml:"deny_prefixes"`
}

type RetryConfig struct {
	MaxAttempts *int           `yaml:"max_attempts"`
	BaseDelay   *time.Duration `yaml:"base_delay"`
	MaxDelay    *time.Duration `yaml:"max_delay"`
	// Transient replaces the set of retryable error kinds.
	Transient []string `yaml:"transient"`
}

// MaskingConfig masks columns by name across all tables.
type MaskingConfig struct {
	Columns map[string]domain.MaskType `yaml:"columns"`
}

// ContextConfig maps table names (schema.table, or the bare name for
// backends without schemas) to business descriptions shown to the agent.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

// TableContext provides business descriptions and masking rules for a table and its columns.
type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's business description and optional mask directive.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML accepts either a plain description string or a mapping.
//
//	columns:
//	  memo: "Free text from the bank"   # description only
//	  iban:
//	    description: "Account IBAN"
//	    mask: "partial"
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}
