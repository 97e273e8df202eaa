package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads a YAML policy file and returns a validated Policy.
func LoadFromFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates policy YAML. Unknown keys are rejected so a
// typo cannot silently disable a setting.
func Parse(data []byte) (*Policy, error) {
	var pol Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&pol); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}

	if err := validate(&pol); err != nil {
		return nil, fmt.Errorf("validating policy: %w", err)
	}
	return &pol, nil
}

func validate(pol *Policy) error {
	r := pol.Retry
	if r.MaxAttempts != nil && *r.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", *r.MaxAttempts)
	}
	if r.BaseDelay != nil && *r.BaseDelay < 0 {
		return fmt.Errorf("retry.base_delay must not be negative, got %s", *r.BaseDelay)
	}
	if r.MaxDelay != nil && *r.MaxDelay < 0 {
		return fmt.Errorf("retry.max_delay must not be negative, got %s", *r.MaxDelay)
	}
	for _, k := range r.Transient {
		kind, err := domain.ParseErrorKind(k)
		if err != nil {
			return fmt.Errorf("retry.transient: %w", err)
		}
		switch kind {
		case domain.KindPolicyViolation, domain.KindRetriesExhausted, domain.KindCancelled:
			return fmt.Errorf("retry.transient: %q can never be retried", k)
		}
	}

	for _, kw := range pol.Validation.DenyKeywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("validation.deny_keywords contains an empty entry")
		}
	}

	for col, mt := range pol.Masking.Columns {
		if col == "" {
			return fmt.Errorf("masking.columns contains an empty key")
		}
		if mt == "" || !mt.Valid() {
			return fmt.Errorf("masking.columns[%q]: invalid value %q (allowed: redact, hash, partial, null)", col, mt)
		}
	}

	for key, tc := range pol.Context.Tables {
		if key == "" {
			return fmt.Errorf("context.tables contains an empty key")
		}
		for col, cc := range tc.Columns {
			if col == "" {
				return fmt.Errorf("context.tables[%q].columns contains an empty key", key)
			}
			if !cc.Mask.Valid() {
				return fmt.Errorf("context.tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", key, col, cc.Mask)
			}
		}
	}

	_, err := mergedMasks(pol)
	return err
}

// mergedMasks merges masking.columns with per-table column masks. Masks apply
// by column name, so one name with two different masks is an error.
func mergedMasks(pol *Policy) (map[string]domain.MaskType, error) {
	masks := make(map[string]domain.MaskType)
	add := func(col string, mt domain.MaskType) error {
		col = strings.ToLower(col)
		if prev, ok := masks[col]; ok && prev != mt {
			return fmt.Errorf("conflicting masks for column %q: %s and %s", col, prev, mt)
		}
		masks[col] = mt
		return nil
	}

	for col, mt := range pol.Masking.Columns {
		if err := add(col, mt); err != nil {
			return nil, err
		}
	}
	for _, tc := range pol.Context.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask == "" {
				continue
			}
			if err := add(col, cc.Mask); err != nil {
				return nil, err
			}
		}
	}
	return masks, nil
}
