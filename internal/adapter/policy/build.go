package policy

import (
	"github.com/guillermoBallester/queryguard/internal/core/domain"
	"github.com/guillermoBallester/queryguard/internal/core/service"
)

// The accessors below are nil-safe: a nil *Policy yields the defaults.

// DenyList returns the configured deny list, falling back per list to the
// built-in keywords and prefixes.
func (p *Policy) DenyList() domain.DenyList {
	def := domain.DefaultDenyList()
	if p == nil {
		return def
	}
	keywords, prefixes := def.Keywords(), def.Prefixes()
	if p.Validation.DenyKeywords != nil {
		keywords = p.Validation.DenyKeywords
	}
	if p.Validation.DenyPrefixes != nil {
		prefixes = p.Validation.DenyPrefixes
	}
	return domain.NewDenyList(keywords, prefixes)
}

// RetryPolicy overlays the retry section on base.
func (p *Policy) RetryPolicy(base service.RetryPolicy) service.RetryPolicy {
	if p == nil {
		return base
	}
	r := p.Retry
	if r.MaxAttempts != nil {
		base.MaxAttempts = *r.MaxAttempts
	}
	if r.BaseDelay != nil {
		base.BaseDelay = *r.BaseDelay
	}
	if r.MaxDelay != nil {
		base.MaxDelay = *r.MaxDelay
	}
	return base
}

func (p *Policy) Classification() domain.Classification {
	if p == nil || p.Retry.Transient == nil {
		return domain.DefaultClassification()
	}
	kinds := make([]domain.ErrorKind, 0, len(p.Retry.Transient))
	for _, k := range p.Retry.Transient {
		// Validated on load.
		kind, _ := domain.ParseErrorKind(k)
		kinds = append(kinds, kind)
	}
	return domain.NewClassification(kinds...)
}

// Masks returns the merged column → mask map.
func (p *Policy) Masks() map[string]domain.MaskType {
	if p == nil {
		return nil
	}
	masks, _ := mergedMasks(p)
	return masks
}

func (p *Policy) Masker() *domain.Masker {
	return domain.NewMasker(p.Masks())
}
