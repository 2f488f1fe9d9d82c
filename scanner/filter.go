package scanner

import (
	"strings"

	"github.com/srg/fzlink/internal/device"
)

// Filter decides which advertisers are of interest
type Filter interface {
	Match(adv device.Advertisement) bool
}

// FilterFunc adapts a function to Filter
type FilterFunc func(adv device.Advertisement) bool

func (f FilterFunc) Match(adv device.Advertisement) bool { return f(adv) }

// PrefixFilter matches advertisers whose local name starts with a prefix, ignoring case.
// Advertisers without a local name never match.
type PrefixFilter struct {
	prefix string
}

func NewPrefixFilter(prefix string) *PrefixFilter {
	return &PrefixFilter{prefix: strings.ToLower(prefix)}
}

func (f *PrefixFilter) Match(adv device.Advertisement) bool {
	name := adv.LocalName()
	if name == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(name), f.prefix)
}

func (f *PrefixFilter) Prefix() string {
	return f.prefix
}

// matchAll accepts every advertiser
var matchAll = FilterFunc(func(device.Advertisement) bool { return true })
