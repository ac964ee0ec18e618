package shipper

import (
	"fmt"
	"strings"

	"github.com/meigma/shipper/core"
)

// Group orders provider execution.
type Group int

const (
	// GroupSecondary providers run concurrently after the primary group.
	GroupSecondary Group = iota
	// GroupPrimary providers run one at a time, before any secondary provider.
	GroupPrimary
)

// String returns the config name of the group.
func (g Group) String() string {
	if g == GroupPrimary {
		return "primary"
	}
	return "secondary"
}

// ParseGroup parses a group name. The empty string selects GroupSecondary.
func ParseGroup(s string) (Group, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "secondary":
		return GroupSecondary, nil
	case "primary":
		return GroupPrimary, nil
	default:
		return 0, fmt.Errorf("unknown provider group %q (supported: primary, secondary)", s)
	}
}

// ProviderSpec is one row of the provider table evaluated at the start of
// a run.
type ProviderSpec struct {
	Provider Provider
	Group    Group

	// TagOnly restricts the provider to tag-triggered runs.
	TagOnly bool

	// Configured reports whether the provider has what it needs to run,
	// such as a token. Unconfigured providers are not attempted and do not
	// appear in the outcome.
	Configured bool
}

// selection is the providers chosen for one run, split by group.
type selection struct {
	primary   []Provider
	secondary []Provider
}

func (s selection) len() int {
	return len(s.primary) + len(s.secondary)
}

// needsRelease reports whether any selected provider attaches to a release.
func (s selection) needsRelease() bool {
	for _, p := range s.primary {
		if releaseBound(p) {
			return true
		}
	}
	for _, p := range s.secondary {
		if releaseBound(p) {
			return true
		}
	}
	return false
}

// selectProviders evaluates the table for release. Providers attached to a
// source-control release only run for tagged releases, whatever their row says.
func selectProviders(specs []ProviderSpec, release Release) selection {
	var sel selection
	for _, spec := range specs {
		if spec.Provider == nil || !spec.Configured {
			continue
		}
		if !release.Tagged && (spec.TagOnly || releaseBound(spec.Provider)) {
			continue
		}
		if spec.Group == GroupPrimary {
			sel.primary = append(sel.primary, spec.Provider)
		} else {
			sel.secondary = append(sel.secondary, spec.Provider)
		}
	}
	return sel
}

func releaseBound(p Provider) bool {
	rb, ok := p.(core.ReleaseBound)
	return ok && rb.NeedsRelease()
}
