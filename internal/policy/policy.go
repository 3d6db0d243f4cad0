// Package policy owns the per-tenant routing configuration: which transforms
// run, in which order, under which latency budget. Documents are immutable
// once loaded; a reload swaps the whole document atomically so in-flight
// evaluations never see a half-applied change.
package policy

import (
	"fmt"
	"sort"

	dErrors "claimgate/pkg/domain-errors"
)

// Route names an ordered transform chain and its latency budget.
type Route struct {
	Transforms      []string `koanf:"transforms" yaml:"transforms"`
	LatencyBudgetMS int64    `koanf:"latency_budget_ms" yaml:"latency_budget_ms"`
}

// Profile groups routes for one regulatory locale.
type Profile struct {
	Locale string           `koanf:"locale" yaml:"locale"`
	Routes map[string]Route `koanf:"routes" yaml:"routes"`
}

// Document is one complete policy configuration.
type Document struct {
	Version  string             `koanf:"version" yaml:"version"`
	Profiles map[string]Profile `koanf:"profiles" yaml:"profiles"`
}

// Resolve returns the route chain for a profile/route pair.
func (d *Document) Resolve(profile, route string) (Route, error) {
	p, ok := d.Profiles[profile]
	if !ok {
		return Route{}, dErrors.NewField(dErrors.CodeValidation, "profile", fmt.Sprintf("unknown profile %q", profile))
	}
	r, ok := p.Routes[route]
	if !ok {
		return Route{}, dErrors.NewField(dErrors.CodeValidation, "route", fmt.Sprintf("unknown route %q in profile %q", route, profile))
	}
	return r, nil
}

// Locale returns the profile's locale, empty when the profile is unknown.
func (d *Document) Locale(profile string) string {
	return d.Profiles[profile].Locale
}

// Validate checks structural soundness. known reports whether a transform
// name is registered; a nil predicate skips that check.
func (d *Document) Validate(known func(string) bool) error {
	if d.Version == "" {
		return dErrors.NewField(dErrors.CodeValidation, "version", "policy version is required")
	}
	if len(d.Profiles) == 0 {
		return dErrors.NewField(dErrors.CodeValidation, "profiles", "at least one profile is required")
	}

	for _, profileName := range sortedKeys(d.Profiles) {
		profile := d.Profiles[profileName]
		if profile.Locale == "" {
			return dErrors.NewField(dErrors.CodeValidation,
				fmt.Sprintf("profiles.%s.locale", profileName), "locale is required")
		}
		if len(profile.Routes) == 0 {
			return dErrors.NewField(dErrors.CodeValidation,
				fmt.Sprintf("profiles.%s.routes", profileName), "at least one route is required")
		}
		for _, routeName := range sortedKeys(profile.Routes) {
			route := profile.Routes[routeName]
			path := fmt.Sprintf("profiles.%s.routes.%s", profileName, routeName)
			if len(route.Transforms) == 0 {
				return dErrors.NewField(dErrors.CodeValidation, path+".transforms", "route declares no transforms")
			}
			if route.LatencyBudgetMS <= 0 {
				return dErrors.NewField(dErrors.CodeValidation, path+".latency_budget_ms", "latency budget must be positive")
			}
			if known == nil {
				continue
			}
			for i, name := range route.Transforms {
				if !known(name) {
					return dErrors.NewField(dErrors.CodeValidation,
						fmt.Sprintf("%s.transforms[%d]", path, i),
						fmt.Sprintf("unknown transform %q", name))
				}
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
