package adapter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Strategy selects how NegotiateVersion resolves a requested representation
// version against the versions an adapter declares.
type Strategy string

const (
	// StrategyExact requires the requested version verbatim.
	StrategyExact Strategy = "exact"
	// StrategyLatest ignores the request and picks the highest version.
	StrategyLatest Strategy = "latest"
	// StrategyStable picks the highest version without a pre-release marker.
	StrategyStable Strategy = "stable"
	// StrategyMinimumCompatible picks the lowest version >= the request.
	StrategyMinimumCompatible Strategy = "minimum-compatible"
	// StrategyBestEffort prefers an exact match, then the closest available
	// version, then the registry-declared default. It is the only strategy
	// that permits fallback to the default.
	StrategyBestEffort Strategy = "best-effort"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExact, StrategyLatest, StrategyStable, StrategyMinimumCompatible, StrategyBestEffort:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("adapter: unknown negotiation strategy %q", s)
}

// Negotiation is the outcome of a version negotiation.
type Negotiation struct {
	Version string
	// FallbackUsed reports that the registry-declared default was selected
	// because no declared version was compatible.
	FallbackUsed bool
	// Warning is set when the selected version is not the exact request.
	Warning string
}

// NegotiateVersion selects a representation version for repr.
//
// Comparison is field-wise numeric after stripping pre-release suffixes;
// StrategyStable additionally filters out any version carrying a pre-release
// marker before selecting the highest remaining one.
func (r *Registry) NegotiateVersion(repr, requested string, strategy Strategy) (Negotiation, error) {
	a, err := r.Get(repr)
	if err != nil {
		return Negotiation{}, err
	}
	if _, err := ParseStrategy(string(strategy)); err != nil {
		return Negotiation{}, err
	}

	available := append([]string(nil), a.Versions()...)
	sort.Slice(available, func(i, j int) bool { return compareVersions(available[i], available[j]) < 0 })

	incompatible := func() error {
		return fmt.Errorf("%w: representation %q has no version compatible with %q under %s (available: %s)",
			ErrVersionIncompatible, repr, requested, strategy, strings.Join(available, ", "))
	}

	switch strategy {
	case StrategyExact:
		for _, v := range available {
			if v == requested {
				return Negotiation{Version: v}, nil
			}
		}
		return Negotiation{}, incompatible()

	case StrategyLatest:
		if len(available) == 0 {
			return Negotiation{}, incompatible()
		}
		v := available[len(available)-1]
		n := Negotiation{Version: v}
		if requested != "" && v != requested {
			n.Warning = fmt.Sprintf("requested %s, selected latest %s", requested, v)
		}
		return n, nil

	case StrategyStable:
		var stable []string
		for _, v := range available {
			if !isPreRelease(v) {
				stable = append(stable, v)
			}
		}
		if len(stable) == 0 {
			return Negotiation{}, incompatible()
		}
		v := stable[len(stable)-1]
		n := Negotiation{Version: v}
		if requested != "" && v != requested {
			n.Warning = fmt.Sprintf("requested %s, selected stable %s", requested, v)
		}
		return n, nil

	case StrategyMinimumCompatible:
		for _, v := range available {
			if compareVersions(v, requested) >= 0 {
				n := Negotiation{Version: v}
				if v != requested {
					n.Warning = fmt.Sprintf("requested %s, selected minimum compatible %s", requested, v)
				}
				return n, nil
			}
		}
		return Negotiation{}, incompatible()

	case StrategyBestEffort:
		for _, v := range available {
			if v == requested {
				return Negotiation{Version: v}, nil
			}
		}
		// Closest below the request, else closest above.
		for i := len(available) - 1; i >= 0; i-- {
			if compareVersions(available[i], requested) < 0 {
				return Negotiation{
					Version: available[i],
					Warning: fmt.Sprintf("no exact match for %s, selected closest %s", requested, available[i]),
				}, nil
			}
		}
		if len(available) > 0 {
			return Negotiation{
				Version: available[0],
				Warning: fmt.Sprintf("no exact match for %s, selected closest %s", requested, available[0]),
			}, nil
		}
		if def := r.defaultVersion(a); def != "" {
			return Negotiation{
				Version:      def,
				FallbackUsed: true,
				Warning:      fmt.Sprintf("no declared versions, fell back to default %s", def),
			}, nil
		}
		return Negotiation{}, incompatible()
	}
	return Negotiation{}, incompatible()
}

// compareVersions orders two version strings by field-wise numeric comparison
// after stripping pre-release suffixes. Missing fields compare as zero;
// non-numeric fields compare as zero.
func compareVersions(a, b string) int {
	af := versionFields(a)
	bf := versionFields(b)
	n := len(af)
	if len(bf) > n {
		n = len(bf)
	}
	for i := 0; i < n; i++ {
		var av, bv int
		if i < len(af) {
			av = af[i]
		}
		if i < len(bf) {
			bv = bf[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func versionFields(v string) []int {
	v = stripPreRelease(v)
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = 0
		}
		out = append(out, n)
	}
	return out
}

func stripPreRelease(v string) string {
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		return v[:i]
	}
	return v
}

func isPreRelease(v string) bool {
	return strings.Contains(v, "-")
}
