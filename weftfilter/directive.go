// Package weftfilter maps filter directive strings onto enable/disable
// decisions per callsite and provides the filtering layer that applies
// them in front of another collector.
//
// A directive string is a comma-separated list of entries. Each entry
// is either a bare level ("warn"), which sets the default for targets
// no other entry matches, or target=level ("myapp::db=debug"). Targets
// match by path prefix on "::" boundaries and the most specific
// (longest) matching target wins regardless of entry order.
package weftfilter

import (
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/weftlog/weft/weftnum"
)

// EnvVar is the environment variable FromEnv reads directives from.
const EnvVar = "WEFT_FILTER"

// Directive is one parsed target=level entry.
type Directive struct {
	Target string // "" for the bare-level default
	Level  weftnum.Level
}

// Set is an immutable group of parsed directives. A nil or empty Set
// does not narrow anything: every callsite stays enabled.
type Set struct {
	directives []Directive // sorted longest target first
	def        weftnum.Level
	hasDefault bool
}

// Parse builds a Set from a directive string. An empty string yields
// an empty Set.
func Parse(s string) (*Set, error) {
	set := &Set{}
	for _, ent := range strings.Split(s, ",") {
		ent = strings.TrimSpace(ent)
		if ent == "" {
			continue
		}
		eq := strings.IndexByte(ent, '=')
		if eq == -1 {
			lvl, err := weftnum.LevelString(ent)
			if err != nil {
				return nil, errors.Wrapf(err, "bad filter directive %q", ent)
			}
			set.def = lvl
			set.hasDefault = true
			continue
		}
		target := strings.TrimSpace(ent[:eq])
		levelStr := strings.TrimSpace(ent[eq+1:])
		if target == "" {
			return nil, errors.Errorf("bad filter directive %q: empty target", ent)
		}
		lvl, err := weftnum.LevelString(levelStr)
		if err != nil {
			return nil, errors.Wrapf(err, "bad filter directive %q", ent)
		}
		set.directives = append(set.directives, Directive{Target: target, Level: lvl})
	}
	sort.SliceStable(set.directives, func(i, j int) bool {
		return len(set.directives[i].Target) > len(set.directives[j].Target)
	})
	return set, nil
}

// MustParse is Parse for directive strings fixed at compile time.
func MustParse(s string) *Set {
	set, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return set
}

// FromEnv parses directives from the WEFT_FILTER environment variable.
func FromEnv() (*Set, error) {
	return Parse(os.Getenv(EnvVar))
}

func matches(directiveTarget, target string) bool {
	if !strings.HasPrefix(target, directiveTarget) {
		return false
	}
	rest := target[len(directiveTarget):]
	return rest == "" || strings.HasPrefix(rest, "::")
}

// Enabled reports whether a callsite at level under target passes the
// directives. The longest matching target decides; the bare-level
// default covers unmatched targets; with directives present and no
// default, unmatched targets are disabled.
func (set *Set) Enabled(target string, level weftnum.Level) bool {
	if set == nil || (len(set.directives) == 0 && !set.hasDefault) {
		return true
	}
	for _, d := range set.directives {
		if matches(d.Target, target) {
			return level >= d.Level
		}
	}
	if set.hasDefault {
		return level >= set.def
	}
	return false
}

// Len reports how many entries the Set carries, counting the default.
func (set *Set) Len() int {
	if set == nil {
		return 0
	}
	n := len(set.directives)
	if set.hasDefault {
		n++
	}
	return n
}
