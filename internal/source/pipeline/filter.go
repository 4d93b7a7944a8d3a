package pipeline

import (
	"fmt"
	"regexp"

	"github.com/samber/lo"
	"metadata-ingestion/internal/common/errors"
	"metadata-ingestion/internal/config"
)

// Filter applies include and exclude patterns to pipeline names. Patterns
// match case-insensitively from the start of the name.
type Filter struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// NewFilter compiles pattern. A nil pattern filters nothing.
func NewFilter(pattern *config.FilterPattern) (*Filter, error) {
	f := &Filter{}
	if pattern == nil {
		return f, nil
	}

	var err error
	if f.includes, err = compile(pattern.Includes); err != nil {
		return nil, err
	}
	if f.excludes, err = compile(pattern.Excludes); err != nil {
		return nil, err
	}
	return f, nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)^(?:" + p + ")")
		if err != nil {
			return nil, errors.ConfigError(fmt.Sprintf("invalid filter pattern %q: %v", p, err))
		}
		out = append(out, re)
	}
	return out, nil
}

// Filtered reports whether name must be skipped
func (f *Filter) Filtered(name string) bool {
	matches := func(re *regexp.Regexp) bool { return re.MatchString(name) }

	if len(f.includes) > 0 && !lo.ContainsBy(f.includes, matches) {
		return true
	}
	return lo.ContainsBy(f.excludes, matches)
}
