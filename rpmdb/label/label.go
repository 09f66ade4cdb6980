// Package label resolves "name[-version[-release]]" strings against the name
// index.
//
// Names may themselves contain hyphens, so a label is tried whole first and
// then split at its last and second to last hyphen. Hyphens inside a [...]
// character class are never split points. Version and release are anchored
// regular expressions in which "." and "+" are literal and "*" is any run of
// characters, so "1.*" matches "1.0" and "1.0+git" but not "100".
package label

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rpm-software-management/rpm-sub016/rpmdb/common"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/header"
	"github.com/rpm-software-management/rpm-sub016/rpmdb/indexing"

	"github.com/rs/zerolog"
)

// Index is what the matcher reads: the name index and the headers it points at.
type Index interface {
	// Lookup returns the hits for key in the tag index. A miss may be
	// reported as common.ErrNotFound or as an empty set.
	Lookup(ctx context.Context, tag header.Tag, key string) (*indexing.Set, error)
	Header(ctx context.Context, num uint32) (header.Accessor, error)
}

// Outcome tells the two kinds of empty result apart.
type Outcome int

const (
	// Matched means at least one header survived.
	Matched Outcome = iota
	// NameAbsent means no header has the candidate name.
	NameAbsent
	// Filtered means the name exists but no header has the version and
	// release asked for.
	Filtered
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case NameAbsent:
		return "name-absent"
	case Filtered:
		return "filtered"
	}
	return "unknown"
}

// Result is the last split tried and what it found. Set is non-empty exactly
// when Outcome is Matched.
type Result struct {
	Outcome Outcome
	Set     *indexing.Set
	Name    string
	Version string
	Release string
}

// Matcher resolves labels.
type Matcher struct {
	idx                 Index
	log                 zerolog.Logger
	backtrackOnFiltered bool
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Matcher) { m.log = log }
}

// WithBacktrackOnFiltered makes a name that exists but fails the version or
// release filter fall through to the next split, as if the name were absent.
func WithBacktrackOnFiltered(on bool) Option {
	return func(m *Matcher) { m.backtrackOnFiltered = on }
}

// New creates a matcher reading idx.
func New(idx Index, opts ...Option) *Matcher {
	m := &Matcher{idx: idx, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindByLabel resolves label, trying name, then name-version, then
// name-version-release. An error is returned only for hard failures; a label
// that matches nothing is a Result with an empty outcome.
func (m *Matcher) FindByLabel(ctx context.Context, label string) (Result, error) {
	if label == "" {
		return Result{Outcome: NameAbsent}, nil
	}

	res, err := m.findMatches(ctx, label)
	if err != nil || !m.backtrack(res) {
		return res, err
	}

	name, version, ok := splitLast(label)
	if !ok {
		return res, nil
	}
	m.log.Debug().Str("name", name).Str("version", version).Msg("retrying label as name-version")
	res, err = m.findMatches(ctx, name, filter{header.TagVersion, version})
	if err != nil || !m.backtrack(res) {
		return res, err
	}

	// the step two suffix becomes the release
	release := version
	name, version, ok = splitLast(name)
	if !ok {
		return res, nil
	}
	m.log.Debug().
		Str("name", name).
		Str("version", version).
		Str("release", release).
		Msg("retrying label as name-version-release")
	return m.findMatches(ctx, name, filter{header.TagVersion, version}, filter{header.TagRelease, release})
}

func (m *Matcher) backtrack(res Result) bool {
	switch res.Outcome {
	case NameAbsent:
		return true
	case Filtered:
		return m.backtrackOnFiltered
	}
	return false
}

// filter requires a header string tag to match a version or release
// pattern.
type filter struct {
	tag     header.Tag
	pattern string
	re      *regexp.Regexp
}

// findMatches looks name up and keeps the hits whose headers pass every
// filter.
func (m *Matcher) findMatches(ctx context.Context, name string, filters ...filter) (Result, error) {
	res := Result{Name: name}
	for _, f := range filters {
		switch f.tag {
		case header.TagVersion:
			res.Version = f.pattern
		case header.TagRelease:
			res.Release = f.pattern
		}
	}

	set, err := m.idx.Lookup(ctx, header.TagName, name)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return res, common.LogAndWrapError(m.log, err, zerolog.ErrorLevel, "reading name index for %q", name)
	}
	if set.Count() == 0 {
		res.Outcome = NameAbsent
		return res, nil
	}
	if len(filters) == 0 {
		res.Outcome = Matched
		res.Set = set
		return res, nil
	}

	if err := compileFilters(filters); err != nil {
		return res, err
	}

	kept := make([]indexing.Record, 0, set.Count())
	for _, rec := range set.Records() {
		if rec.HeaderNum == 0 {
			continue
		}
		h, err := m.idx.Header(ctx, rec.HeaderNum)
		if errors.Is(err, common.ErrNotFound) {
			err = common.Corruptf("name index points at missing header %d", rec.HeaderNum)
		}
		if err != nil {
			return res, common.LogAndWrapError(m.log, err, zerolog.ErrorLevel, "reading header %d", rec.HeaderNum)
		}
		if matchAll(h, filters) {
			kept = append(kept, rec)
		}
	}

	if len(kept) == 0 {
		res.Outcome = Filtered
		return res, nil
	}
	res.Outcome = Matched
	res.Set = indexing.FromRecords(kept)
	return res, nil
}

func compileFilters(filters []filter) error {
	for i := range filters {
		re, err := regexp.Compile(patternRegexp(filters[i].pattern))
		if err != nil {
			return common.WrapError(common.ErrInvalidArgument, "%s pattern %q: %v", filters[i].tag, filters[i].pattern, err)
		}
		filters[i].re = re
	}
	return nil
}

// patternRegexp turns a version or release pattern into an anchored regular
// expression. Outside a [...] class "." and "+" are escaped and "*" becomes
// ".*". A backslash passes the next byte through untouched. An empty pattern
// only matches an empty value.
func patternRegexp(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern) + 8)
	if !strings.HasPrefix(pattern, "^") {
		b.WriteByte('^')
	}
	inClass := false
	var prev byte
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '.', '+':
			if !inClass {
				b.WriteByte('\\')
			}
		case '*':
			if !inClass {
				b.WriteByte('.')
			}
		case '\\':
			b.WriteByte(c)
			if i+1 < len(pattern) {
				i++
				c = pattern[i]
			}
		case '[':
			inClass = true
		case ']':
			// "[]" keeps the bracket as a class member
			if prev != '[' {
				inClass = false
			}
		}
		b.WriteByte(c)
		prev = c
	}
	if !strings.HasSuffix(pattern, "$") {
		b.WriteByte('$')
	}
	return b.String()
}

// matchAll reports whether h passes every compiled filter.
func matchAll(h header.Accessor, filters []filter) bool {
	for _, f := range filters {
		val, ok := h.GetString(f.tag)
		if !ok || !f.re.MatchString(val) {
			return false
		}
	}
	return true
}

// splitLast splits s at its last hyphen outside a [...] class. The name part
// must be non-empty.
func splitLast(s string) (name, rest string, ok bool) {
	depth := 0
	for i := len(s) - 1; i > 0; i-- {
		switch s[i] {
		case ']':
			depth++
		case '[':
			if depth > 0 {
				depth--
			}
		case '-':
			if depth == 0 {
				return s[:i], s[i+1:], true
			}
		}
	}
	return s, "", false
}
