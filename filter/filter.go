// Package filter provides rule-based file predicates for source enumeration.
//
// Filters include or exclude files based on glob patterns, size, and age.
// They are inspired by rclone's filtering system.
//
// Basic usage:
//
//	f := filter.New(
//	    filter.Include("**/*.ndjson"),
//	    filter.Exclude("*.tmp"),
//	    filter.MaxSize(100 * filter.MB),
//	)
//
//	sources, err := enumerate.List(roots, enumerate.Options{
//	    Predicate: f.Predicate(),
//	})
package filter

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/grokify/omnibatch"
)

// Filter determines whether files take part in an enumeration.
type Filter struct {
	rules []rule
}

type ruleType int

const (
	ruleInclude ruleType = iota
	ruleExclude
	ruleMinSize
	ruleMaxSize
	ruleMinAge
	ruleMaxAge
)

type rule struct {
	ruleType ruleType
	pattern  string        // for include/exclude
	size     int64         // for min/max size
	duration time.Duration // for min/max age
}

// FileInfo contains the information needed for filtering.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Option configures a Filter.
type Option func(*Filter)

// New creates a new Filter with the given options.
func New(opts ...Option) *Filter {
	f := &Filter{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Include adds an include pattern.
// Files matching any include pattern are included (unless excluded).
// Patterns use doublestar syntax (*, **, ?, [...], {a,b}).
func Include(pattern string) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleInclude,
			pattern:  pattern,
		})
	}
}

// Exclude adds an exclude pattern.
// Files matching any exclude pattern are excluded.
// Exclude rules take precedence over include rules.
func Exclude(pattern string) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleExclude,
			pattern:  pattern,
		})
	}
}

// MinSize sets the minimum file size filter.
// Files smaller than this are excluded.
func MinSize(size int64) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleMinSize,
			size:     size,
		})
	}
}

// MaxSize sets the maximum file size filter.
// Files larger than this are excluded.
func MaxSize(size int64) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleMaxSize,
			size:     size,
		})
	}
}

// MinAge sets the minimum file age filter.
// Files newer than this are excluded.
// Age is calculated as time since modification.
func MinAge(d time.Duration) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleMinAge,
			duration: d,
		})
	}
}

// MaxAge sets the maximum file age filter.
// Files older than this are excluded.
func MaxAge(d time.Duration) Option {
	return func(f *Filter) {
		f.rules = append(f.rules, rule{
			ruleType: ruleMaxAge,
			duration: d,
		})
	}
}

// FromFile loads filter rules from a file.
// Each line is a pattern. Lines starting with + are includes,
// lines starting with - are excludes. Empty lines and lines
// starting with # are ignored.
//
// Example file:
//
//	# Training shards only
//	+ train/**/*.ndjson
//	# Skip partial uploads
//	- *.tmp
func FromFile(path string) (Option, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var opts []Option
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "+ ") {
			opts = append(opts, Include(strings.TrimPrefix(line, "+ ")))
		} else if strings.HasPrefix(line, "- ") {
			opts = append(opts, Exclude(strings.TrimPrefix(line, "- ")))
		} else {
			// Default to exclude
			opts = append(opts, Exclude(line))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return func(f *Filter) {
		for _, opt := range opts {
			opt(f)
		}
	}, nil
}

// Validate reports the first malformed include or exclude pattern as a
// *omnibatch.PatternError.
func (f *Filter) Validate() error {
	if f == nil {
		return nil
	}
	for _, r := range f.rules {
		if r.ruleType != ruleInclude && r.ruleType != ruleExclude {
			continue
		}
		if !doublestar.ValidatePattern(r.pattern) {
			return &omnibatch.PatternError{Pattern: r.pattern, Err: doublestar.ErrBadPattern}
		}
	}
	return nil
}

// Match returns true if the file passes the filter.
//
// The filtering logic:
//  1. If there are include patterns and the file doesn't match any, exclude it
//  2. If the file matches any exclude pattern, exclude it
//  3. If the file fails size or age constraints, exclude it
//  4. Otherwise, include the file
func (f *Filter) Match(fi FileInfo) bool {
	if f == nil || len(f.rules) == 0 {
		return true
	}

	hasIncludes := false
	matchesInclude := false
	for _, r := range f.rules {
		if r.ruleType == ruleInclude {
			hasIncludes = true
			if matchPattern(r.pattern, fi.Path) {
				matchesInclude = true
			}
		}
	}

	if hasIncludes && !matchesInclude {
		return false
	}

	for _, r := range f.rules {
		switch r.ruleType {
		case ruleExclude:
			if matchPattern(r.pattern, fi.Path) {
				return false
			}
		case ruleMinSize:
			if fi.Size < r.size {
				return false
			}
		case ruleMaxSize:
			if fi.Size > r.size {
				return false
			}
		case ruleMinAge:
			if time.Since(fi.ModTime) < r.duration {
				return false
			}
		case ruleMaxAge:
			if time.Since(fi.ModTime) > r.duration {
				return false
			}
		}
	}

	return true
}

// MatchPath is a convenience method that matches by path only.
// Size and age rules see a zero FileInfo.
func (f *Filter) MatchPath(path string) bool {
	return f.Match(FileInfo{Path: path})
}

// PathOnly returns a filter holding only the include and exclude rules,
// for keys that cannot be stat'ed.
func (f *Filter) PathOnly() *Filter {
	if f == nil {
		return nil
	}
	out := &Filter{}
	for _, r := range f.rules {
		if r.ruleType == ruleInclude || r.ruleType == ruleExclude {
			out.rules = append(out.rules, r)
		}
	}
	return out
}

// IsEmpty returns true if the filter has no rules.
func (f *Filter) IsEmpty() bool {
	return f == nil || len(f.rules) == 0
}

// Predicate returns an enumeration predicate. Size and age rules stat the
// file; a file that cannot be stat'ed is rejected.
func (f *Filter) Predicate() func(path string) bool {
	if f.IsEmpty() {
		return nil
	}
	if !f.needsStat() {
		return f.MatchPath
	}
	return func(p string) bool {
		info, err := os.Stat(p)
		if err != nil {
			return false
		}
		return f.Match(FileInfo{Path: p, Size: info.Size(), ModTime: info.ModTime()})
	}
}

func (f *Filter) needsStat() bool {
	for _, r := range f.rules {
		if r.ruleType != ruleInclude && r.ruleType != ruleExclude {
			return true
		}
	}
	return false
}

// matchPattern matches a pattern against the slash form of p and against
// its base name.
func matchPattern(pattern, p string) bool {
	p = filepath.ToSlash(p)
	if matched, _ := doublestar.Match(pattern, p); matched {
		return true
	}
	matched, _ := doublestar.Match(pattern, path.Base(p))
	return matched
}

// Common file size constants for convenience.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)
