// Copyright 2024 The openpmd-go Authors.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package series

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// patternToken matches the optional "%T" / "%0NT" iteration placeholder in
// a series path.
var patternToken = regexp.MustCompile(`%(0(\d+))?T`)

// filenamePattern is the parsed form of a constructor path such as
// "dir/prefix%06Tpostfix.ext". Its presence selects file-per-iteration
// encoding; its absence selects group- or variable-per-iteration.
type filenamePattern struct {
	Directory string
	Prefix    string
	Postfix   string
	Extension string
	// Padding is the zero-padding width requested by "%0NT"; zero means
	// unspecified (any width is accepted when matching existing files).
	Padding   int
	FileBased bool
}

// parseFilenamePattern splits path into its pattern components. The
// extension is taken as everything after the first '.' in the final path
// segment, so multi-part extensions like ".opmds.sst" survive intact.
func parseFilenamePattern(path string) (filenamePattern, error) {
	dir, base := filepath.Split(path)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))

	ext := ""
	if idx := strings.IndexByte(base, '.'); idx >= 0 {
		ext = base[idx+1:]
		base = base[:idx]
	}

	loc := patternToken.FindStringSubmatchIndex(base)
	if loc == nil {
		return filenamePattern{Directory: dir, Prefix: base, Extension: ext}, nil
	}

	prefix := base[:loc[0]]
	postfix := base[loc[1]:]
	padding := 0
	if loc[4] != -1 {
		n, err := strconv.Atoi(base[loc[4]:loc[5]])
		if err != nil {
			return filenamePattern{}, fmt.Errorf("series: bad padding width in %q", path)
		}
		padding = n
	}
	return filenamePattern{
		Directory: dir,
		Prefix:    prefix,
		Postfix:   postfix,
		Extension: ext,
		Padding:   padding,
		FileBased: true,
	}, nil
}

// basenameFor renders the basename (without extension) of the file backing
// iteration index under a file-based pattern; for group/variable-based
// patterns every iteration shares the one series basename.
func (p filenamePattern) basenameFor(index uint64) string {
	if !p.FileBased {
		return p.Prefix
	}
	digits := strconv.FormatUint(index, 10)
	if p.Padding > 0 && len(digits) < p.Padding {
		digits = strings.Repeat("0", p.Padding-len(digits)) + digits
	}
	return p.Prefix + digits + p.Postfix
}

// matcher compiles the regex recognizing basenames (without extension)
// belonging to this pattern. Grounded on fileio.DetermineType's
// suffix-lookup idiom, generalized from a flat map lookup to a regex built
// per (prefix, padding, postfix) tuple, since the discriminating feature
// here is a variable-width numeric infix rather than a fixed suffix.
func (p filenamePattern) matcher() *regexp.Regexp {
	digits := `(\d+)`
	if p.Padding > 0 {
		digits = fmt.Sprintf(`(\d{%d,})`, p.Padding)
	}
	pattern := "^" + regexp.QuoteMeta(p.Prefix) + digits + regexp.QuoteMeta(p.Postfix) + "$"
	return regexp.MustCompile(pattern)
}

// match reports whether basename (without extension) belongs to p, and if
// so the iteration index it encodes and the zero-padding width actually
// observed in the matched digit run.
func (p filenamePattern) match(basename string) (index uint64, observedPadding int, ok bool) {
	m := p.matcher().FindStringSubmatch(basename)
	if m == nil {
		return 0, 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return n, len(m[1]), true
}

// checkConsistentPadding verifies every observed padding width in widths
// agrees (ignoring entries of 0, which means "unconstrained"); mixed
// padding is fatal in write modes but tolerated in READ_ONLY, so the
// caller decides whether to treat a mismatch as an error.
func checkConsistentPadding(widths []int) (int, bool) {
	found := 0
	for _, w := range widths {
		if w == 0 {
			continue
		}
		if found == 0 {
			found = w
			continue
		}
		if found != w {
			return 0, false
		}
	}
	return found, true
}
