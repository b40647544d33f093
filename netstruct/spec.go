// Package netstruct implements the hierarchical CIDR rollup report: given
// an ascending stream of (address, counter) pairs, it prints per-host,
// per-CIDR-level, and grand-total rows according to a small spec-string
// grammar.
package netstruct

import (
	"strconv"

	"github.com/flowcore/flowcore/flowerr"
)

// Level is one configured rollup level: a CIDR prefix length, with the
// key width meaning per-host rows and prefix 0 the whole-space total.
type Level struct {
	Prefix  int
	Printed bool // true: gets its own row; false: counted toward summaries only
}

// Spec is a parsed specification string: an ordered list of levels plus
// whether an 'S' token requested per-row sub-block summary counts.
type Spec struct {
	V6      bool
	Levels  []Level
	Summary bool
}

// v4Tokens and v6Tokens map single-letter spec tokens to CIDR prefix
// lengths. 'S' is handled separately as a summary marker, not a level.
var v4Tokens = map[byte]int{
	'T': 0,
	'A': 8,
	'B': 16,
	'C': 24,
	'X': 27,
	'H': 32,
}

var v6Tokens = map[byte]int{
	'T': 0,
	'H': 128,
}

const defaultV4Spec = "TS/ABCXH"
const defaultV6Spec = "TS/48,64"

// ParseSpec parses the "[v4:|v6:]<set1>[/<set2>]" grammar. The items
// after the slash are the printed detail levels, one row per block. In
// the first set, 'T' requests the grand-total row, 'S' requests per-row
// sub-block summary counts, and any other item is a level whose blocks
// are counted toward those summaries without rows of its own. Without a
// slash the single set lists the printed levels directly. An empty string
// selects the IPv4 or IPv6 default according to v6Default.
func ParseSpec(s string, v6Default bool) (*Spec, error) {
	v6 := v6Default
	switch {
	case len(s) >= 3 && s[:3] == "v4:":
		v6, s = false, s[3:]
	case len(s) >= 3 && s[:3] == "v6:":
		v6, s = true, s[3:]
	case s == "":
		if v6Default {
			s = defaultV6Spec
		} else {
			s = defaultV4Spec
		}
	}

	tokens := map[byte]int(v4Tokens)
	maxPrefix := 32
	if v6 {
		tokens = v6Tokens
		maxPrefix = 128
	}

	firstPart, detailPart, hasSlash := cutSlash(s)

	sp := &Spec{V6: v6}
	if err := parseSet(firstPart, tokens, maxPrefix, func(prefix int, isSummary bool) error {
		if isSummary {
			sp.Summary = true
			return nil
		}
		// Without a slash the whole spec is the detail set; with one, a
		// non-T level here is counted toward summaries but gets no rows.
		printed := !hasSlash || prefix == 0
		sp.Levels = append(sp.Levels, Level{Prefix: prefix, Printed: printed})
		return nil
	}); err != nil {
		return nil, err
	}

	if hasSlash {
		if err := parseSet(detailPart, tokens, maxPrefix, func(prefix int, isSummary bool) error {
			if isSummary {
				return flowerr.New(flowerr.Args, "'S' token is only valid before the slash")
			}
			sp.Levels = append(sp.Levels, Level{Prefix: prefix, Printed: true})
			return nil
		}); err != nil {
			return nil, err
		}
	}

	if len(sp.Levels) == 0 {
		return nil, flowerr.New(flowerr.Args, "specification names no levels")
	}

	return sp, nil
}

func cutSlash(s string) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

// parseSet scans a comma-separated-and/or-concatenated token list: named
// single-letter tokens never need a separating comma (they are always
// exactly one character), while numeric prefix lengths are digit runs
// that commas unambiguously delimit.
func parseSet(s string, tokens map[byte]int, maxPrefix int, emit func(prefix int, isSummary bool) error) error {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ',':
			i++
		case c == 'S':
			if err := emit(0, true); err != nil {
				return err
			}
			i++
		case c >= '0' && c <= '9':
			j := i
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			n, err := strconv.Atoi(s[i:j])
			if err != nil {
				return flowerr.Newf(flowerr.Args, "invalid prefix length %q", s[i:j])
			}
			if n < 0 || n > maxPrefix {
				return flowerr.Newf(flowerr.Args, "prefix length %d out of range [0,%d]", n, maxPrefix)
			}
			if err := emit(n, false); err != nil {
				return err
			}
			i = j
		default:
			prefix, ok := tokens[c]
			if !ok {
				return flowerr.Newf(flowerr.Args, "unrecognized spec token %q", string(c))
			}
			if err := emit(prefix, false); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}
