package netstruct

import (
	"fmt"
	"io"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/internal/u128"
)

// IPFormat selects how an address is rendered in a report row.
type IPFormat int

const (
	FormatCanonical IPFormat = iota
	FormatZeroPadded
	FormatDecimal
	FormatHex
)

// levelState is the running accumulator for one configured Level: the
// counter sum observed since its last reset, the network it currently
// covers, and the distinct-sub-block tally for every finer configured
// level nested under it.
type levelState struct {
	network   netip.Addr
	sum       u128.U128
	subCounts map[int]uint64
	lastSub   map[int]netip.Addr
}

func newLevelState() *levelState {
	return &levelState{subCounts: map[int]uint64{}, lastSub: map[int]netip.Addr{}}
}

// Aggregator streams (address, counter) pairs in ascending order and
// prints a hierarchical CIDR rollup report.
type Aggregator struct {
	hasCounter bool
	spec       *Spec
	states     []*levelState

	w                io.Writer
	delimiter        string
	noColumns        bool
	noFinalDelimiter bool
	ipFormat         IPFormat
	unmapV4          bool
	countWidth       int

	started  bool
	bitWidth int

	// emitOrder holds level indices sorted finest-prefix-first, so a closing
	// block's host rows print before the blocks that enclose them and the
	// grand total prints last.
	emitOrder []int
}

// New creates an Aggregator. hasCounterColumn selects whether rows carry
// a counter column (false for a plain CIDR-block listing via AddCIDR).
func New(hasCounterColumn bool) *Aggregator {
	return &Aggregator{
		hasCounter: hasCounterColumn,
		delimiter:  "|",
		ipFormat:   FormatCanonical,
		countWidth: 12,
		w:          io.Discard,
	}
}

// ParseSpec parses s per the "[v4:|v6:]<set1>[/<set2>]" grammar and
// configures the aggregator's levels. v6Default selects the family when s
// has no explicit v4:/v6: prefix.
func (a *Aggregator) ParseSpec(s string, v6Default bool) error {
	sp, err := ParseSpec(s, v6Default)
	if err != nil {
		return err
	}
	a.spec = sp
	a.bitWidth = 32
	if sp.V6 {
		a.bitWidth = 128
	}
	a.states = make([]*levelState, len(sp.Levels))
	for i := range a.states {
		a.states[i] = newLevelState()
	}
	a.emitOrder = make([]int, len(sp.Levels))
	for i := range a.emitOrder {
		a.emitOrder[i] = i
	}
	sort.SliceStable(a.emitOrder, func(x, y int) bool {
		return sp.Levels[a.emitOrder[x]].Prefix > sp.Levels[a.emitOrder[y]].Prefix
	})
	a.started = false
	return nil
}

// SetOutput sets the writer report rows are printed to.
func (a *Aggregator) SetOutput(w io.Writer) { a.w = w }

// SetIPFormat sets how addresses are rendered. unmap requests that an
// IPv4-mapped IPv6 address print in its unmapped (dotted) form.
func (a *Aggregator) SetIPFormat(f IPFormat, unmap bool) {
	a.ipFormat = f
	a.unmapV4 = unmap
}

// SetDelimiter sets the column delimiter (default "|").
func (a *Aggregator) SetDelimiter(d string) { a.delimiter = d }

// SetCountWidth sets the counter column's pad width when columns are
// aligned.
func (a *Aggregator) SetCountWidth(n int) { a.countWidth = n }

// SetNoColumns disables fixed-width column alignment.
func (a *Aggregator) SetNoColumns(b bool) { a.noColumns = b }

// SetNoFinalDelimiter suppresses the delimiter after a row's last column.
func (a *Aggregator) SetNoFinalDelimiter(b bool) { a.noFinalDelimiter = b }

func (a *Aggregator) networkAt(addr netip.Addr, prefix int) netip.Addr {
	p, err := addr.Prefix(prefix)
	if err != nil {
		return addr
	}
	return p.Masked().Addr()
}

// AddKeyCounter feeds one (address, counter) pair. addr must be strictly
// greater than the address of the previous call; violating that is a
// programming error on the caller's part.
func (a *Aggregator) AddKeyCounter(addr netip.Addr, counter u128.U128) error {
	if a.spec == nil {
		return flowerr.New(flowerr.CallOrder, "ParseSpec must be called before AddKeyCounter")
	}

	newNet := make([]netip.Addr, len(a.spec.Levels))
	for i, lv := range a.spec.Levels {
		newNet[i] = a.networkAt(addr, lv.Prefix)
	}

	if !a.started {
		a.started = true
		for i := range a.spec.Levels {
			a.states[i].network = newNet[i]
		}
	} else {
		// The flush boundary is the coarsest configured level whose network
		// changed; every level at or finer than it closes here.
		boundary := -1
		for i, lv := range a.spec.Levels {
			if newNet[i] != a.states[i].network && (boundary < 0 || lv.Prefix < boundary) {
				boundary = lv.Prefix
			}
		}
		if boundary >= 0 {
			for _, i := range a.emitOrder {
				lv := a.spec.Levels[i]
				if lv.Prefix < boundary {
					continue
				}
				if lv.Printed {
					if err := a.emitRow(i); err != nil {
						return err
					}
				}
				a.states[i] = newLevelState()
				a.states[i].network = newNet[i]
			}
		}
	}

	for i, lv := range a.spec.Levels {
		st := a.states[i]
		for j, nested := range a.spec.Levels {
			if nested.Prefix <= lv.Prefix {
				continue
			}
			if prev, ok := st.lastSub[nested.Prefix]; !ok || prev != newNet[j] {
				st.subCounts[nested.Prefix]++
				st.lastSub[nested.Prefix] = newNet[j]
			}
		}
		st.sum = u128.Add(st.sum, counter)
	}

	return nil
}

// AddCIDR feeds a whole CIDR block as if every address within it carried
// a counter of 1, i.e. the block's counter is its host count 2^(w-prefix).
func (a *Aggregator) AddCIDR(addr netip.Addr, prefix int) error {
	count := u128.Shl(u128.One, uint(a.bitWidth-prefix))
	return a.AddKeyCounter(addr, count)
}

// Finalize flushes every printed level's accumulated row, finest prefix
// first, ending with the grand total if the spec configures a prefix-0
// level.
func (a *Aggregator) Finalize() error {
	if a.spec == nil || !a.started {
		return nil
	}
	for _, i := range a.emitOrder {
		if a.spec.Levels[i].Printed {
			if err := a.emitRow(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Aggregator) emitRow(idx int) error {
	lv := a.spec.Levels[idx]
	st := a.states[idx]

	addrText := formatAddr(st.network, a.ipFormat, a.unmapV4)
	switch {
	case lv.Prefix == 0:
		addrText = "TOTAL"
	case lv.Prefix != a.bitWidth:
		addrText = fmt.Sprintf("%s/%d", addrText, lv.Prefix)
	}

	cols := []string{indentFor(lv.Prefix) + addrText}
	if a.hasCounter {
		cols = append(cols, a.formatCount(st.sum))
	}

	if a.spec.Summary {
		if summary := a.formatSummary(idx); summary != "" {
			cols = append(cols, summary)
		}
	}

	line := a.joinColumns(cols)
	_, err := fmt.Fprintln(a.w, line)
	if err != nil {
		return flowerr.Wrap(err, flowerr.IO, "write report row")
	}
	return nil
}

// formatSummary renders the count of distinct sub-blocks seen, for every
// configured level finer than the row's own.
func (a *Aggregator) formatSummary(idx int) string {
	st := a.states[idx]
	var parts []string
	for _, lv := range a.spec.Levels {
		if lv.Prefix <= a.spec.Levels[idx].Prefix {
			continue
		}
		parts = append(parts, fmt.Sprintf("/%d=%d", lv.Prefix, st.subCounts[lv.Prefix]))
	}
	return strings.Join(parts, ",")
}

func (a *Aggregator) formatCount(v u128.U128) string {
	s := v.String()
	if a.noColumns || a.countWidth <= len(s) {
		return s
	}
	return strings.Repeat(" ", a.countWidth-len(s)) + s
}

func (a *Aggregator) joinColumns(cols []string) string {
	sep := a.delimiter
	if a.noColumns {
		sep = " "
	}
	out := strings.Join(cols, sep)
	if !a.noFinalDelimiter {
		out += sep
	}
	return out
}

func indentFor(prefix int) string {
	switch {
	case prefix == 0:
		return ""
	case prefix < 16:
		return "  "
	case prefix < 28:
		return "    "
	default:
		return "      "
	}
}

func formatAddr(addr netip.Addr, format IPFormat, unmap bool) string {
	if unmap && addr.Is4In6() {
		addr = addr.Unmap()
	}
	switch format {
	case FormatDecimal:
		b := addr.As16()
		if addr.Is4() {
			b4 := addr.As4()
			return strconv.FormatUint(uint64(b4[0])<<24|uint64(b4[1])<<16|uint64(b4[2])<<8|uint64(b4[3]), 10)
		}
		return u128.FromBytes(b[:]).String()
	case FormatHex:
		b := addr.AsSlice()
		var sb strings.Builder
		for _, c := range b {
			fmt.Fprintf(&sb, "%02x", c)
		}
		return sb.String()
	case FormatZeroPadded:
		if addr.Is4() {
			b := addr.As4()
			return fmt.Sprintf("%03d.%03d.%03d.%03d", b[0], b[1], b[2], b[3])
		}
		return addr.StringExpanded()
	default:
		return addr.String()
	}
}
