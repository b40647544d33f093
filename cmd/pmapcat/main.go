// Command pmapcat is a minimal demonstrator that loads prefix map files,
// builds filter predicates and printable fields from them, and optionally
// rolls a set of keys up into a net-structure report. It exists to
// exercise pmap, pmapfilter, and netstruct together the way a real
// flow-analysis tool's option-parsing layer would.
package main

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/flowcore/flowcore/netstruct"
	"github.com/flowcore/flowcore/pmap"
	"github.com/flowcore/flowcore/pmapfilter"
)

// Options is the CLI flag surface: --pmap-file loads a named map,
// --filter builds a predicate against one, --key feeds lookups (and, with
// --net-spec, a rollup report).
type Options struct {
	PmapFiles   []string `long:"pmap-file" description:"name:path of a prefix map file to load" value-name:"NAME:PATH"`
	ColumnWidth int      `long:"pmap-column-width" default:"12" description:"counter column width for net-structure output"`
	Filters     []string `long:"filter" description:"name:labels filter predicate against a loaded map" value-name:"NAME:LABEL,..."`
	Keys        []string `long:"key" description:"IPv4 or IPv6 address key to look up (proto/port keys are not accepted)" value-name:"KEY"`
	NetSpec     string   `long:"net-spec" description:"net-structure aggregator spec string"`
	Verbose     []bool   `short:"v" long:"verbose" description:"increase log verbosity"`
}

var logger = logrus.New()

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		logger.WithError(err).Fatal("pmapcat: option parsing failed")
	}
	if len(opts.Verbose) > 0 {
		logger.SetLevel(logrus.DebugLevel)
	}
	pmap.SetLogger(logger)

	if err := run(opts); err != nil {
		logger.WithError(err).Fatal("pmapcat: failed")
	}
}

func run(opts Options) error {
	registry := pmapfilter.NewRegistry()
	maps := map[string]*pmap.Map{}

	for _, spec := range opts.PmapFiles {
		name, path, err := splitPair(spec)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		m, err := pmap.Load(f)
		f.Close()
		if err != nil {
			return err
		}
		m.SetName(name)
		if _, _, _, err := registry.OptionNames(name, m.ContentKind()); err != nil {
			return err
		}
		maps[name] = m
		logger.WithField("name", name).WithField("kind", m.ContentKind()).Info("pmapcat: loaded map")
	}

	predicates := map[string]*pmapfilter.Predicate{}
	for _, spec := range opts.Filters {
		name, labels, err := splitPair(spec)
		if err != nil {
			return err
		}
		m, ok := maps[name]
		if !ok {
			return fmt.Errorf("pmapcat: filter references unknown map %q", name)
		}
		p, err := pmapfilter.NewPredicate(m, labels)
		if err != nil {
			return err
		}
		predicates[name] = p
	}

	keys := make([]netip.Addr, 0, len(opts.Keys))
	for _, k := range opts.Keys {
		addr, err := netip.ParseAddr(k)
		if err != nil {
			return fmt.Errorf("pmapcat: invalid key %q: %w", k, err)
		}
		keys = append(keys, addr)
	}

	for name, m := range maps {
		field := pmapfilter.NewFieldFunc(m)
		for _, addr := range keys {
			key, _, err := pmap.KeyFromAddr(addr)
			if err != nil {
				return err
			}
			label := field(key)
			accept := "n/a"
			if p, ok := predicates[name]; ok {
				accept = strconv.FormatBool(p.Accepts(key))
			}
			fmt.Printf("%s\t%s\t%s\taccept=%s\n", name, addr, label, accept)
		}
	}

	if opts.NetSpec != "" && len(keys) > 0 {
		return printRollup(opts, keys)
	}
	return nil
}

func printRollup(opts Options, keys []netip.Addr) error {
	agg := netstruct.New(true)
	v6 := keys[0].Is6() && !keys[0].Is4In6()
	if err := agg.ParseSpec(opts.NetSpec, v6); err != nil {
		return err
	}
	agg.SetOutput(os.Stdout)
	agg.SetCountWidth(opts.ColumnWidth)

	sorted := append([]netip.Addr(nil), keys...)
	sortAddrs(sorted)

	for _, addr := range sorted {
		if err := agg.AddCIDR(addr, addrBits(addr)); err != nil {
			return err
		}
	}
	return agg.Finalize()
}

func addrBits(addr netip.Addr) int {
	if addr.Is4() {
		return 32
	}
	return 128
}

func sortAddrs(a []netip.Addr) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j].Less(a[j-1]); j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}

func splitPair(s string) (left, right string, err error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return "", "", fmt.Errorf("pmapcat: expected NAME:VALUE, got %q", s)
	}
	return s[:idx], s[idx+1:], nil
}
