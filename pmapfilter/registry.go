package pmapfilter

import (
	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/pmap"
)

// Registry enforces the naming rules for maps loaded in one invocation:
// a named map derives pmap-{src,dst,any}-<name>; an unnamed map (at most
// one per invocation) falls back to the legacy pmap-{s,d,any-}address or
// pmap-{s,d,any-}port-proto aliases depending on its key kind. Two loaded
// maps may not share a name or a derived option name.
type Registry struct {
	names   map[string]bool
	unnamed bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{names: map[string]bool{}}
}

// OptionNames derives the (src, dst, any) option/field names for a map
// with the given name and kind, reserving them against reuse. name == ""
// selects the legacy unnamed-map aliases.
func (r *Registry) OptionNames(name string, kind pmap.Kind) (src, dst, any string, err error) {
	if name != "" {
		if r.names[name] {
			return "", "", "", flowerr.Newf(flowerr.Duplicate, "map name %q already registered", name)
		}
		r.names[name] = true
		return "pmap-src-" + name, "pmap-dst-" + name, "pmap-any-" + name, nil
	}

	if r.unnamed {
		return "", "", "", flowerr.New(flowerr.Duplicate, "only one unnamed map is allowed per invocation")
	}
	r.unnamed = true

	legacy := "address"
	if kind == pmap.KindProtoPort {
		legacy = "port-proto"
	}
	return "pmap-s" + legacy, "pmap-d" + legacy, "pmap-any-" + legacy, nil
}
