package pmap

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
)

var log logrus.FieldLogger = logrus.New()

// SetLogger overrides the logger used for best-effort load-time
// diagnostics; pmap never logs on the lookup/iterate hot path.
func SetLogger(l logrus.FieldLogger) { log = l }

// checkDictCoverage walks every code the trie actually resolves to and
// flags, via a log line rather than an error, any dictionary entry that
// no leaf ever references. An unreferenced binding is not corruption —
// dictionaries may legitimately carry labels for codes a particular map
// instance never assigns — but it is worth surfacing for diagnosis.
func (m *Map) checkDictCoverage() {
	if !m.hasDict || m.dict.Len() == 0 {
		return
	}
	seen := bitset.New(uint(m.dict.Len()))
	it := m.Iterate()
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		if r.Code == NotFound || r.Code == MaxValue || r.Code >= uint32(m.dict.Len()) {
			continue
		}
		seen.Set(uint(r.Code))
	}
	for code := uint(0); code < uint(m.dict.Len()); code++ {
		if !seen.Test(code) {
			log.WithField("code", code).Debug("pmap: dictionary entry never referenced by the trie")
		}
	}
}
