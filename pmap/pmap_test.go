package pmap

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowcore/flowcore/internal/u128"
)

func TestCreateRejectsUnknownKind(t *testing.T) {
	_, err := Create(Kind(200), false)
	assert.Error(t, err, "expected an error for an unknown kind")
}

func TestCreateProtoPortForcesDictionary(t *testing.T) {
	m, err := Create(KindProtoPort, false)
	require.NoError(t, err)
	assert.True(t, m.hasDict, "expected a proto/port map to always carry a dictionary")
}

func TestSetDefaultCodeOnlyOnce(t *testing.T) {
	m, err := Create(KindIPv4, false)
	require.NoError(t, err)
	require.NoError(t, m.SetDefaultCode(9))
	assert.Error(t, m.SetDefaultCode(1), "expected a second SetDefaultCode call to fail")
}

func TestFindLabelFallsBackToDecimal(t *testing.T) {
	m, err := Create(KindIPv4, true)
	require.NoError(t, err)
	require.NoError(t, m.AddRange(u128.U128{}, u128.MaskBelow(32), 42))

	addr := netip.MustParseAddr("10.0.0.1")
	key, _, err := KeyFromAddr(addr)
	require.NoError(t, err)
	assert.Equal(t, "42", m.FindLabel(key))
}

func TestFindLabelUsesDictionaryWord(t *testing.T) {
	m, err := Create(KindIPv4, true)
	require.NoError(t, err)
	require.NoError(t, m.AddRange(u128.U128{}, u128.MaskBelow(32), 1))
	_, err = m.DictInsert(1, "example-net")
	require.NoError(t, err)

	addr := netip.MustParseAddr("10.0.0.1")
	key, _, err := KeyFromAddr(addr)
	require.NoError(t, err)
	assert.Equal(t, "example-net", m.FindLabel(key))
}

func TestFindLabelUnknownForSentinels(t *testing.T) {
	m, err := Create(KindIPv4, false)
	require.NoError(t, err)

	addr := netip.MustParseAddr("192.168.1.1")
	key, _, err := KeyFromAddr(addr)
	require.NoError(t, err)
	assert.Equal(t, "UNKNOWN", m.FindLabel(key), "unpopulated map should report UNKNOWN")
}

func TestDictInsertRejectsConflictingWord(t *testing.T) {
	m, err := Create(KindIPv4, true)
	require.NoError(t, err)
	_, err = m.DictInsert(1, "alpha")
	require.NoError(t, err)

	_, err = m.DictInsert(2, "alpha")
	assert.Error(t, err, "expected inserting a bound word under a different code to fail")

	code, err := m.DictInsert(1, "alpha")
	assert.NoError(t, err, "re-inserting the same pair should be a no-op")
	assert.Equal(t, uint32(1), code)
}

func TestDictInsertRejectsCodeAboveMax(t *testing.T) {
	m, err := Create(KindIPv4, true)
	require.NoError(t, err)
	_, err = m.DictInsert(MaxValue+1, "x")
	assert.Error(t, err, "expected an error for a code beyond MaxValue")
}

func TestKeyFromAddrIPv4AndIPv6(t *testing.T) {
	v4, kind, err := KeyFromAddr(netip.MustParseAddr("0.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, KindIPv4, kind)
	assert.Equal(t, u128.U128{Lo: 1}, v4)

	v6, kind, err := KeyFromAddr(netip.MustParseAddr("::1"))
	require.NoError(t, err)
	assert.Equal(t, KindIPv6, kind)
	assert.Equal(t, u128.U128{Lo: 1}, v6)
}

func TestKeyFromProtoPort(t *testing.T) {
	got := KeyFromProtoPort(6, 443)
	want := u128.U128{Lo: uint64(6)<<16 | 443}
	assert.Equal(t, want, got)
}

func TestSetDefaultCodeRejectedAfterAddRange(t *testing.T) {
	m, err := Create(KindIPv4, false)
	require.NoError(t, err)
	require.NoError(t, m.AddRange(key32(10), key32(20), 1))
	err = m.SetDefaultCode(9)
	assert.Error(t, err, "expected SetDefaultCode to fail once ranges were inserted")
}

func TestIPv4MapScenario(t *testing.T) {
	m, err := Create(KindIPv4, true)
	require.NoError(t, err)

	lowA, _, err := KeyFromAddr(netip.MustParseAddr("10.0.0.0"))
	require.NoError(t, err)
	highA, _, err := KeyFromAddr(netip.MustParseAddr("10.0.0.255"))
	require.NoError(t, err)
	lowB, _, err := KeyFromAddr(netip.MustParseAddr("10.0.1.0"))
	require.NoError(t, err)
	highB, _, err := KeyFromAddr(netip.MustParseAddr("10.0.1.255"))
	require.NoError(t, err)

	require.NoError(t, m.AddRange(lowA, highA, 1))
	require.NoError(t, m.AddRange(lowB, highB, 2))
	_, err = m.DictInsert(1, "A")
	require.NoError(t, err)
	_, err = m.DictInsert(2, "B")
	require.NoError(t, err)

	probe := func(s string) (uint32, string) {
		key, _, err := KeyFromAddr(netip.MustParseAddr(s))
		require.NoError(t, err)
		return m.FindCode(key), m.FindLabel(key)
	}

	code, label := probe("10.0.0.5")
	assert.Equal(t, uint32(1), code)
	assert.Equal(t, "A", label)

	code, label = probe("10.0.1.255")
	assert.Equal(t, uint32(2), code)
	assert.Equal(t, "B", label)

	code, _ = probe("10.0.2.0")
	assert.Equal(t, NotFound, code)

	// Iteration yields exactly the two inserted ranges, each surrounded by
	// NotFound filler.
	var assigned []Range
	it := m.Iterate()
	prevEnd := u128.U128{}
	first := true
	for {
		r, ok := it.Next()
		if !ok {
			break
		}
		if !first {
			assert.Equal(t, u128.AddUint64(prevEnd, 1), r.Start, "ranges must tile the key space without gaps")
		}
		first = false
		prevEnd = r.End
		if r.Code != NotFound {
			assigned = append(assigned, r)
		}
	}
	require.Len(t, assigned, 2)
	assert.Equal(t, lowA, assigned[0].Start)
	assert.Equal(t, highA, assigned[0].End)
	assert.Equal(t, uint32(1), assigned[0].Code)
	assert.Equal(t, lowB, assigned[1].Start)
	assert.Equal(t, highB, assigned[1].End)
	assert.Equal(t, uint32(2), assigned[1].Code)
}

func TestProtoPortMapScenario(t *testing.T) {
	m, err := Create(KindProtoPort, true)
	require.NoError(t, err)

	httpKey := KeyFromProtoPort(6, 80)
	httpsKey := KeyFromProtoPort(6, 443)
	require.NoError(t, m.AddRange(httpKey, httpKey, 1))
	require.NoError(t, m.AddRange(httpsKey, httpsKey, 2))
	_, err = m.DictInsert(1, "http")
	require.NoError(t, err)
	_, err = m.DictInsert(2, "https")
	require.NoError(t, err)

	assert.Equal(t, "http", m.FindLabel(KeyFromProtoPort(6, 80)))
	assert.Equal(t, "https", m.FindLabel(KeyFromProtoPort(6, 443)))
	assert.Equal(t, NotFound, m.FindCode(KeyFromProtoPort(6, 8080)))
	assert.Equal(t, NotFound, m.FindCode(KeyFromProtoPort(17, 80)), "udp/80 must not match tcp/80")
}

func TestFindRangeCoherence(t *testing.T) {
	m, err := Create(KindIPv4, false)
	require.NoError(t, err)
	require.NoError(t, m.AddRange(key32(0x0A000000), key32(0x0A0000FF), 1))

	start, end, code := m.FindRange(key32(0x0A000042))
	assert.Equal(t, uint32(1), code)
	assert.True(t, u128.Cmp(start, key32(0x0A000042)) <= 0)
	assert.True(t, u128.Cmp(end, key32(0x0A000042)) >= 0)
	// The keys immediately outside the reported range carry a different code.
	assert.NotEqual(t, code, m.FindCode(u128.SubOne(start)))
	assert.NotEqual(t, code, m.FindCode(u128.AddUint64(end, 1)))
}
