// Package pmap implements the prefix map: a compressed binary-trie lookup
// structure keyed by IPv4 address, IPv6 address, or protocol/port pair,
// with a companion dictionary mapping numeric leaf codes to human labels.
package pmap

import (
	"net/netip"

	"github.com/flowcore/flowcore/flowerr"
	"github.com/flowcore/flowcore/internal/u128"
)

// Kind identifies which key space a Map indexes, fixed at creation.
type Kind byte

const (
	// KindIPv4 indexes 32-bit IPv4 addresses.
	KindIPv4 Kind = iota
	// KindIPv6 indexes 128-bit IPv6 addresses.
	KindIPv6
	// KindProtoPort indexes (protocol<<16)|port pairs, 24 significant bits.
	KindProtoPort
)

func (k Kind) String() string {
	switch k {
	case KindIPv4:
		return "ipv4"
	case KindIPv6:
		return "ipv6"
	case KindProtoPort:
		return "proto-port"
	default:
		return "unknown"
	}
}

// Width returns the number of significant key bits for this kind: 32 for
// IPv4 and proto/port, 128 for IPv6. Proto/port keys only populate the
// low 24 of those 32 bits; see ProtoPortWidth.
func (k Kind) Width() int {
	if k == KindIPv6 {
		return 128
	}
	return 32
}

// ProtoPortWidth is the number of significant bits in a proto/port key:
// 8 bits of protocol plus 16 bits of port.
const ProtoPortWidth = 24

// walkWidth returns the number of bits the trie walk actually descends:
// 128 for IPv6, 32 for IPv4, 24 for proto/port.
func (k Kind) walkWidth() int {
	if k == KindProtoPort {
		return ProtoPortWidth
	}
	return k.Width()
}

// KeyFromAddr converts an IPv4 or IPv6 netip.Addr into its canonical
// integer key form.
func KeyFromAddr(addr netip.Addr) (u128.U128, Kind, error) {
	switch {
	case addr.Is4():
		b := addr.As4()
		return u128.U128{Lo: uint64(b[0])<<24 | uint64(b[1])<<16 | uint64(b[2])<<8 | uint64(b[3])}, KindIPv4, nil
	case addr.Is6():
		b := addr.As16()
		return u128.FromBytes(b[:]), KindIPv6, nil
	default:
		return u128.U128{}, 0, flowerr.New(flowerr.Args, "invalid address")
	}
}

// KeyFromProtoPort encodes a protocol/port pair as (protocol<<16)|port.
func KeyFromProtoPort(protocol uint8, port uint16) u128.U128 {
	return u128.U128{Lo: uint64(protocol)<<16 | uint64(port)}
}
