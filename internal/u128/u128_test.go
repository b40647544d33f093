package u128

import "testing"

func TestFromBytesRoundTrip(t *testing.T) {
	in := [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 255}
	u := FromBytes(in[:])
	out := u.Bytes()
	if out != in {
		t.Fatalf("round trip mismatch: got %v, want %v", out, in)
	}
}

func TestAddCarry(t *testing.T) {
	a := U128{Hi: 0, Lo: ^uint64(0)}
	got := Add(a, One)
	want := U128{Hi: 1, Lo: 0}
	if got != want {
		t.Fatalf("Add carry: got %+v, want %+v", got, want)
	}
}

func TestShlShr(t *testing.T) {
	cases := []uint{0, 1, 63, 64, 65, 127, 128}
	for _, n := range cases {
		got := Shr(Shl(One, n), n)
		if n < 128 {
			if got != One {
				t.Fatalf("Shr(Shl(1,%d),%d) = %+v, want One", n, n, got)
			}
		}
	}
}

func TestPowerOfTwoAndMaskBelow(t *testing.T) {
	if PowerOfTwo(0) != One {
		t.Fatalf("PowerOfTwo(0) should be 1")
	}
	if PowerOfTwo(128) != (U128{}) {
		t.Fatalf("PowerOfTwo(128) should wrap to zero")
	}
	m := MaskBelow(8)
	if m != (U128{Lo: 0xFF}) {
		t.Fatalf("MaskBelow(8) = %+v, want 0xFF", m)
	}
	if MaskBelow(0) != (U128{}) {
		t.Fatalf("MaskBelow(0) should be zero")
	}
}

func TestCmp(t *testing.T) {
	a := U128{Hi: 1, Lo: 0}
	b := U128{Hi: 0, Lo: ^uint64(0)}
	if Cmp(a, b) <= 0 {
		t.Fatalf("expected a > b")
	}
	if Cmp(b, a) >= 0 {
		t.Fatalf("expected b < a")
	}
	if Cmp(a, a) != 0 {
		t.Fatalf("expected a == a")
	}
}

func TestBit(t *testing.T) {
	v := U128{Hi: 1 << 3, Lo: 1 << 5}
	if Bit(v, 5) != 1 {
		t.Fatalf("bit 5 should be set")
	}
	if Bit(v, 6) != 0 {
		t.Fatalf("bit 6 should be clear")
	}
	if Bit(v, 67) != 1 {
		t.Fatalf("bit 67 should be set")
	}
}

func TestSubOneBorrow(t *testing.T) {
	a := U128{Hi: 1, Lo: 0}
	got := SubOne(a)
	want := U128{Hi: 0, Lo: ^uint64(0)}
	if got != want {
		t.Fatalf("SubOne borrow: got %+v, want %+v", got, want)
	}
}

func TestStringSmall(t *testing.T) {
	cases := map[U128]string{
		{}:          "0",
		{Lo: 1}:     "1",
		{Lo: 12345}: "12345",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Fatalf("String(%+v) = %q, want %q", v, got, want)
		}
	}
}

func TestStringLarge(t *testing.T) {
	// 2^64 == 18446744073709551616
	v := U128{Hi: 1, Lo: 0}
	want := "18446744073709551616"
	if got := v.String(); got != want {
		t.Fatalf("String(2^64) = %q, want %q", got, want)
	}
}

func TestStringMax(t *testing.T) {
	v := U128{Hi: ^uint64(0), Lo: ^uint64(0)}
	want := "340282366920938463463374607431768211455"
	if got := v.String(); got != want {
		t.Fatalf("String(max) = %q, want %q", got, want)
	}
}

func TestAddUint64(t *testing.T) {
	got := AddUint64(U128{Lo: 10}, 5)
	if got != (U128{Lo: 15}) {
		t.Fatalf("AddUint64 = %+v, want Lo=15", got)
	}
}

func TestAndOrAndNot(t *testing.T) {
	a := U128{Hi: 0xF0, Lo: 0xF0}
	b := U128{Hi: 0x0F, Lo: 0x0F}
	if And(a, b) != (U128{}) {
		t.Fatalf("And of disjoint masks should be zero")
	}
	if Or(a, b) != (U128{Hi: 0xFF, Lo: 0xFF}) {
		t.Fatalf("Or of disjoint masks should be the union")
	}
	if AndNot(a, a) != (U128{}) {
		t.Fatalf("AndNot(a,a) should be zero")
	}
}
