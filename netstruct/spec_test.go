package netstruct

import "testing"

func TestParseSpecDefaultV4(t *testing.T) {
	sp, err := ParseSpec("", false)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if sp.V6 {
		t.Fatalf("expected the IPv4 default")
	}
	// Default "TS/ABCXH": the total row plus a printed row per /8, /16,
	// /24, /27, and host block, each carrying sub-block summary counts.
	want := []int{0, 8, 16, 24, 27, 32}
	if len(sp.Levels) != len(want) {
		t.Fatalf("got %d levels, want %d", len(sp.Levels), len(want))
	}
	for i, p := range want {
		if sp.Levels[i].Prefix != p || !sp.Levels[i].Printed {
			t.Fatalf("level %d: got %+v, want prefix %d printed", i, sp.Levels[i], p)
		}
	}
	if !sp.Summary {
		t.Fatalf("expected the 'S' token to request sub-block summaries")
	}
}

func TestParseSpecDefaultV6(t *testing.T) {
	sp, err := ParseSpec("", true)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if !sp.V6 {
		t.Fatalf("expected the IPv6 default")
	}
	if len(sp.Levels) != 3 || sp.Levels[0].Prefix != 0 || sp.Levels[1].Prefix != 48 || sp.Levels[2].Prefix != 64 {
		t.Fatalf("got %+v, want the total plus printed levels 48 and 64", sp.Levels)
	}
	for i, lv := range sp.Levels {
		if !lv.Printed {
			t.Fatalf("level %d: got %+v, want printed", i, lv)
		}
	}
	if !sp.Summary {
		t.Fatalf("expected the 'S' token to request sub-block summaries")
	}
}

func TestParseSpecExplicitFamilyPrefix(t *testing.T) {
	sp, err := ParseSpec("v6:T/H", false)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if !sp.V6 {
		t.Fatalf("expected v6: to override the default family")
	}
	if len(sp.Levels) != 2 || sp.Levels[0].Prefix != 0 || sp.Levels[0].Printed != true {
		t.Fatalf("got %+v", sp.Levels)
	}
	if sp.Levels[1].Prefix != 128 || sp.Levels[1].Printed != true {
		t.Fatalf("got %+v, want a printed /128 detail level", sp.Levels)
	}
}

func TestParseSpecNumericPrefixList(t *testing.T) {
	sp, err := ParseSpec("v4:8,16,24", false)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	want := []int{8, 16, 24}
	if len(sp.Levels) != len(want) {
		t.Fatalf("got %d levels, want %d", len(sp.Levels), len(want))
	}
	for i, p := range want {
		if sp.Levels[i].Prefix != p {
			t.Fatalf("level %d: got %d, want %d", i, sp.Levels[i].Prefix, p)
		}
	}
}

func TestParseSpecRejectsOutOfRangePrefix(t *testing.T) {
	if _, err := ParseSpec("v4:33", false); err == nil {
		t.Fatalf("expected an error for an out-of-range IPv4 prefix")
	}
}

func TestParseSpecRejectsUnrecognizedToken(t *testing.T) {
	if _, err := ParseSpec("v4:Z", false); err == nil {
		t.Fatalf("expected an error for an unrecognized token")
	}
}

func TestParseSpecRejectsDanglingSummaryMarker(t *testing.T) {
	if _, err := ParseSpec("v4:S", false); err == nil {
		t.Fatalf("expected an error for a summary marker with no preceding level")
	}
}

func TestParseSpecRejectsSummaryMarkerInDetailSet(t *testing.T) {
	if _, err := ParseSpec("v4:T/S", false); err == nil {
		t.Fatalf("expected an error for a summary marker after the slash")
	}
}
