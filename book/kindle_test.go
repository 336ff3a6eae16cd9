package book

import "testing"

func TestKindleBase32Decode(t *testing.T) {
	cases := map[string]uint64{"0": 0, "A": 10, "V": 31, "10": 32}
	for in, want := range cases {
		got, ok := KindleBase32Decode(in)
		if !ok || got != want {
			t.Errorf("decode(%q) = %d, %v; want %d, true", in, got, ok, want)
		}
	}
}

func TestKindleBase32DecodeCaseInsensitiveAndInvalid(t *testing.T) {
	if v, ok := KindleBase32Decode("a"); !ok || v != 10 {
		t.Errorf("expected lowercase a to decode like A, got %d %v", v, ok)
	}
	if _, ok := KindleBase32Decode("W"); ok {
		t.Errorf("expected W (outside 0-9A-V) to fail")
	}
	if _, ok := KindleBase32Decode(""); ok {
		t.Errorf("expected empty string to fail")
	}
}

func TestKindleBase32RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 31, 32, 1000, 123456} {
		enc := KindleBase32Encode(v)
		got, ok := KindleBase32Decode(enc)
		if !ok || got != v {
			t.Errorf("round trip failed for %d: encoded %q, decoded %d, %v", v, enc, got, ok)
		}
	}
}

func TestParseHrefKinds(t *testing.T) {
	if p := ParseHref("https://example.com/x"); p.Kind != HrefExternal {
		t.Errorf("expected HrefExternal, got %v", p.Kind)
	}
	if p := ParseHref("#chap3"); p.Kind != HrefFragment || p.Fragment != "chap3" {
		t.Errorf("expected fragment chap3, got %+v", p)
	}
	if p := ParseHref("part0002.html#intro"); p.Kind != HrefPath || p.Path != "part0002.html" || p.Fragment != "intro" {
		t.Errorf("expected path+fragment, got %+v", p)
	}
}

func TestParseHrefKindlePos(t *testing.T) {
	p := ParseHref("kindle:pos:fid:000B:off:00000002SO")
	if p.Kind != HrefKindlePos {
		t.Fatalf("expected HrefKindlePos, got %v", p.Kind)
	}
	if p.FID != 0x0B {
		t.Errorf("expected fid 0x0B, got %x", p.FID)
	}
	if p.Offset == 0 {
		t.Errorf("expected nonzero decoded offset")
	}
}

func TestFormatKindlePosRoundTrip(t *testing.T) {
	href := FormatKindlePos(0xB, 1234)
	p := ParseHref(href)
	if p.Kind != HrefKindlePos || p.FID != 0xB || p.Offset != 1234 {
		t.Fatalf("round trip mismatch: %+v", p)
	}
}
