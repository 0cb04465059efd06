package chain

import (
	"testing"

	"github.com/rostam-dev/socksx/socksaddr"
)

func mustParse(t *testing.T, s string) socksaddr.ProxyAddress {
	t.Helper()
	pa, err := socksaddr.ParseProxyAddress(s)
	if err != nil {
		t.Fatalf("ParseProxyAddress(%q): %v", s, err)
	}
	return pa
}

func TestDetourOnEmptyChainSynthesizesRoot(t *testing.T) {
	extra := []socksaddr.ProxyAddress{mustParse(t, "socks6://hop1:1080")}
	c := SocksChain{}.Detour(extra)

	if len(c.Links) != 2 {
		t.Fatalf("expected 2 links (root + hop1), got %d", len(c.Links))
	}
	if !c.Links[0].IsRoot() {
		t.Fatalf("expected first link to be the root sentinel, got %+v", c.Links[0])
	}
	if c.Links[1].Host != "hop1" {
		t.Fatalf("expected second link to be hop1, got %+v", c.Links[1])
	}
	if c.Index != 0 {
		t.Fatalf("expected cursor at 0, got %d", c.Index)
	}
}

func TestDetourOnNonEmptyChainPreservesOrder(t *testing.T) {
	base := SocksChain{
		Index: 0,
		Links: []socksaddr.ProxyAddress{
			mustParse(t, "socks6://a:1080"),
			mustParse(t, "socks6://z:1080"),
		},
	}
	extra := []socksaddr.ProxyAddress{mustParse(t, "socks6://b:1080")}

	c := base.Detour(extra)

	want := []string{"a", "b", "z"}
	if len(c.Links) != len(want) {
		t.Fatalf("expected %d links, got %d", len(want), len(c.Links))
	}
	for i, w := range want {
		if c.Links[i].Host != w {
			t.Fatalf("link %d = %q, want %q", i, c.Links[i].Host, w)
		}
	}
}

func TestHasNextAndNextLink(t *testing.T) {
	c := SocksChain{Links: []socksaddr.ProxyAddress{
		mustParse(t, "socks6://a:1080"),
		mustParse(t, "socks6://b:1080"),
	}}
	if !c.HasNext() {
		t.Fatal("expected HasNext() true at index 0 of a 2-link chain")
	}
	next := c.NextLink()
	if next.Index != 1 {
		t.Fatalf("expected cursor advanced to 1, got %d", next.Index)
	}
	if next.HasNext() {
		t.Fatal("expected HasNext() false at the last link")
	}
	// NextLink is a no-op past the end.
	again := next.NextLink()
	if again.Index != 1 {
		t.Fatalf("expected NextLink past the end to be a no-op, got index %d", again.Index)
	}
}

func TestAsOptionsAndFromOptionsRoundTrip(t *testing.T) {
	c := SocksChain{
		Index: 1,
		Links: []socksaddr.ProxyAddress{
			mustParse(t, "socks6://a:1080"),
			mustParse(t, "socks6://b:1080"),
			mustParse(t, "socks6://c:1080"),
		},
	}
	opts := c.AsOptions()

	got, err := FromOptions(opts)
	if err != nil {
		t.Fatalf("FromOptions: %v", err)
	}
	if got.Index != c.Index {
		t.Fatalf("index = %d, want %d", got.Index, c.Index)
	}
	if len(got.Links) != len(c.Links) {
		t.Fatalf("expected %d links, got %d", len(c.Links), len(got.Links))
	}
	for i := range c.Links {
		if got.Links[i].String() != c.Links[i].String() {
			t.Fatalf("link %d = %q, want %q", i, got.Links[i].String(), c.Links[i].String())
		}
	}
}

func TestFromOptionsWithNoChainMetadataIsEmpty(t *testing.T) {
	c, err := FromOptions(nil)
	if err != nil {
		t.Fatalf("FromOptions(nil): %v", err)
	}
	if len(c.Links) != 0 {
		t.Fatalf("expected empty chain, got %+v", c)
	}
}
