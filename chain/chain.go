// Package chain implements SocksChain: the ordered sequence of SOCKS6 proxy
// hops advertised through metadata options and consumed by downstream
// proxies to forward a connection along an explicit path.
package chain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/rostam-dev/socksx/internal/protoerr"
	"github.com/rostam-dev/socksx/socksaddr"
	"github.com/rostam-dev/socksx/socksopt"
)

// SocksChain is an ordered list of proxy hops plus a cursor into it.
type SocksChain struct {
	Index int
	Links []socksaddr.ProxyAddress
}

// New builds a chain from CLI-supplied links, starting at index 0.
func New(links []socksaddr.ProxyAddress) SocksChain {
	return SocksChain{Links: links}
}

// HasNext reports whether a successor link exists beyond the cursor.
func (c SocksChain) HasNext() bool {
	return c.Index+1 < len(c.Links)
}

// Current returns the link at the cursor. Panics if the chain is empty;
// callers must check len(Links) > 0 first, matching the invariant that the
// cursor is only read when links is non-empty.
func (c SocksChain) Current() socksaddr.ProxyAddress {
	return c.Links[c.Index]
}

// NextLink returns a copy of the chain with the cursor advanced by one. It is
// a no-op returning the chain unchanged if there is no successor.
func (c SocksChain) NextLink() SocksChain {
	if !c.HasNext() {
		return c
	}
	c.Index++
	return c
}

// Detour inserts extra immediately after the current cursor position,
// preserving the relative order of existing links. If the chain is empty, a
// root sentinel is synthesized first so the resulting chain has a
// well-defined current link (the root) and next links (the extras) — the
// only circumstance under which the root sentinel appears.
func (c SocksChain) Detour(extra []socksaddr.ProxyAddress) SocksChain {
	if len(c.Links) == 0 {
		links := make([]socksaddr.ProxyAddress, 0, 1+len(extra))
		links = append(links, socksaddr.Root())
		links = append(links, extra...)
		return SocksChain{Index: 0, Links: links}
	}
	links := make([]socksaddr.ProxyAddress, 0, len(c.Links)+len(extra))
	links = append(links, c.Links[:c.Index+1]...)
	links = append(links, extra...)
	links = append(links, c.Links[c.Index+1:]...)
	return SocksChain{Index: c.Index, Links: links}
}

// AsOptions projects the chain into metadata options: one
// Metadata(1000+i, link_url) per link in ascending i, then
// Metadata(998, index), then Metadata(999, len(links)).
func (c SocksChain) AsOptions() []socksopt.Option {
	opts := make([]socksopt.Option, 0, len(c.Links)+2)
	for i, link := range c.Links {
		opts = append(opts, socksopt.Metadata{
			Key:   socksopt.MetaKeyChainLinkBase + uint16(i),
			Value: link.String(),
		})
	}
	opts = append(opts, socksopt.Metadata{Key: socksopt.MetaKeyChainIndex, Value: strconv.Itoa(c.Index)})
	opts = append(opts, socksopt.Metadata{Key: socksopt.MetaKeyChainLength, Value: strconv.Itoa(len(c.Links))})
	return opts
}

// FromOptions reconstructs a SocksChain from the metadata options decoded
// from a SOCKS6 request, per §4.4 step 5. Returns a zero-value (empty) chain
// if no chain metadata is present.
func FromOptions(opts []socksopt.Option) (SocksChain, error) {
	links := map[int]socksaddr.ProxyAddress{}
	index := 0
	length := -1

	for _, o := range opts {
		m, ok := o.(socksopt.Metadata)
		if !ok {
			continue
		}
		switch {
		case m.Key == socksopt.MetaKeyChainIndex:
			v, err := strconv.Atoi(m.Value)
			if err != nil {
				return SocksChain{}, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("chain index metadata: %w", err))
			}
			index = v
		case m.Key == socksopt.MetaKeyChainLength:
			v, err := strconv.Atoi(m.Value)
			if err != nil {
				return SocksChain{}, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("chain length metadata: %w", err))
			}
			length = v
		case m.Key >= socksopt.MetaKeyChainLinkBase:
			i := int(m.Key - socksopt.MetaKeyChainLinkBase)
			pa, err := socksaddr.ParseProxyAddress(m.Value)
			if err != nil {
				return SocksChain{}, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("chain link %d metadata: %w", i, err))
			}
			links[i] = pa
		}
	}

	if length < 0 {
		return SocksChain{}, nil
	}

	ordered := make([]socksaddr.ProxyAddress, length)
	ids := make([]int, 0, len(links))
	for i := range links {
		ids = append(ids, i)
	}
	sort.Ints(ids)
	for _, i := range ids {
		if i < 0 || i >= length {
			return SocksChain{}, errors.Join(protoerr.ErrProtocolViolation, fmt.Errorf("chain link index %d out of declared length %d", i, length))
		}
		ordered[i] = links[i]
	}
	return SocksChain{Index: index, Links: ordered}, nil
}
