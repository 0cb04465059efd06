package socksaddr

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// ProxyAddress names one hop in a SocksChain: a SOCKS version, a host/port,
// and optional credentials. Its textual form is a socks5:// or socks6:// URL,
// mirroring the reference implementation's use of a generic URL parser for
// this (there is no ecosystem precedent in this codebase for a bespoke
// parser, and net/url already expresses userinfo/host/port exactly).
type ProxyAddress struct {
	Version     int // 5 or 6
	Host        string
	Port        uint16
	Credentials *Credentials // nil when no userinfo is present
}

// Root is the sentinel ProxyAddress synthesized by SocksChain.Detour when
// inserting hops into an otherwise empty chain: "the current process as a
// link".
func Root() ProxyAddress {
	return ProxyAddress{Version: 6, Host: "root", Port: 1080}
}

// IsRoot reports whether p is the root sentinel.
func (p ProxyAddress) IsRoot() bool {
	return p.Version == 6 && p.Host == "root" && p.Port == 1080 && p.Credentials == nil
}

// ParseProxyAddress parses "socks{5|6}://[user[:pass]@]host:port".
func ParseProxyAddress(s string) (ProxyAddress, error) {
	u, err := url.Parse(s)
	if err != nil {
		return ProxyAddress{}, errors.Join(protoerr.ErrProxyAddressInvalid, err)
	}
	var version int
	switch u.Scheme {
	case "socks5":
		version = 5
	case "socks6":
		version = 6
	default:
		return ProxyAddress{}, errors.Join(protoerr.ErrProxyAddressInvalid, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	host := u.Hostname()
	if host == "" {
		return ProxyAddress{}, errors.Join(protoerr.ErrProxyAddressInvalid, errors.New("missing host"))
	}
	portStr := u.Port()
	if portStr == "" {
		return ProxyAddress{}, errors.Join(protoerr.ErrProxyAddressInvalid, errors.New("missing port"))
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return ProxyAddress{}, errors.Join(protoerr.ErrProxyAddressInvalid, err)
	}
	pa := ProxyAddress{Version: version, Host: host, Port: uint16(port)}
	if u.User != nil {
		username := u.User.Username()
		password, _ := u.User.Password()
		pa.Credentials = &Credentials{Username: []byte(username), Password: []byte(password)}
	}
	return pa, nil
}

// String renders the canonical "socks{5|6}://[user[:pass]@]host:port" form.
func (p ProxyAddress) String() string {
	scheme := "socks5"
	if p.Version == 6 {
		scheme = "socks6"
	}
	userinfo := ""
	if p.Credentials != nil {
		userinfo = string(p.Credentials.Username)
		if len(p.Credentials.Password) > 0 {
			userinfo += ":" + string(p.Credentials.Password)
		}
		userinfo += "@"
	}
	return fmt.Sprintf("%s://%s%s", scheme, userinfo, net.JoinHostPort(p.Host, strconv.FormatUint(uint64(p.Port), 10)))
}
