package config

import (
	"flag"
	"fmt"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// ClientConfig is the fully resolved client configuration, per §6 CLI
// (client).
type ClientConfig struct {
	SocksVersion int
	Host         string
	Port         int
	DestHost     string
	DestPort     int

	// Listen, if non-empty, switches the client into detour mode: instead
	// of the one-shot demo request, it runs a local TCP listener and
	// forwards each accepted connection's already-buffered initial bytes
	// (see session.TryReadInitialData) as the SOCKS6 request's initial
	// application data. SOCKS5 carries no initial-data option, so detour
	// mode requires --socks 6.
	Listen string
}

// LoadClientConfig parses args against the client's flag set, with the same
// TOML-file-then-env-then-flag precedence as LoadServerConfig.
func LoadClientConfig(args []string) (*ClientConfig, error) {
	fs := flag.NewFlagSet("socksx-client", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "optional TOML file supplying defaults for the flags below")
	socksVer := fs.Int("socks", 0, "SOCKS protocol version to speak (5 or 6)")
	host := fs.String("host", "", "proxy address to connect to")
	port := fs.Int("port", 0, "proxy port to connect to")
	destHost := fs.String("dest_host", "", "destination host to request via the proxy")
	destPort := fs.Int("dest_port", 0, "destination port to request via the proxy")
	listen := fs.String("listen", "", "if set, run a local redirector listening on this address instead of the one-shot demo (requires --socks 6)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s", protoerr.ErrConfig, err)
	}
	set := setFlags(fs)

	fd, err := loadFileDefaults(*cfgPath)
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		SocksVersion: envOrInt("socks", set["socks"], *socksVer, firstNonZeroInt(fd.Socks, 6)),
		Host:         envOr("host", set["host"], *host, firstNonEmpty(fd.Host, "127.0.0.1")),
		Port:         envOrInt("port", set["port"], *port, firstNonZeroInt(fd.Port, 1080)),
		DestHost:     envOr("dest_host", set["dest_host"], *destHost, fd.DestHost),
		DestPort:     envOrInt("dest_port", set["dest_port"], *destPort, fd.DestPort),
		Listen:       envOr("listen", set["listen"], *listen, fd.Listen),
	}
	if cfg.SocksVersion != 5 && cfg.SocksVersion != 6 {
		return nil, fmt.Errorf("%w: --socks must be 5 or 6, got %d", protoerr.ErrConfig, cfg.SocksVersion)
	}
	if cfg.Listen != "" && cfg.SocksVersion != 6 {
		return nil, fmt.Errorf("%w: --listen requires --socks 6 (SOCKS5 carries no initial-data option)", protoerr.ErrConfig)
	}
	return cfg, nil
}
