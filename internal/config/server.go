package config

import (
	"flag"
	"fmt"

	"github.com/rostam-dev/socksx/internal/protoerr"
)

// Account is one configured username/password pair accepted during
// sub-negotiation.
type Account struct {
	Username string
	Password string
}

// ServerConfig is the fully resolved server configuration, per §6 CLI
// (server).
type ServerConfig struct {
	Host         string
	Port         int
	SocksVersion int // 5 or 6
	Limit        int // 0 = unlimited
	Chain        []string
	Debug        bool
	Credentials  []Account

	DialTimeoutSeconds      int
	HandshakeTimeoutSeconds int
}

// LoadServerConfig parses args (normally os.Args[1:]) against the server's
// flag set, overlaying an optional --config TOML file's defaults and
// environment variables per the precedence documented on the package.
func LoadServerConfig(args []string) (*ServerConfig, error) {
	fs := flag.NewFlagSet("socksxd", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "optional TOML file supplying defaults for the flags below")
	host := fs.String("host", "", "address to listen on")
	port := fs.Int("port", 0, "port to listen on")
	socksVer := fs.Int("socks", 0, "SOCKS protocol version to serve (5 or 6)")
	limit := fs.Int("limit", -1, "maximum in-flight sessions (0 = unlimited)")
	debug := fs.Bool("debug", false, "enable debug logging")
	chain := &multiFlag{}
	fs.Var(chain, "chain", "socks6://... proxy hop to chain through (repeatable, order preserved)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %s", protoerr.ErrConfig, err)
	}
	set := setFlags(fs)

	fd, err := loadFileDefaults(*cfgPath)
	if err != nil {
		return nil, err
	}

	cfg := &ServerConfig{
		Host:         envOr("host", set["host"], *host, firstNonEmpty(fd.Host, "0.0.0.0")),
		Port:         envOrInt("port", set["port"], *port, firstNonZeroInt(fd.Port, 1080)),
		SocksVersion: envOrInt("socks", set["socks"], *socksVer, firstNonZeroInt(fd.Socks, 6)),
		Limit:        envOrInt("limit", set["limit"], *limit, fd.Limit),
		Debug:        envOrBool("debug", set["debug"], *debug, fd.Debug),
	}
	if cfg.SocksVersion != 5 && cfg.SocksVersion != 6 {
		return nil, fmt.Errorf("%w: --socks must be 5 or 6, got %d", protoerr.ErrConfig, cfg.SocksVersion)
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}

	if len(chain.values) > 0 {
		cfg.Chain = chain.values
	} else {
		cfg.Chain = fd.Chain
	}

	for _, c := range fd.Credentials {
		cfg.Credentials = append(cfg.Credentials, Account{Username: c.Username, Password: c.Password})
	}

	cfg.DialTimeoutSeconds = firstNonZeroInt(fd.Timeout.DialSeconds, 10)
	cfg.HandshakeTimeoutSeconds = firstNonZeroInt(fd.Timeout.HandshakeSeconds, 10)

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZeroInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}
