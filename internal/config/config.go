// Package config loads server and client configuration from, in ascending
// precedence: an optional TOML file, environment variables mirroring the
// long flag names in uppercase, and explicit CLI flags. This three-tier
// precedence is new relative to the teacher's TOML-only loader, added to
// match the flag+env CLI surface this spec requires while still giving
// BurntSushi/toml a role as the low-precedence defaults source.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rostam-dev/socksx/internal/protoerr"
)

// fileDefaults is the subset of fields a TOML config file may supply as
// defaults. Top-level keys match the flag names exactly (e.g. dest_host);
// the timeout table, which has no flag counterpart, uses lowerCamelCase keys.
type fileDefaults struct {
	Host    string   `toml:"host"`
	Port    int      `toml:"port"`
	Socks   int      `toml:"socks"`
	Limit   int      `toml:"limit"`
	Chain   []string `toml:"chain"`
	Debug   bool     `toml:"debug"`
	DestHost string  `toml:"dest_host"`
	DestPort int     `toml:"dest_port"`
	Listen   string  `toml:"listen"`

	Timeout struct {
		DialSeconds      int `toml:"dialSeconds"`
		HandshakeSeconds int `toml:"handshakeSeconds"`
	} `toml:"timeout"`

	Credentials []struct {
		Username string `toml:"username"`
		Password string `toml:"password"`
	} `toml:"credentials"`
}

func loadFileDefaults(path string) (fileDefaults, error) {
	var fd fileDefaults
	if path == "" {
		return fd, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fd, nil
	}
	if _, err := toml.DecodeFile(path, &fd); err != nil {
		return fd, fmt.Errorf("%w: %s", protoerr.ErrConfig, err)
	}
	return fd, nil
}

// multiFlag implements flag.Value to support a repeatable flag (--chain),
// collecting one string per occurrence in the order given on the command
// line.
type multiFlag struct{ values []string }

func (m *multiFlag) String() string { return strings.Join(m.values, ",") }
func (m *multiFlag) Set(v string) error {
	m.values = append(m.values, v)
	return nil
}

// envOr returns flagVal if flagWasSet (the user passed the flag explicitly);
// otherwise the environment variable named by the uppercased flag name, if
// set; otherwise def.
func envOr(name string, flagWasSet bool, flagVal, def string) string {
	if flagWasSet {
		return flagVal
	}
	if v, ok := os.LookupEnv(strings.ToUpper(name)); ok {
		return v
	}
	return def
}

func envOrInt(name string, flagWasSet bool, flagVal, def int) int {
	if flagWasSet {
		return flagVal
	}
	if v, ok := os.LookupEnv(strings.ToUpper(name)); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrBool(name string, flagWasSet bool, flagVal, def bool) bool {
	if flagWasSet {
		return flagVal
	}
	if v, ok := os.LookupEnv(strings.ToUpper(name)); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// setFlags records which flag names were explicitly passed, so env/flag
// precedence can distinguish "flag left at its zero-value default" from
// "flag explicitly set to that value".
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
