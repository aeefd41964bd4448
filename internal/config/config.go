// Package config defines the node's CLI surface (spec §6's flag list) and
// resolves it through a layered flag/env/file precedence via viper, the
// way the teacher's own cmd/ tools declare cli/v2 flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

// Category groups related flags for --help output, matching the teacher's
// internal/flags category convention.
const (
	categoryHTTP      = "HTTP RPC"
	categoryAuthRPC   = "Engine API"
	categoryP2P       = "P2P"
	categoryDiscovery = "Discovery"
	categoryNode      = "Node"
)

var (
	HTTPAddrFlag = &cli.StringFlag{Name: "http.addr", Usage: "JSON-RPC HTTP listen address", Value: "127.0.0.1", Category: categoryHTTP}
	HTTPPortFlag = &cli.IntFlag{Name: "http.port", Usage: "JSON-RPC HTTP listen port", Value: 8545, Category: categoryHTTP}

	AuthRPCAddrFlag      = &cli.StringFlag{Name: "authrpc.addr", Usage: "Engine API listen address", Value: "127.0.0.1", Category: categoryAuthRPC}
	AuthRPCPortFlag      = &cli.IntFlag{Name: "authrpc.port", Usage: "Engine API listen port", Value: 8551, Category: categoryAuthRPC}
	AuthRPCJWTSecretFlag = &cli.StringFlag{Name: "authrpc.jwtsecret", Usage: "Path to the Engine API's HS256 JWT shared secret", Category: categoryAuthRPC}

	P2PAddrFlag = &cli.StringFlag{Name: "p2p.addr", Usage: "RLPx session listen address", Value: "0.0.0.0", Category: categoryP2P}
	P2PPortFlag = &cli.IntFlag{Name: "p2p.port", Usage: "RLPx session listen port", Value: 30303, Category: categoryP2P}

	DiscoveryAddrFlag = &cli.StringFlag{Name: "discovery.addr", Usage: "Node-discovery listen address", Value: "0.0.0.0", Category: categoryDiscovery}
	DiscoveryPortFlag = &cli.IntFlag{Name: "discovery.port", Usage: "Node-discovery listen port", Value: 30303, Category: categoryDiscovery}

	NetworkFlag    = &cli.StringFlag{Name: "network", Usage: "Path to the genesis JSON document", Category: categoryNode}
	BootnodesFlag  = &cli.StringFlag{Name: "bootnodes", Usage: "Comma-separated list of bootstrap node URLs", Category: categoryDiscovery}
	DataDirFlag    = &cli.StringFlag{Name: "datadir", Usage: "Data directory for the node's Store", Value: "./datadir", Category: categoryNode}
	ImportFlag     = &cli.StringFlag{Name: "import", Usage: "Path to a chain-RLP file to import at startup", Category: categoryNode}
	LogLevelFlag   = &cli.StringFlag{Name: "log-level", Usage: "Log verbosity: trace, debug, info, warn, error, crit", Value: "info", Category: categoryNode}

	KZGTrustedSetupFlag = &cli.StringFlag{Name: "kzg-trusted-setup", Usage: "Path to a trusted setup file, switching blob verification to the c-kzg-4844 backend", Category: categoryNode}
)

// Flags is the full node flag set, passed to cli.App.Flags.
func Flags() []cli.Flag {
	return []cli.Flag{
		HTTPAddrFlag, HTTPPortFlag,
		AuthRPCAddrFlag, AuthRPCPortFlag, AuthRPCJWTSecretFlag,
		P2PAddrFlag, P2PPortFlag,
		DiscoveryAddrFlag, DiscoveryPortFlag,
		NetworkFlag, BootnodesFlag, DataDirFlag, ImportFlag, LogLevelFlag,
		KZGTrustedSetupFlag,
	}
}

// Config is the resolved node configuration, after flag/env/file layering.
type Config struct {
	HTTPAddr string
	HTTPPort int

	AuthRPCAddr      string
	AuthRPCPort      int
	AuthRPCJWTSecret string

	P2PAddr string
	P2PPort int

	DiscoveryAddr string
	DiscoveryPort int

	Network    string
	Bootnodes  []string
	DataDir    string
	ImportPath string
	LogLevel   string

	KZGTrustedSetupPath string
}

// FromContext resolves Config from a cli.Context, letting an environment
// variable of the form EXECD_<FLAG_NAME> (dots to underscores, uppercased)
// override a flag's default, and an explicit flag value override that in
// turn — the layered precedence the AMBIENT STACK's viper wiring provides.
func FromContext(c *cli.Context) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXECD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range []string{
		"http.addr", "http.port",
		"authrpc.addr", "authrpc.port", "authrpc.jwtsecret",
		"p2p.addr", "p2p.port",
		"discovery.addr", "discovery.port",
		"network", "bootnodes", "datadir", "import", "log-level", "kzg-trusted-setup",
	} {
		if c.IsSet(name) {
			v.Set(name, c.String(name))
		} else if val := c.String(name); val != "" {
			v.SetDefault(name, val)
		}
	}

	cfg := &Config{
		HTTPAddr:         v.GetString("http.addr"),
		HTTPPort:         portOrDefault(v, "http.port", c.Int("http.port")),
		AuthRPCAddr:      v.GetString("authrpc.addr"),
		AuthRPCPort:      portOrDefault(v, "authrpc.port", c.Int("authrpc.port")),
		AuthRPCJWTSecret: v.GetString("authrpc.jwtsecret"),
		P2PAddr:          v.GetString("p2p.addr"),
		P2PPort:          portOrDefault(v, "p2p.port", c.Int("p2p.port")),
		DiscoveryAddr:    v.GetString("discovery.addr"),
		DiscoveryPort:    portOrDefault(v, "discovery.port", c.Int("discovery.port")),
		Network:          v.GetString("network"),
		DataDir:          v.GetString("datadir"),
		ImportPath:       v.GetString("import"),
		LogLevel:         v.GetString("log-level"),

		KZGTrustedSetupPath: v.GetString("kzg-trusted-setup"),
	}
	if raw := v.GetString("bootnodes"); raw != "" {
		cfg.Bootnodes = splitCommaList(raw)
	}
	if cfg.Network == "" {
		return nil, fmt.Errorf("config: --network is required")
	}
	return cfg, nil
}

// portOrDefault prefers an env/file-supplied port value (which viper always
// stores as a string) over the flag's own parsed default, using cast to
// coerce it since EXECD_HTTP_PORT etc. arrive as plain environment strings.
func portOrDefault(v *viper.Viper, key string, flagDefault int) int {
	raw := v.GetString(key)
	if raw == "" {
		return flagDefault
	}
	port, err := cast.ToIntE(raw)
	if err != nil {
		return flagDefault
	}
	return port
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
