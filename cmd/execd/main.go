// execd is a standalone execution-layer node: it loads a genesis document,
// opens its chain store, and serves the public JSON-RPC surface, the
// authenticated Engine API, and an RLPx peer session over the network.
package main

import (
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/kzg"
	"github.com/luxfi/execd/core/mempool"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/engine"
	"github.com/luxfi/execd/genesis"
	"github.com/luxfi/execd/internal/config"
	"github.com/luxfi/execd/internal/metrics"
	"github.com/luxfi/execd/internal/xlog"
	"github.com/luxfi/execd/p2p"
	"github.com/luxfi/execd/rpc"
	"github.com/luxfi/execd/triedb"
)

const clientIdentifier = "execd"

var app = &cli.App{
	Name:    clientIdentifier,
	Usage:   "Lux execution-layer node",
	Version: "0.1.0",
}

func init() {
	app.Flags = config.Flags()
	app.Before = func(c *cli.Context) error {
		level, err := zapcore.ParseLevel(c.String("log-level"))
		if err != nil {
			level = zapcore.InfoLevel
		}
		xlog.SetDefault(xlog.New(xlog.Config{Level: level}))
		return nil
	}
	app.Action = runNode
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runNode(c *cli.Context) error {
	log := xlog.Default()

	cfg, err := config.FromContext(c)
	if err != nil {
		return err
	}

	doc, err := genesis.Load(cfg.Network)
	if err != nil {
		return fmt.Errorf("execd: loading genesis: %w", err)
	}

	if cfg.KZGTrustedSetupPath != "" {
		if err := kzg.LoadCKZGTrustedSetup(cfg.KZGTrustedSetupPath); err != nil {
			return fmt.Errorf("execd: loading kzg trusted setup: %w", err)
		}
		log.Info("execd: c-kzg-4844 backend ready", "setup", cfg.KZGTrustedSetupPath)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("execd: creating data directory: %w", err)
	}
	kv, err := triedb.OpenPebble(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		return fmt.Errorf("execd: opening chain store: %w", err)
	}
	// Front the disk engine with a bounded in-memory read cache: most trie
	// reads hit recently-written nodes (the upper levels of the account
	// trie are touched by nearly every transaction), so this absorbs most
	// of the random-read I/O a cold Pebble lookup would otherwise cost.
	cached := triedb.NewCached(kv, 128*1024*1024)

	st := store.New(cached)
	genesisHeader, err := doc.Commit(st)
	if err != nil {
		return fmt.Errorf("execd: committing genesis: %w", err)
	}
	log.Info("execd: genesis ready", "hash", genesisHeader.Hash(), "chainID", doc.Config.ChainID)

	if cfg.ImportPath != "" {
		n, err := importChain(st, cfg.ImportPath)
		if err != nil {
			return fmt.Errorf("execd: importing %s: %w", cfg.ImportPath, err)
		}
		log.Info("execd: imported chain segment", "blocks", n, "path", cfg.ImportPath)
	}

	reg := metrics.New()

	headHash, err := headCanonicalHash(st)
	if err != nil {
		return fmt.Errorf("execd: resolving chain head: %w", err)
	}
	headHeader, err := st.GetHeader(headHash)
	if err != nil {
		return fmt.Errorf("execd: loading head header: %w", err)
	}
	sdb := state.New(headHeader.StateRoot, st)
	pool := mempool.New(mempool.DefaultConfig(), sdb)

	rpcBackend := rpc.NewBackend(st, pool, &doc.Config)
	rpcServer := rpc.NewServer(rpcBackend, log, reg)

	httpMux := http.NewServeMux()
	httpMux.Handle("/", rpcServer)
	httpMux.Handle("/debug/metrics", reg.Handler())
	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTPAddr, cfg.HTTPPort)
	httpSrv := &http.Server{Addr: httpAddr, Handler: httpMux}
	go func() {
		log.Info("execd: JSON-RPC listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("execd: JSON-RPC server stopped", "err", err)
		}
	}()

	if cfg.AuthRPCJWTSecret == "" {
		return fmt.Errorf("execd: --authrpc.jwtsecret is required")
	}
	secret, err := engine.LoadSecret(cfg.AuthRPCJWTSecret)
	if err != nil {
		return fmt.Errorf("execd: loading Engine API secret: %w", err)
	}
	engineBackend := engine.NewBackend(st, pool, &doc.Config)
	engineServer := engine.NewServer(engineBackend, secret, log, reg)
	authMux := http.NewServeMux()
	authMux.Handle("/", engineServer)
	authAddr := fmt.Sprintf("%s:%d", cfg.AuthRPCAddr, cfg.AuthRPCPort)
	authSrv := &http.Server{Addr: authAddr, Handler: authMux}
	go func() {
		log.Info("execd: Engine API listening", "addr", authAddr)
		if err := authSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("execd: Engine API server stopped", "err", err)
		}
	}()

	p2pSrv, err := startP2P(cfg, st, genesisHeader.Hash(), doc, log, reg)
	if err != nil {
		return fmt.Errorf("execd: starting p2p server: %w", err)
	}

	waitForShutdown(log)

	p2pSrv.Close()
	_ = httpSrv.Close()
	_ = authSrv.Close()
	return nil
}

func headCanonicalHash(st *store.Store) (common.Hash, error) {
	cd := st.ChainData()
	return st.GetCanonicalHash(cd.Latest)
}

func startP2P(cfg *config.Config, st *store.Store, genesisHash common.Hash, doc *genesis.Genesis, log *xlog.Logger, reg *metrics.Registry) (*p2p.Server, error) {
	self, err := randomNode(cfg.P2PAddr, cfg.P2PPort)
	if err != nil {
		return nil, err
	}

	srv := p2p.NewServer(p2p.Config{
		Self:      self,
		NetworkID: doc.Config.ChainID.Uint64(),
		Genesis:   genesisHash,
		Store:     st,
		Log:       log,
		Metrics:   reg,
	})

	for _, raw := range cfg.Bootnodes {
		n, err := p2p.ParseNode(raw)
		if err != nil {
			log.Warn("execd: skipping malformed bootnode", "url", raw, "err", err)
			continue
		}
		srv.AddBootnode(n)
		go func(n *p2p.Node) {
			if err := srv.Dial(n); err != nil {
				log.Warn("execd: dialing bootnode failed", "node", n, "err", err)
			}
		}(n)
	}

	addr := fmt.Sprintf("%s:%d", cfg.P2PAddr, cfg.P2PPort)
	if err := srv.Listen(addr); err != nil {
		return nil, err
	}
	log.Info("execd: p2p listening", "addr", addr, "id", self.ID)
	return srv, nil
}

// randomNode mints this run's transient node identity. A production
// deployment would persist this across restarts (a nodekey file, as
// go-ethereum does); spec §6 scopes static-identity persistence out along
// with the rest of discovery's wire protocol.
func randomNode(addr string, port int) (*p2p.Node, error) {
	var id p2p.NodeID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, err
	}
	ip := net.ParseIP(addr)
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(127, 0, 0, 1)
	}
	return &p2p.Node{ID: id, IP: ip, TCP: uint16(port), UDP: uint16(port)}, nil
}

func waitForShutdown(log *xlog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("execd: shutting down", "signal", sig)
}
