// Package node assembles a running hdbridge node from its configuration:
// store, registry, ledger, relay, event bus, bridge facade and the optional
// Prometheus listener.
package node

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	dbm "github.com/tendermint/tm-db"
	"golang.org/x/net/netutil"

	"github.com/hdbridge/hdbridge/config"
	"github.com/hdbridge/hdbridge/internal/bridge"
	"github.com/hdbridge/hdbridge/internal/eventbus"
	"github.com/hdbridge/hdbridge/internal/ledger"
	"github.com/hdbridge/hdbridge/internal/registry"
	"github.com/hdbridge/hdbridge/internal/relay"
	"github.com/hdbridge/hdbridge/internal/store"
	"github.com/hdbridge/hdbridge/libs/log"
	"github.com/hdbridge/hdbridge/libs/service"
	"github.com/hdbridge/hdbridge/types"
)

// Node wires the bridge services together and manages their lifecycle.
type Node struct {
	service.BaseService
	logger log.Logger
	cfg    *config.Config

	store  *store.Store
	bus    *eventbus.EventBus
	bridge *bridge.Bridge

	prometheusSrv *http.Server
}

// New constructs a node from its configuration. The database is opened here;
// state rehydration happens when the node starts.
func New(cfg *config.Config, logger log.Logger) (*Node, error) {
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := dbm.NewDB("bridge", dbm.BackendType(cfg.Store.Backend), cfg.Store.DBDir())
	if err != nil {
		return nil, fmt.Errorf("opening bridge database: %w", err)
	}
	st := store.New(db)

	admins := make([]types.Identity, 0, len(cfg.Admins))
	for _, admin := range cfg.Admins {
		admins = append(admins, types.Identity(admin))
	}
	reg := registry.New(admins...)

	ldg := ledger.New(reg, cfg.Ledger.RequiredValidators, cfg.Ledger.ValidationWindow)
	rly := relay.New(reg, cfg.Relay.RequiredConfirmations)
	bus := eventbus.NewEventBus(logger.With("module", "events"))

	metrics := bridge.NopMetrics()
	if cfg.Instrumentation.Prometheus {
		metrics = bridge.PrometheusMetrics(cfg.Instrumentation.Namespace, "moniker", cfg.Moniker)
	}

	brg := bridge.New(
		logger.With("module", "bridge"),
		reg, ldg, rly, st, bus,
		bridge.WithMetrics(metrics),
	)

	n := &Node{
		logger: logger,
		cfg:    cfg,
		store:  st,
		bus:    bus,
		bridge: brg,
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

// Bridge returns the coordinator facade; callers invoke the operation set
// through it.
func (n *Node) Bridge() *bridge.Bridge { return n.bridge }

func (n *Node) OnStart(ctx context.Context) error {
	if err := n.bus.Start(ctx); err != nil {
		return err
	}
	if err := n.bridge.Start(ctx); err != nil {
		return err
	}

	if n.cfg.Instrumentation.Prometheus {
		srv, err := n.startPrometheusServer(n.cfg.Instrumentation.PrometheusListenAddr)
		if err != nil {
			return err
		}
		n.prometheusSrv = srv
	}
	return nil
}

func (n *Node) OnStop() {
	if n.prometheusSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := n.prometheusSrv.Shutdown(ctx); err != nil {
			n.logger.Error("prometheus server shutdown error", "err", err)
		}
	}
	if err := n.bridge.Stop(); err != nil {
		n.logger.Error("error stopping bridge", "err", err)
	}
	if err := n.bus.Stop(); err != nil {
		n.logger.Error("error stopping event bus", "err", err)
	}
	if err := n.store.Close(); err != nil {
		n.logger.Error("error closing store", "err", err)
	}
}

// startPrometheusServer starts a Prometheus HTTP server, listening for
// metrics collectors on addr.
func (n *Node) startPrometheusServer(addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("prometheus listener on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, n.cfg.Instrumentation.MaxOpenConnections)

	srv := &http.Server{
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.logger.Error("prometheus server terminated", "err", err)
		}
	}()
	return srv, nil
}
