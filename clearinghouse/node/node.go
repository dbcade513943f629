// Package node assembles the clearinghouse services: the contract database,
// the escrow and verification services, the payment adapter, and the
// monitoring endpoint. It handles the lifecycle of the entire system.
package node

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/db/kv"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/escrow"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/flags"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/payments"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verification"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/verify"
	"github.com/prysmaticlabs/clearinghouse/clearinghouse/workflow"
	"github.com/prysmaticlabs/clearinghouse/shared/params"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var log = logrus.WithField("prefix", "node")

// Clearinghouse handles the lifecycle of the entire system: database,
// escrow and verification services, payment adapter, and monitoring.
type Clearinghouse struct {
	cliCtx        *cli.Context
	lock          sync.RWMutex
	stop          chan struct{} // Channel to wait for termination notifications.
	db            db.Database
	escrow        *escrow.Service
	verification  *verification.Service
	workflow      *workflow.Runner
	metricsServer *http.Server
}

// New creates a new node instance, sets up configuration options, and opens
// the contract database.
func New(cliCtx *cli.Context) (*Clearinghouse, error) {
	if cliCtx.IsSet(flags.MaxRetriesFlag.Name) {
		cfg := params.ClearinghouseConfig().Copy()
		cfg.DefaultMaxRetries = cliCtx.Int(flags.MaxRetriesFlag.Name)
		params.OverrideClearinghouseConfig(cfg)
	}

	n := &Clearinghouse{
		cliCtx: cliCtx,
		stop:   make(chan struct{}),
	}

	if err := n.startDB(cliCtx); err != nil {
		return nil, err
	}

	adapter := payments.NewSimulator()
	// Sandbox and judge backends are wired by the hosting process; without
	// them the code_execution and semantic strategies report a configuration
	// failure at verify time while schema and mock remain fully usable.
	factory := verify.NewFactory(nil, nil)
	n.escrow = escrow.NewService(n.db, adapter)
	n.verification = verification.NewService(n.escrow, n.db, factory)
	n.workflow = workflow.NewRunner(n.escrow, n.verification)
	return n, nil
}

func (n *Clearinghouse) startDB(cliCtx *cli.Context) error {
	dataDir := cliCtx.String(flags.DataDirFlag.Name)
	store, err := kv.NewKVStore(dataDir)
	if err != nil {
		return err
	}
	if cliCtx.Bool(flags.ClearDB.Name) {
		if err := store.ClearDB(); err != nil {
			return err
		}
		store, err = kv.NewKVStore(dataDir)
		if err != nil {
			return err
		}
	}
	log.WithField("databasePath", store.DatabasePath()).Info("Checking DB")
	n.db = store
	return nil
}

// Start the clearinghouse node and block until interrupted. With --simulate
// set, one full contract lifecycle runs instead and the node exits.
func (n *Clearinghouse) Start() {
	n.lock.Lock()
	if !n.cliCtx.Bool(flags.DisableMonitoringFlag.Name) {
		n.startMonitoring()
	}
	n.lock.Unlock()

	if n.cliCtx.Bool(flags.SimulateFlag.Name) {
		if err := n.runSimulation(context.Background()); err != nil {
			log.WithError(err).Error("Simulation failed")
		}
		n.Close()
		return
	}

	stop := n.stop
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		log.Info("Got interrupt, shutting down...")
		go n.Close()
		for i := 10; i > 0; i-- {
			<-sigc
			if i > 1 {
				log.WithField("times", i-1).Info("Already shutting down, interrupt more to panic")
			}
		}
		panic("Panic closing the clearinghouse node")
	}()

	// Wait for stop channel to be closed.
	<-stop
}

// Close handles graceful shutdown of the system.
func (n *Clearinghouse) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()

	select {
	case <-n.stop:
		return
	default:
	}

	log.Info("Stopping clearinghouse node")
	if n.metricsServer != nil {
		if err := n.metricsServer.Close(); err != nil {
			log.Errorf("Failed to close monitoring server: %v", err)
		}
	}
	if err := n.db.Close(); err != nil {
		log.Errorf("Failed to close database: %v", err)
	}
	close(n.stop)
}

func (n *Clearinghouse) startMonitoring() {
	addr := fmt.Sprintf("%s:%d", n.cliCtx.String(flags.MonitoringHostFlag.Name), n.cliCtx.Int(flags.MonitoringPortFlag.Name))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK\n")); err != nil {
			log.Errorf("Could not write healthz body: %v", err)
		}
	})
	n.metricsServer = &http.Server{Addr: addr, Handler: mux}
	log.WithField("address", addr).Info("Starting prometheus service")
	go func() {
		if err := n.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Monitoring server failed")
		}
	}()
}
