// Command proposer-server runs the proof-coordination gateway: it
// dials the configured L1/L2/beacon endpoints, wires the
// witness-generation pipeline and proving-network client together, and
// serves the three request/status HTTP endpoints plus /metrics and
// /healthz.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/succinctlabs/op-succinct-go/config"
	"github.com/succinctlabs/op-succinct-go/gateway"
	"github.com/succinctlabs/op-succinct-go/metrics"
	"github.com/succinctlabs/op-succinct-go/oracle"
	"github.com/succinctlabs/op-succinct-go/proverclient"
)

var (
	Version   = "v0.0.1"
	GitCommit = ""
)

var (
	listenAddrFlag = &cli.StringFlag{
		Name:    "listen-addr",
		Usage:   "Address to serve the HTTP gateway on",
		Value:   config.DefaultListenAddr,
		EnvVars: []string{"LISTEN_ADDR", "PORT"},
	}
	l1RPCFlag = &cli.StringFlag{
		Name:     "l1-rpc",
		Usage:    "L1 execution RPC endpoint",
		Required: true,
		EnvVars:  []string{"L1_RPC"},
	}
	l2RPCFlag = &cli.StringFlag{
		Name:     "l2-rpc",
		Usage:    "L2 execution RPC endpoint",
		Required: true,
		EnvVars:  []string{"L2_RPC"},
	}
	beaconRPCFlag = &cli.StringFlag{
		Name:     "beacon-rpc",
		Usage:    "L1 consensus-layer beacon node REST endpoint",
		Required: true,
		EnvVars:  []string{"BEACON_RPC"},
	}
	proverURLFlag = &cli.StringFlag{
		Name:     "prover-network-url",
		Usage:    "Remote proving cluster base URL",
		Required: true,
		EnvVars:  []string{"PROVER_NETWORK_URL"},
	}
	privateKeyFlag = &cli.StringFlag{
		Name:     "sp1-private-key",
		Usage:    "Credential used to authenticate against the proving network",
		Required: true,
		EnvVars:  []string{"SP1_PRIVATE_KEY"},
	}
	rollupConfigPathFlag = &cli.StringFlag{
		Name:    "rollup-config-path",
		Usage:   "Path to rollup.json",
		Value:   "./rollup.json",
		EnvVars: []string{"ROLLUP_CONFIG_PATH"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:    "data-dir",
		Usage:   "Root directory for the disk-backed oracle cache",
		Value:   "./data",
		EnvVars: []string{"DATA_DIR"},
	}
	rangeELFPathFlag = &cli.StringFlag{
		Name:     "range-elf-path",
		Usage:    "Path to the compiled range (span) zkVM guest program",
		Required: true,
		EnvVars:  []string{"RANGE_ELF_PATH"},
	}
	aggregationELFPathFlag = &cli.StringFlag{
		Name:     "aggregation-elf-path",
		Usage:    "Path to the compiled aggregation zkVM guest program",
		Required: true,
		EnvVars:  []string{"AGGREGATION_ELF_PATH"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "trace|debug|info|warn|error|crit",
		Value:   "info",
		EnvVars: []string{"RUST_LOG", "LOG_LEVEL"},
	}
)

func main() {
	app := cli.NewApp()
	app.Version = fmt.Sprintf("%s-%s", Version, GitCommit)
	app.Name = "proposer-server"
	app.Description = "Proof-coordination gateway: witness generation, proof-input assembly, proving-network dispatch"
	app.Flags = []cli.Flag{
		listenAddrFlag, l1RPCFlag, l2RPCFlag, beaconRPCFlag, proverURLFlag,
		privateKeyFlag, rollupConfigPathFlag, dataDirFlag,
		rangeELFPathFlag, aggregationELFPathFlag, logLevelFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Crit("proposer-server exited with an error", "err", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	logger := newLogger(cliCtx.String(logLevelFlag.Name))
	log.SetDefault(logger)

	cfg := config.Config{
		ListenAddr:         cliCtx.String(listenAddrFlag.Name),
		L1RPC:              cliCtx.String(l1RPCFlag.Name),
		L2RPC:              cliCtx.String(l2RPCFlag.Name),
		BeaconRPC:          cliCtx.String(beaconRPCFlag.Name),
		ProverURL:          cliCtx.String(proverURLFlag.Name),
		ProverPrivateKey:   cliCtx.String(privateKeyFlag.Name),
		RollupConfigPath:   cliCtx.String(rollupConfigPathFlag.Name),
		DataDir:            cliCtx.String(dataDirFlag.Name),
		RangeELFPath:       cliCtx.String(rangeELFPathFlag.Name),
		AggregationELFPath: cliCtx.String(aggregationELFPathFlag.Name),
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	rollupConfig, err := cfg.LoadRollupConfig()
	if err != nil {
		return err
	}
	rangeELF, err := config.LoadELF(cfg.RangeELFPath)
	if err != nil {
		return err
	}
	aggregationELF, err := config.LoadELF(cfg.AggregationELFPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l1Client, err := ethclient.DialContext(ctx, cfg.L1RPC)
	if err != nil {
		return fmt.Errorf("dial l1 rpc %s: %w", cfg.L1RPC, err)
	}
	l2Client, err := ethclient.DialContext(ctx, cfg.L2RPC)
	if err != nil {
		return fmt.Errorf("dial l2 rpc %s: %w", cfg.L2RPC, err)
	}

	cold, err := oracle.NewDisk(cfg.DataDir)
	if err != nil {
		return err
	}

	m := metrics.New()
	prover := proverclient.New(cfg.ProverURL, cfg.ProverPrivateKey, logger.New("component", "proverclient"))
	gw := gateway.New(rollupConfig, l1Client, l2Client, cfg.BeaconRPC, rangeELF, aggregationELF, cold, prover, m, logger.New("component", "gateway"))

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: gw,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, stopping gateway")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", "err", err)
		}
		cancel()
	}()

	logger.Info("starting proposer-server", "listen-addr", cfg.ListenAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func newLogger(level string) log.Logger {
	lvl := parseLevel(level)
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false)
	return log.NewLogger(handler)
}

func parseLevel(s string) log.Level {
	switch s {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}
