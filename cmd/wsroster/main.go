package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meszmate/wsroster/internal/app"
	"github.com/meszmate/wsroster/internal/config"
	"github.com/meszmate/wsroster/internal/logging"
	"github.com/meszmate/wsroster/internal/metrics"
	wstransport "github.com/meszmate/wsroster/internal/transport/websocket"
	"github.com/meszmate/wsroster/internal/ui"
)

var (
	configPath   string
	accountsPath string
	accountJID   string
	metricsAddr  string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "wsroster",
	Short: "Terminal XMPP chat client over WebSocket",
	Long: `wsroster connects one XMPP account through an RFC 7395 WebSocket
endpoint and opens a terminal chat window.

Accounts live in accounts.toml next to config.toml. Add one with:
  wsroster account add --jid alice@example.com --service-url wss://example.com`,
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml")
	rootCmd.PersistentFlags().StringVar(&accountsPath, "accounts", "", "path to accounts.toml")
	rootCmd.PersistentFlags().StringVarP(&accountJID, "account", "a", "", "account JID (default: first configured)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(accountCmd, sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtime is everything a command needs to drive one account.
type runtime struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.Metrics
	server  *http.Server
	app     *app.App
}

func setup(console bool) (*runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console && cfg.Logging.Console,
	})
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}

	if metricsAddr != "" {
		cfg.Metrics.ListenAddr = metricsAddr
	}
	if cfg.Metrics.ListenAddr != "" {
		if err := rt.serveMetrics(cfg.Metrics.ListenAddr); err != nil {
			rt.close()
			return nil, err
		}
	}

	accounts, err := loadAccounts()
	if err != nil {
		rt.close()
		return nil, err
	}
	account, err := accounts.Find(accountJID)
	if err != nil {
		rt.close()
		return nil, err
	}

	rt.app, err = app.New(cfg, account, wstransport.NewDialer(), logger.Logger, rt.metrics)
	if err != nil {
		rt.close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m, err := metrics.New(reg)
	if err != nil {
		return err
	}
	rt.metrics = m

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	rt.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		rt.logger.Info("Serving metrics", zap.String("addr", addr))
		if err := rt.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
	return nil
}

func (rt *runtime) close() {
	if rt.app != nil {
		if err := rt.app.Close(); err != nil {
			rt.logger.Debug("Close", zap.Error(err))
		}
	}
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rt.server.Shutdown(ctx)
	}
	_ = rt.logger.Close()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	paths, err := config.GetPaths()
	if err != nil {
		return nil, err
	}
	return config.LoadFile(configPath, paths.DataDir)
}

func loadAccounts() (*config.AccountsConfig, error) {
	if accountsPath == "" {
		return config.LoadAccounts()
	}
	return config.LoadAccountsFile(accountsPath)
}

func saveAccounts(accounts *config.AccountsConfig) error {
	if accountsPath == "" {
		return config.SaveAccounts(accounts)
	}
	if err := os.MkdirAll(filepath.Dir(accountsPath), 0700); err != nil {
		return err
	}
	return config.SaveAccountsFile(accountsPath, accounts)
}

func runTUI(cmd *cobra.Command, args []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.close()

	p := tea.NewProgram(ui.NewModel(rt.app), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
