// Package exportcli implements indicadores-export, which renders dashboard
// pages offline from any configured backend.
package exportcli

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"indicadores/internal/backend"
	"indicadores/internal/cache"
	"indicadores/internal/cli"
	"indicadores/internal/config"
	"indicadores/internal/core"
	"indicadores/internal/dashboard"
	apphttp "indicadores/internal/http"
	"indicadores/internal/log"
)

// app holds the state shared by every subcommand.
type app struct {
	backend    string
	dataDir    string
	logLevel   string
	municipios []string
	anos       []string

	cfg     *config.Config
	logger  *log.Logger
	svc     *dashboard.Service
	closeFn func() error
	parser  *apphttp.RequestParser
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{parser: apphttp.NewRequestParser()}
	root := &cobra.Command{
		Use:   "indicadores-export",
		Short: "Render dashboard topics as spreadsheets, charts or text",
		Long: `indicadores-export builds topic pages from the configured data backend
and writes them without starting the web server.

Example usage:
  indicadores-export topics
  indicadores-export page emprego --format xlsx --out emprego.xlsx
  indicadores-export page seguranca --anos 2023-2025
  indicadores-export chart emprego anual --out anual.png
  indicadores-export pivot comex_mensal --kind annual --group pais`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeFn != nil {
				return a.closeFn()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.backend, "backend", "", "data backend (default: DATA_BACKEND)")
	pf.StringVar(&a.dataDir, "data-dir", "", "seed directory for the memory backend (default: DATA_DIR)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (default: LOG_LEVEL or info)")
	pf.StringSliceVar(&a.municipios, "municipios", nil, "municipalities to compare")
	pf.StringSliceVar(&a.anos, "anos", nil, "years or ranges such as 2021-2024")

	root.AddCommand(a.topicsCmd(), a.pageCmd(), a.chartCmd(), a.pivotCmd())
	return root
}

// Execute runs the command line.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func (a *app) init(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cli.LoadEnvFile()
	level := a.logLevel
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	a.logger = cli.SetupLoggerTo(os.Stderr, level).WithComponent(log.ComponentExport)

	cfg := config.Load()
	if a.backend != "" {
		cfg.DataBackend = a.backend
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	catalog := core.DefaultCatalog()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	// Nothing outlives the command, so a shared cache would only add latency.
	backendCfg.RedisAddr = ""
	result, err := backend.NewFactory(catalog, a.logger, nil).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize backend: %w", err)
	}
	a.closeFn = result.Close

	a.svc = dashboard.NewService(result.Reader, catalog, dashboard.Options{
		Focus:          cfg.FocusMunicipality,
		Municipalities: cfg.ScopeMunicipalities(),
		Years:          cfg.Years,
		Logger:         a.logger,
	}, cache.NewLRUCache[dashboard.Page](16, cfg.CacheTTL), nil)
	return nil
}

// filter parses --municipios and --anos with the rules the web API uses.
func (a *app) filter() (core.Filter, error) {
	return a.parser.ParseFilter(url.Values{
		"municipios": a.municipios,
		"anos":       a.anos,
	})
}
