package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/logging"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/source"
	"github.com/theirongolddev/cbudget/internal/store"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagYear      string
	flagFund      string
	flagEntity    string
	flagBaseURL   string
	flagLogLevel  string
	flagNoCache   bool
	flagQuiet     bool
	flagTitleCase bool
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:   "cbudget",
	Short: "City budget explorer",
	Long: "Explore a city's adopted budget against year-to-date actuals: appropriations,\n" +
		"revenues, departments and line-item payroll and vendor detail from the city's\n" +
		"open-data portal.",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	RunE: runAppropriations,
}

// Execute is the main entry point called from main.go.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagYear, "year", "y", "", "Fiscal year (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagFund, "fund", "f", "", "Fund group filter (default from config)")
	rootCmd.PersistentFlags().StringVarP(&flagEntity, "entity", "e", "", "Entity filter (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "Open-data portal base URL")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip the response cache, fetch everything live")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagTitleCase, "title-case", false, "Title-case upper-case labels")

	rootCmd.Flags().StringVar(&flagAppropBy, "by", "", "Show one view only: type or dept")
	rootCmd.Flags().StringVar(&flagSort, "sort", "code", "Section order: code, actual or ratio")
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv()
	cfg := loadConfig()

	path := cfg.Log.File
	if path == "" && cmd.Name() == "tui" {
		path = pipeline.LogPath()
	}
	level := flagLogLevel
	if level == "" {
		level = config.GetLogLevel(cfg)
	}

	c, err := logging.Setup(level, path)
	if err != nil {
		return err
	}
	logCloser = c
	return nil
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Warn("config unreadable, using defaults")
		cfg = config.DefaultConfig()
	}
	if flagYear != "" {
		cfg.General.FiscalYear = flagYear
	}
	if flagFund != "" {
		cfg.General.FundGroup = flagFund
	}
	if flagEntity != "" {
		cfg.General.Entity = flagEntity
	}
	if flagBaseURL != "" {
		cfg.Source.BaseURL = flagBaseURL
	}
	return cfg
}

func filterContext(cfg config.Config) soql.Context {
	return soql.Context{
		Entity:     cfg.General.Entity,
		FundGroup:  cfg.General.FundGroup,
		FiscalYear: cfg.General.FiscalYear,
	}
}

func datasets(cfg config.Config) pipeline.Datasets {
	ds := cfg.Source.Datasets
	return pipeline.Datasets{
		Appropriations: ds.Appropriations,
		Revenues:       ds.Revenues,
		Payroll:        ds.Payroll,
		Vendors:        ds.Vendors,
	}
}

// session is the shared data path used by all data commands.
type session struct {
	cfg    config.Config
	client *source.Client
	cache  *store.Cache
	loader *pipeline.Loader
}

// openSession validates the config and wires the client, cache and loader.
// The response cache is best-effort: if it cannot be opened, requests go live.
func openSession() (*session, error) {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []source.Option{
		source.WithAppToken(config.GetAppToken(cfg)),
		source.WithTimeout(cfg.Timeout()),
	}

	s := &session{cfg: cfg}
	if !flagNoCache {
		cache, err := store.Open(pipeline.CachePath())
		if err != nil {
			log.WithError(err).Warn("response cache unavailable")
			progressf("Cache unavailable, fetching live")
		} else {
			s.cache = cache
			opts = append(opts, source.WithCache(cache, cfg.CacheTTL()))
		}
	}

	s.client = source.NewClient(cfg.Source.BaseURL, opts...)
	s.loader = pipeline.NewLoader(s.client, datasets(cfg), filterContext(cfg),
		pipeline.WithDetailLimit(cfg.DrillDown.Limit))
	return s, nil
}

func (s *session) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// filterLine describes the active filter context, e.g. "FY2025 · CITY · GENERAL FUND".
func filterLine(ctx soql.Context) string {
	parts := []string{"FY" + ctx.FiscalYear}
	if ctx.Entity != "" {
		parts = append(parts, ctx.Entity)
	}
	if ctx.FundGroup != "" {
		parts = append(parts, ctx.FundGroup)
	}
	return strings.Join(parts, " · ")
}

func progressf(format string, args ...any) {
	if flagQuiet {
		return
	}
	fmt.Fprintf(os.Stderr, "  "+format+"\n", args...)
}

func requestSummary(s *session) {
	progressf("%s requests to %s", cli.FormatNumber(s.client.Requests()), s.client.BaseURL())
}
