package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/config"
	"github.com/theirongolddev/cbudget/internal/soql"
	"github.com/theirongolddev/cbudget/internal/source"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that every configured dataset is reachable",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type datasetProbe struct {
	name    string
	id      string
	elapsed time.Duration
	err     error
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Probes always go live; a cached body says nothing about the host.
	client := source.NewClient(cfg.Source.BaseURL,
		source.WithAppToken(config.GetAppToken(cfg)),
		source.WithTimeout(cfg.Timeout()),
	)

	ds := datasets(cfg)
	probes := []datasetProbe{
		{name: "appropriations", id: ds.Appropriations},
		{name: "revenues", id: ds.Revenues},
		{name: "payroll", id: ds.Payroll},
		{name: "vendors", id: ds.Vendors},
	}

	progressf("Probing %s...", cfg.Source.BaseURL)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout())
	defer cancel()

	var g errgroup.Group
	for i := range probes {
		g.Go(func() error {
			p := &probes[i]
			start := time.Now()
			_, p.err = client.Fetch(ctx, soql.MustBuild(soql.Spec{
				Dataset: p.id,
				Select:  soql.Cols(":id"),
				Limit:   1,
			}))
			p.elapsed = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	fmt.Println()
	fmt.Println(cli.RenderTitle("DATA SOURCE STATUS"))
	fmt.Println()
	fmt.Printf("  Host:    %s\n", cfg.Source.BaseURL)
	token := "not set (shared rate limit)"
	if config.GetAppToken(cfg) != "" {
		token = "configured"
	}
	fmt.Printf("  Token:   %s\n", token)
	fmt.Printf("  Filter:  %s\n", filterLine(filterContext(cfg)))
	fmt.Println()

	failed := 0
	rows := make([][]string, 0, len(probes))
	for _, p := range probes {
		state := "ok"
		if p.err != nil {
			state = probeError(p.err)
			failed++
		}
		rows = append(rows, []string{p.name, p.id, state, p.elapsed.Round(time.Millisecond).String()})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"Dataset", "ID", "Status", "Latency"},
		Rows:    rows,
		Align:   []cli.Align{cli.AlignLeft, cli.AlignLeft, cli.AlignLeft, cli.AlignRight},
	}))

	if failed > 0 {
		return fmt.Errorf("%d of %d datasets unreachable", failed, len(probes))
	}
	return nil
}

func probeError(err error) string {
	var se *source.StatusError
	switch {
	case errors.As(err, &se) && (se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden):
		return "rejected: check app token"
	case errors.As(err, &se) && se.Code == http.StatusNotFound:
		return "not found: check dataset id"
	case errors.As(err, &se) && se.Code == http.StatusTooManyRequests:
		return "rate limited"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, source.ErrNetwork):
		return "unreachable"
	default:
		return err.Error()
	}
}
