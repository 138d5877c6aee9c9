package main

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZanzyTHEbar/ecoscan/internal/adapters"
	"github.com/ZanzyTHEbar/ecoscan/internal/cache"
	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/monitoring"
	"github.com/ZanzyTHEbar/ecoscan/internal/resilience"
	"github.com/ZanzyTHEbar/ecoscan/internal/scoring"
)

// Config keys. The same names are read from ECOSCAN_* variables, so
// "home_region" is ECOSCAN_HOME_REGION as for the server.
const (
	keyRegion      = "region"
	keyHomeRegion  = "home_region"
	keyTables      = "tables_file"
	keyJSON        = "json"
	keyExplain     = "explain"
	keyURLTemplate = "off_url_template"
	keyTimeout     = "off_timeout"
	keyUseSeeds    = "use_seeds"
	keyLogLevel    = "log_level"
)

// app carries the settings shared by every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithViper(viper.New())
}

func newRootCmdWithViper(v *viper.Viper) *cobra.Command {
	a := &app{v: v}

	rootCmd := &cobra.Command{
		Use:   "ecoscan",
		Short: "Score the environmental impact of scanned products",
		Long: `ecoscan scores products on packaging, carbon footprint and ethics and
blends them into a single 0-100 eco-score.

Products can be scored from an OpenFoodFacts JSON document or looked up by
barcode. Settings are read from flags and from ECOSCAN_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := monitoring.ParseLevel(a.v.GetString(keyLogLevel))
			slog.SetDefault(monitoring.NewLoggerWithWriter(cmd.ErrOrStderr(), level).Logger)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("region", "r", "", "Region to score for (defaults to the home region)")
	flags.String("tables", "", "YAML file overriding the reference tables")
	flags.Bool("json", false, "Print JSON instead of a score card")
	flags.BoolP("explain", "e", false, "Include the per-term score breakdown")

	v.SetEnvPrefix("ECOSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyHomeRegion, scoring.DefaultRegionCode)
	v.SetDefault(keyURLTemplate, adapters.DefaultURLTemplate)
	v.SetDefault(keyTimeout, 15*time.Second)
	v.SetDefault(keyUseSeeds, true)
	v.SetDefault(keyLogLevel, "warn")

	_ = v.BindPFlag(keyRegion, flags.Lookup("region"))
	_ = v.BindPFlag(keyTables, flags.Lookup("tables"))
	_ = v.BindPFlag(keyJSON, flags.Lookup("json"))
	_ = v.BindPFlag(keyExplain, flags.Lookup("explain"))

	rootCmd.AddCommand(a.scoreCmd(), a.lookupCmd(), a.regionsCmd())
	return rootCmd
}

func (a *app) tables() (*scoring.Tables, error) {
	if path := a.v.GetString(keyTables); path != "" {
		return scoring.LoadTables(path)
	}
	return scoring.DefaultTables(), nil
}

// service builds a lookup service backed by an in-process cache.
func (a *app) service(tables *scoring.Tables, logOut io.Writer) *lookup.Service {
	timeout := a.v.GetDuration(keyTimeout)
	off := adapters.NewOpenFoodFactsAdapter(adapters.OpenFoodFactsConfig{
		URLTemplate: a.v.GetString(keyURLTemplate),
		Timeout:     timeout,
	})

	return lookup.NewService(lookup.Config{
		Tables:       tables,
		Fetcher:      off,
		Store:        cache.NewCache(time.Minute, 0),
		HomeRegion:   strings.ToLower(a.v.GetString(keyHomeRegion)),
		Retry:        resilience.FastRetryPolicy.Config,
		FetchTimeout: 2 * timeout,
		UseSeeds:     a.v.GetBool(keyUseSeeds),
		Logger:       monitoring.NewLoggerWithWriter(logOut, monitoring.ParseLevel(a.v.GetString(keyLogLevel))),
	})
}
