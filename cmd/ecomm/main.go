package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jeetsigmoid/ecomm-datasources/internal/runner"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/logger"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"

	// Import all vendor adapters to register them
	_ "github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/amazonads"
	_ "github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/amc"
	_ "github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/instacart"
	_ "github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/vendorcentral"
	_ "github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/walmart"
)

var version = "0.1.0"

const dateLayout = "2006-01-02"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "ecomm",
		Short: "E-commerce report ingestion connectors",
		Long: `ecomm fetches advertising and retail reports from vendor APIs
(Amazon Ads, AMC, Vendor Central, Walmart, Instacart), normalizes them
and lands them in object storage.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ecomm v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newListCmd())
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		os.Exit(errors.ExitCode(err))
	}
}

func newListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered vendors and the configured report catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Registered vendors:")
			for _, vendor := range report.List() {
				fmt.Printf("  - %s\n", vendor)
			}

			if configPath == "" {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Reports)
			if err != nil {
				return err
			}
			fmt.Println("\nConfigured reports:")
			fmt.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	return cmd
}

func newRunCmd() *cobra.Command {
	var (
		configPath   string
		reportType   string
		vendor       string
		startDate    string
		endDate      string
		countryCodes []string
		bucket       string
		region       string
		logLevel     string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run report ingestion",
		Long: `Run report ingestion for one report kind or the whole catalog.
With --start-date/--end-date the range is backfilled; without them the
run discovers the latest date the vendor has data for.

Example:
  ecomm run --config config.yaml --report-type sp_campaigns \
    --start-date 2024-03-01 --end-date 2024-03-07 --country-code US`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if bucket != "" {
				cfg.Bucket = bucket
			}

			if err := logger.Init(logger.Config{
				Level:    cfg.Logging.Level,
				Encoding: cfg.Logging.Encoding,
			}); err != nil {
				return err
			}
			log := logger.Get()
			defer func() { _ = log.Sync() }()

			opts := runner.Options{
				ReportType:   reportType,
				Vendor:       vendor,
				CountryCodes: countryCodes,
			}
			if startDate != "" {
				opts.Start, err = time.Parse(dateLayout, startDate)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeConfig, "parse start date")
				}
				opts.End = opts.Start
				if endDate != "" {
					opts.End, err = time.Parse(dateLayout, endDate)
					if err != nil {
						return errors.Wrap(err, errors.ErrorTypeConfig, "parse end date")
					}
				}
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			sink, err := storage.NewSink(ctx, cfg.Bucket, region, log)
			if err != nil {
				return err
			}

			httpClient := clients.NewHTTPClient(&clients.HTTPConfig{
				RequestTimeout: cfg.HTTP.Timeout,
				RateLimit:      cfg.HTTP.RequestsPerSecond,
				RateBurst:      cfg.HTTP.Burst,
				DialTimeout:    30 * time.Second,
				UserAgent:      "ecomm-datasources/" + version,
			}, log)
			defer func() { _ = httpClient.Close() }()

			r := runner.New(cfg, config.EnvCredentialProvider{}, sink, httpClient, log)
			if cfg.Snowflake.Enabled() {
				warehouse, err := storage.NewSnowflakeSink(storage.SnowflakeConfig{
					Account:   cfg.Snowflake.Account,
					User:      cfg.Snowflake.User,
					Password:  cfg.Snowflake.Password,
					Database:  cfg.Snowflake.Database,
					Schema:    cfg.Snowflake.Schema,
					Warehouse: cfg.Snowflake.Warehouse,
					Role:      cfg.Snowflake.Role,
				}, log)
				if err != nil {
					return err
				}
				defer func() { _ = warehouse.Close() }()
				r = r.WithWarehouse(warehouse)
			}
			if err := r.Run(ctx, opts); err != nil {
				log.Error("run failed", zap.Error(err))
				return err
			}
			log.Info("run complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	cmd.Flags().StringVar(&reportType, "report-type", "", "run a single report kind")
	cmd.Flags().StringVar(&vendor, "vendor", "", "limit the catalog to one vendor")
	cmd.Flags().StringVar(&startDate, "start-date", "", "backfill range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "backfill range end (YYYY-MM-DD), defaults to start")
	cmd.Flags().StringSliceVar(&countryCodes, "country-code", nil, "country codes to run (default: all configured)")
	cmd.Flags().StringVar(&bucket, "bucket", "", "override the destination bucket (s3://name, gs://name or a bare S3 name)")
	cmd.Flags().StringVar(&region, "region", "us-east-1", "AWS region for the destination bucket")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	cmd.Flags().DurationVar(&timeout, "timeout", 6*time.Hour, "overall run deadline")
	return cmd
}
