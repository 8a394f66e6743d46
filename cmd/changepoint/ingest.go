package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sartorproj/gochangepoint/datasource"
	"github.com/sartorproj/gochangepoint/timeseries"
)

func newIngestCmd(a *app) *cobra.Command {
	var input, to, output string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Copy a price series into a SQL table, an S3 object or a CSV file",
		Long: `ingest reads a series from --input (a CSV file) or, when --input is empty,
from the configured source, and writes it to:

  sql  the table in source.sql (created if missing, rows upserted by date)
  s3   the object in source.s3
  csv  the file given by --output`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			series, err := a.readInput(ctx, input)
			if err != nil {
				return err
			}

			switch to {
			case "sql":
				return a.ingestSQL(ctx, series)
			case "s3":
				return a.ingestS3(ctx, series)
			case "csv":
				if output == "" {
					return fmt.Errorf("--output is required with --to csv")
				}
				if err := timeseries.SaveCSV(series, output); err != nil {
					return err
				}
				a.logger.Info().Str("file", output).Int("rows", series.Len()).Msg("Series written")
				return nil
			}
			return fmt.Errorf("unknown ingest target %q", to)
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "CSV file to read; empty reads the configured source")
	cmd.Flags().StringVar(&to, "to", "sql", "Destination (sql|s3|csv)")
	cmd.Flags().StringVar(&output, "output", "", "Output file for --to csv")
	return cmd
}

func (a *app) readInput(ctx context.Context, input string) (*timeseries.Series, error) {
	if input != "" {
		return datasource.NewCSVFile(datasource.CSVConfig{Path: input}).Load(ctx)
	}
	src, closeFn, err := datasource.Open(ctx, a.cfg.Source, nil, a.logger)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return src.Load(ctx)
}

func (a *app) ingestSQL(ctx context.Context, series *timeseries.Series) error {
	cfg := a.cfg.Source.SQL
	db, err := datasource.OpenDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := datasource.EnsureSchema(ctx, db, cfg.Table); err != nil {
		return err
	}
	n, err := datasource.WriteSeries(ctx, db, cfg.Table, series)
	if err != nil {
		return err
	}
	a.logger.Info().Str("driver", cfg.Driver).Str("table", cfg.Table).Int("rows", n).Msg("Series written")
	return nil
}

func (a *app) ingestS3(ctx context.Context, series *timeseries.Series) error {
	cfg := a.cfg.Source.S3
	client, err := datasource.NewS3Client(ctx, cfg)
	if err != nil {
		return err
	}
	obj, err := datasource.NewS3Object(client, cfg.Bucket, cfg.Key)
	if err != nil {
		return err
	}
	if err := obj.Store(ctx, series); err != nil {
		return err
	}
	a.logger.Info().Str("object", obj.Name()).Int("rows", series.Len()).Msg("Series written")
	return nil
}
