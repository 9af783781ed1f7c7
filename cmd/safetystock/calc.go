package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/safety-stock/internal/pipeline"
	safetystock "github.com/andresuchdata/safety-stock/internal/pipeline/safety_stock"
	"github.com/andresuchdata/safety-stock/internal/service"
	"github.com/andresuchdata/safety-stock/pkg/logger"
)

func calcCommand() *cli.Command {
	return &cli.Command{
		Name:  "calc",
		Usage: "Calculate safety stock from the input files in a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "input-dir",
				Usage:   "Directory holding HISTORY_DATA, ITEM_MASTER and optionally FORECAST_DATA (.csv or .xlsx)",
				Value:   "./data",
				EnvVars: []string{"SAFETY_STOCK_INPUT_DIR"},
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "Directory the result CSVs are written to",
				Value:   "./data/output",
				EnvVars: []string{"SAFETY_STOCK_OUTPUT_DIR"},
			},
		},
		Action: func(c *cli.Context) error {
			summary, err := runCalc(c.String("input-dir"), c.String("output-dir"), logger.Component("calc"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "history rows: %d, forecast rows: %d, skipped groups: %d\n",
				summary.HistoryRows, summary.ForecastRows, summary.Skipped)
			return nil
		},
	}
}

type calcSummary struct {
	HistoryRows  int
	ForecastRows int
	Skipped      int
	Files        []string
}

// runCalc runs both estimators over the files in inputDir. The forecast
// estimator only runs when a forecast file is present.
func runCalc(inputDir, outputDir string, log zerolog.Logger) (*calcSummary, error) {
	reader := safetystock.NewReader(log)
	calc := safetystock.NewCalculator(log)
	summary := &calcSummary{}

	log.Info().Msg(pipeline.StageValidating.Message())

	historyData, err := openInput(inputDir, safetystock.HistoryDataFile)
	if err != nil {
		return nil, err
	}
	history, err := reader.ReadHistory(historyData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", safetystock.HistoryDataFile, err)
	}

	masterData, err := openInput(inputDir, safetystock.ItemMasterFile)
	if err != nil {
		return nil, err
	}
	master, err := reader.ReadItemMaster(masterData)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", safetystock.ItemMasterFile, err)
	}

	var forecast []safetystock.ForecastRecord
	forecastData, err := openInput(inputDir, safetystock.ForecastDataFile)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info().Msg("no forecast file, forecast based calculation skipped")
	case err != nil:
		return nil, err
	default:
		if forecast, err = reader.ReadForecast(forecastData); err != nil {
			return nil, fmt.Errorf("%s: %w", safetystock.ForecastDataFile, err)
		}
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	log.Info().Msg(pipeline.StageHistory.Message())
	historyRows, skipped, err := calc.CalculateHistory(history, master)
	if err != nil {
		return nil, err
	}
	log.Info().Msg(pipeline.MessageExporting)
	path, err := writeOutput(outputDir, safetystock.HistoryResultFile, func(w io.Writer) error {
		return safetystock.WriteHistoryCSV(w, historyRows)
	})
	if err != nil {
		return nil, err
	}
	summary.HistoryRows = len(historyRows)
	summary.Skipped += len(skipped)
	summary.Files = append(summary.Files, path)

	if forecastData != nil {
		log.Info().Msg(pipeline.StageForecast.Message())
		forecastRows, skipped, err := calc.CalculateForecast(forecast, master)
		if err != nil {
			return nil, err
		}
		log.Info().Msg(pipeline.MessageExporting)
		path, err := writeOutput(outputDir, safetystock.ForecastResultFile, func(w io.Writer) error {
			return safetystock.WriteForecastCSV(w, forecastRows)
		})
		if err != nil {
			return nil, err
		}
		summary.ForecastRows = len(forecastRows)
		summary.Skipped += len(skipped)
		summary.Files = append(summary.Files, path)
	}

	log.Info().Msg(pipeline.StageComplete.Message())
	return summary, nil
}

// openInput returns the CSV content of name, converting a workbook of the
// same base name when no CSV exists.
func openInput(dir, name string) (io.Reader, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err == nil {
		return bytes.NewReader(data), nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	xlsxPath := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+".xlsx")
	f, err := os.Open(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := service.ConvertXLSXToCSV(f, &buf); err != nil {
		return nil, fmt.Errorf("%s: %w", xlsxPath, err)
	}
	return &buf, nil
}

func writeOutput(dir, name string, write func(io.Writer) error) (string, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, f.Close()
}
