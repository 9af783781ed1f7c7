// Command safetystock runs safety stock calculations from the command line
// and carries the maintenance tasks of the service.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/safety-stock/pkg/logger"
)

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "db-url",
		Usage:    "Database connection string",
		Required: true,
		EnvVars:  []string{"DATABASE_URL"},
	}
}

func main() {
	_ = godotenv.Load(".env")

	app := &cli.App{
		Name:  "safetystock",
		Usage: "Calculate history and forecast based safety stock",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "console",
				EnvVars: []string{"LOG_FORMAT"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Configure(c.String("log-level"), c.String("log-format"))
			return nil
		},
		Commands: []*cli.Command{
			calcCommand(),
			fetchCommand(),
			{
				Name:   "migrate",
				Usage:  "Apply the database schema",
				Flags:  []cli.Flag{newDBURLFlag()},
				Action: runMigrate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("command failed")
	}
}
