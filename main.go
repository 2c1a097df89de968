package main

import (
	"authpage/internal/app"
	"authpage/internal/config"
	"authpage/internal/constants"
	"embed"
	"errors"
	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"io/fs"
	"log"
)

//go:embed static
var staticFS embed.FS

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	var host, port, backendUrl string

	cmd := &cobra.Command{
		Use:           "authpage",
		Short:         "Serve the login/register form",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
				fiberlog.Debugf("no %s file, using the environment", envFile)
			}

			cfg := config.NewConfigFromEnvironment(staticFS)
			if cfg.Env == constants.EnvDevelopment {
				fiberlog.SetLevel(fiberlog.LevelDebug)
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("backend-url") {
				cfg.BackendUrl = backendUrl
			}

			a := app.New(&cfg)
			fiberlog.Infof("submitting to %s", cfg.BackendUrl)
			return a.Listen(cfg.Addr())
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides HOST)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&backendUrl, "backend-url", "", "base URL of the login/register backend (overrides BACKEND_URL)")

	return cmd
}
