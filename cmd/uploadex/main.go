package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imrenagi/uploadex/config"
	"github.com/imrenagi/uploadex/provider"
	"github.com/imrenagi/uploadex/server"
	"github.com/imrenagi/uploadex/upload"
)

type cli struct {
	v          *viper.Viper
	configFile string
	envFile    string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:          "uploadex",
		Short:        "Validate and store uploaded files on local disk, S3, Azure, GCS or Cloudinary",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.configFile, "config", "", "Config file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable upload diagnostics")
	c.v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	c.v.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(newServeCommand(c))
	rootCmd.AddCommand(newUploadCommand(c))
	return rootCmd
}

// load reads the configuration, initializes the global logger and builds the
// provider. Any failure here is fatal for the command.
func (c *cli) load(ctx context.Context) (*config.Config, upload.Provider, error) {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(c.v, c.configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := server.InitializeLogger(cfg.Server.LogLevel); err != nil {
		return nil, nil, err
	}

	p, err := provider.New(ctx, cfg.Upload)
	if err != nil {
		log.Error().Err(err).Str("provider", string(cfg.Upload.Provider)).Msg("failed to initialize provider")
		return nil, nil, err
	}
	return cfg, p, nil
}

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, p, err := c.load(ctx)
			if err != nil {
				return err
			}

			s := server.New(server.Opts{
				Addr:         cfg.Server.Addr,
				TempDir:      cfg.Server.TempDir,
				OTLPEndpoint: cfg.Server.OTLPEndpoint,
				Provider:     p,
			})
			return s.Run(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("otlp-endpoint", "", "OTLP gRPC endpoint for traces")
	c.v.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	c.v.BindPFlag("otlp_endpoint", cmd.Flags().Lookup("otlp-endpoint"))
	return cmd
}
