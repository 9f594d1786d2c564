package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ats-analyzer/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", defaultPort, "port to listen on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	config := mustConfig(logger)

	logger.Info("starting the ats-analyzer",
		zap.String("version", version),
		zap.Int("port", config.Server.Port),
		zap.Duration("ai_timeout", time.Duration(config.AI.TimeoutMS)*time.Millisecond),
	)

	p, err := newProvider(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building ai provider", zap.Error(err))
	}

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}

	srvConfig := server.Config{
		Port:           config.Server.Port,
		AllowedOrigins: config.Server.CORSAllowOrigins,
		MaxUploadBytes: config.Server.MaxUploadBytes,
	}

	handler := server.NewHandler(server.HandlerDeps{
		Analyzer:        newAnalyzer(config.AI, p, logger),
		Prober:          p,
		CandidateModels: config.AI.Gemini.CandidateModels,
		MaxUploadBytes:  config.Server.MaxUploadBytes,
		Logger:          logger,
	})

	router := server.NewRouter(srvConfig, handler, logger)

	if err := server.Serve(ctx, srvConfig, router, logger); err != nil {
		logger.Fatal("serving http", zap.Error(err))
	}

	logger.Info("stopped")
}
