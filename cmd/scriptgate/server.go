package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scriptgate/scriptgate/internal/auth"
	"github.com/scriptgate/scriptgate/internal/db"
	"github.com/scriptgate/scriptgate/internal/lifecycle"
	"github.com/scriptgate/scriptgate/internal/logging"
	"github.com/scriptgate/scriptgate/internal/rotation"
	"github.com/scriptgate/scriptgate/internal/security"
	"github.com/scriptgate/scriptgate/internal/server"
)

var serverFlags struct {
	apiPort       int
	dbPath        string
	tlsCert       string
	tlsKey        string
	maxAgeDays    int
	rotationSweep time.Duration
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the token lifecycle API server",
	Long: `Start the scriptgate API server.

On first start an admin API key is generated and printed once. All /v1
routes require it as a bearer token.

The rotation sweep periodically scans active tokens against the rotation
policy and logs candidates; it never mutates tokens. Set --rotation-sweep 0
to disable it.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVar(&serverFlags.apiPort, "api-port", getEnvInt("SCRIPTGATE_API_PORT", 8081), "API port to listen on")
	serverCmd.Flags().StringVar(&serverFlags.dbPath, "db", getEnv("SCRIPTGATE_DB", "scriptgate.db"), "database path")
	serverCmd.Flags().StringVar(&serverFlags.tlsCert, "tls-cert", "", "path to TLS certificate file (enables TLS)")
	serverCmd.Flags().StringVar(&serverFlags.tlsKey, "tls-key", "", "path to TLS key file (enables TLS)")
	serverCmd.Flags().IntVar(&serverFlags.maxAgeDays, "max-age-days", getEnvInt("SCRIPTGATE_MAX_AGE_DAYS", 90), "token age threshold for rotation and scoring")
	serverCmd.Flags().DurationVar(&serverFlags.rotationSweep, "rotation-sweep", time.Hour, "interval between rotation sweeps (0 disables)")
}

func runServer(cmd *cobra.Command, args []string) error {
	database, err := db.Open(serverFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	count, err := db.CountAPIKeys(database)
	if err != nil {
		return fmt.Errorf("count API keys: %w", err)
	}
	if count == 0 {
		displayKey, prefix, hash, err := auth.GenerateAPIKey()
		if err != nil {
			return fmt.Errorf("generate API key: %w", err)
		}
		_, err = db.CreateAPIKey(database, prefix, hash)
		if err != nil {
			return fmt.Errorf("create API key: %w", err)
		}
		fmt.Println("=============================================================")
		fmt.Println("API KEY CREATED (save this, it will not be shown again):")
		fmt.Println(displayKey)
		fmt.Println("=============================================================")
	}

	policy := security.DefaultPolicy()
	if serverFlags.maxAgeDays > 0 {
		policy.MaxAgeDays = serverFlags.maxAgeDays
	}

	engine := lifecycle.NewEngine(database, logger.Named("lifecycle"))
	scanner := rotation.NewScanner(database, logger.Named("rotation"))
	scanner.Policy = policy

	apiSrv := &server.APIServer{
		DB:      database,
		Engine:  engine,
		Scanner: scanner,
		Policy:  policy,
		Logger:  logger.Named("api"),
	}

	apiErrLog, _ := zap.NewStdLogAt(logger.Named("api"), zapcore.ErrorLevel)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", serverFlags.apiPort),
		Handler:           apiSrv.Handler(),
		ErrorLog:          apiErrLog,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	manualTLS := serverFlags.tlsCert != "" && serverFlags.tlsKey != ""
	if manualTLS {
		cert, err := tls.LoadX509KeyPair(serverFlags.tlsCert, serverFlags.tlsKey)
		if err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
		apiServer.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}

	go func() {
		if manualTLS {
			logger.Info("starting api server", logging.Port(serverFlags.apiPort), zap.Bool("tls", true))
			if err := apiServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				logger.Error("api server error", zap.Error(err))
			}
			return
		}
		logger.Info("starting api server", logging.Port(serverFlags.apiPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server error", zap.Error(err))
		}
	}()

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if serverFlags.rotationSweep > 0 {
		logger.Info("starting rotation sweep", zap.Duration("interval", serverFlags.rotationSweep))
		go scanner.Run(sweepCtx, serverFlags.rotationSweep)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	cancelSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	apiServer.Shutdown(ctx)

	return nil
}
