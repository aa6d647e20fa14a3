package main

import (
	"DetectionGateway/internal/config"
	"DetectionGateway/pkg/log"
	"errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger, err := newLogger()
	if err != nil {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	validator := config.NewValidator()

	gatewayConfig, err := config.LoadGatewayConfig(validator)
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger, gatewayConfig.MaxUploadSize)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithGatewayConfig(gatewayConfig),
		config.WithUtils(),
		config.WithMiddleware(),
		config.WithResultCache(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithFields(log.Fields{
		"interpreter": gatewayConfig.Interpreter,
		"script":      gatewayConfig.Script,
		"staging_dir": gatewayConfig.StagingDir,
		"timeout":     gatewayConfig.Timeout.String(),
	}).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	if err := server.Shutdown(shutdownTimeout); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

// newLogger loads .env before the logger is built, so LOG_LEVEL, LOG_DIR and
// APP_ENV can come from the file. A missing file is not an error.
func newLogger(envFiles ...string) (*logrus.Logger, error) {
	envErr := godotenv.Load(envFiles...)
	if errors.Is(envErr, fs.ErrNotExist) {
		envErr = nil
	}

	return log.NewLogger(), envErr
}
