package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agrovate/plategate/internal/config"
	"github.com/agrovate/plategate/internal/detect"
	"github.com/agrovate/plategate/internal/gate"
	"github.com/agrovate/plategate/internal/onnx"
	"github.com/agrovate/plategate/internal/pipeline"
	"github.com/agrovate/plategate/internal/recognize"
	"github.com/agrovate/plategate/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.NeedsONNXRuntime() {
		if err := onnx.Initialize(cfg.Runtime.LibraryPath); err != nil {
			return err
		}
		defer onnx.Cleanup()
	}

	factory := buildFactory(cfg, log)

	pool, err := server.NewPool(factory, cfg.Server.PoolSize, log)
	if err != nil {
		return fmt.Errorf("pipeline pool: %w", err)
	}
	defer pool.Destroy()

	var gateCtrl *gate.Controller
	if cfg.Gate.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		gateCtrl, err = gate.New(ctx, gate.Config{
			DatabaseURL:     cfg.Gate.DatabaseURL,
			CredentialsFile: cfg.Gate.CredentialsFile,
			AutoClose:       cfg.Gate.AutoClose,
		}, log)
		cancel()
		if err != nil {
			return fmt.Errorf("gate controller: %w", err)
		}
	}

	srv := server.New(pool, gateCtrl, log)
	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Int("pool_size", cfg.Server.PoolSize),
			zap.String("detector", cfg.Detector.Backend),
			zap.String("recognizer", cfg.Recognizer.Backend),
			zap.Bool("gate", cfg.Gate.Enabled))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

// buildFactory returns the per-worker pipeline constructor. Each call builds
// fresh inference sessions; sessions must never be shared across workers.
func buildFactory(cfg *config.Config, log *zap.Logger) server.PipelineFactory {
	return func() (*pipeline.Pipeline, error) {
		detector, err := buildDetector(cfg)
		if err != nil {
			return nil, err
		}

		recognizer, err := buildRecognizer(cfg)
		if err != nil {
			if c, ok := detector.(io.Closer); ok {
				c.Close()
			}
			return nil, err
		}

		return pipeline.New(detector, recognizer, log), nil
	}
}

func buildDetector(cfg *config.Config) (detect.Detector, error) {
	size := int64(cfg.Detector.InputSize)
	session, err := onnx.NewSession(onnx.SessionConfig{
		ModelPath:   cfg.Detector.ModelPath,
		Device:      onnx.Device(cfg.Runtime.Device),
		InputName:   cfg.Detector.InputName,
		OutputName:  cfg.Detector.OutputName,
		InputShape:  []int64{1, 3, size, size},
		OutputShape: []int64{1, int64(cfg.Detector.OutputRows), int64(cfg.Detector.RowStride)},
	})
	if err != nil {
		return nil, err
	}

	switch cfg.Detector.Backend {
	case config.DetectorRawDecode:
		return detect.NewRawDecodeDetector(session, detect.RawDecodeConfig{
			InputSize:     cfg.Detector.InputSize,
			ConfThreshold: cfg.Detector.ConfThreshold,
			RowStride:     cfg.Detector.RowStride,
		})
	case config.DetectorFull:
		backend, err := detect.NewONNXVehicleDetector(session, cfg.Detector.InputSize, cfg.Detector.RowStride, nil)
		if err != nil {
			session.Close()
			return nil, err
		}
		return detect.NewFullDetector(backend, detect.FullDetectorConfig{
			ConfThreshold: cfg.Detector.ConfThreshold,
			IoUThreshold:  cfg.Detector.IoUThreshold,
		})
	default:
		session.Close()
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Detector.Backend)
	}
}

func buildRecognizer(cfg *config.Config) (recognize.Recognizer, error) {
	switch cfg.Recognizer.Backend {
	case config.RecognizerTwoPass:
		return recognize.NewTwoPassRecognizer()
	case config.RecognizerSequence:
		classes := int64(len(recognize.Alphabet) + 1)
		session, err := onnx.NewSession(onnx.SessionConfig{
			ModelPath:   cfg.Recognizer.ModelPath,
			Device:      onnx.Device(cfg.Runtime.Device),
			InputName:   cfg.Recognizer.InputName,
			OutputName:  cfg.Recognizer.OutputName,
			InputShape:  []int64{1, 1, 32, 160},
			OutputShape: []int64{1, classes, int64(cfg.Recognizer.Positions)},
		})
		if err != nil {
			return nil, err
		}
		return recognize.NewSequenceRecognizer(session)
	default:
		return nil, fmt.Errorf("unknown recognizer backend %q", cfg.Recognizer.Backend)
	}
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
