package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payload-log/internal/cache"
	"payload-log/internal/config"
	"payload-log/internal/decrypt"
	"payload-log/internal/generator"
	"payload-log/internal/logger"
	"payload-log/internal/metrics"
	"payload-log/internal/query"
	"payload-log/internal/server"
	"payload-log/internal/source"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"
)

func main() {

	// ====================================================================
	// Config & logger
	// ====================================================================
	//
	// Config is read from the environment once; a bad value exits here,
	// before anything listens.
	// ====================================================================
	cfg := config.Load()
	logger.Init(cfg)

	// `server generate` / `server generate-data` writes a demo session
	// into LOCAL_LOG_DIR and exits.
	if len(os.Args) > 1 && (os.Args[1] == "generate" || os.Args[1] == "generate-data") {
		runGenerate(cfg)
		return
	}

	m := metrics.New()

	// ====================================================================
	// Storage + decryption
	// ====================================================================
	//
	// Both are picked once here and shared by every request:
	//   - LOG_SOURCE=local|s3
	//   - DECRYPTOR=none|fernet|secretsmanager
	// ====================================================================
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	src := newSource(startCtx, cfg)
	dec := newDecryptor(startCtx, cfg)
	cancelStart()

	engine := query.NewEngine(src, dec, m)
	sessions := cache.NewSessionCache(src, cfg.SessionCacheTTL, m)

	h := server.NewHandler(cfg, m, engine, sessions)

	// ====================================================================
	// HTTP server
	// ====================================================================
	//
	// No WriteTimeout: an SSE stream stays open for as long as the operator
	// keeps tailing. Header reads are still bounded.
	//
	// Every request context derives from baseCtx, which is cancelled on
	// shutdown so open streams end instead of holding Shutdown open.
	// ====================================================================
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 8 * time.Second,
		ReadTimeout:       8 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	// ====================================================================
	// Graceful shutdown
	// ====================================================================
	//
	// On SIGTERM (ECS scale-in, rolling deploy) or SIGINT:
	//   1. cancel request contexts: streams close their storage reads
	//   2. stop accepting and wait for in-flight paged reads
	// ====================================================================
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		cancelBase()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("source", cfg.LogSource).
		Str("decryptor", cfg.Decryptor).
		Msg("payload log server listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server terminated")
	}

	<-done
	log.Info().Msg("shutdown complete")
}

func loadAWS(ctx context.Context, cfg config.Config) aws.Config {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS config")
	}
	return awsCfg
}

func newSource(ctx context.Context, cfg config.Config) source.Source {
	switch cfg.LogSource {
	case config.SourceS3:
		client := source.NewS3Client(loadAWS(ctx, cfg), cfg.S3Endpoint)
		log.Info().
			Str("bucket", cfg.S3Bucket).
			Str("prefix", cfg.S3Prefix).
			Msg("using s3 log source")
		return source.NewS3(client, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Timeout)
	default:
		log.Info().Str("dir", cfg.LocalLogDir).Msg("using local log source")
		return source.NewLocal(cfg.LocalLogDir)
	}
}

func newDecryptor(ctx context.Context, cfg config.Config) decrypt.Decryptor {
	switch cfg.Decryptor {
	case config.DecryptorFernet:
		f, err := decrypt.NewFernet(cfg.FernetKeys...)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid FERNET_KEYS")
		}
		return f
	case config.DecryptorSecretsManager:
		api := secretsmanager.NewFromConfig(loadAWS(ctx, cfg))
		f, err := decrypt.NewSecretFernet(ctx, api, cfg.DecryptSecretID)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load decryption keys")
		}
		return f
	default:
		return decrypt.Nop{}
	}
}

func runGenerate(cfg config.Config) {
	opts := generator.Options{
		Dir:   cfg.LocalLogDir,
		Count: cfg.GenerateCount,
		Gzip:  cfg.GenerateGzip,
	}

	// seal payloads whenever the server would be able to open them
	if cfg.Decryptor != config.DecryptorNone {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if f, ok := newDecryptor(ctx, cfg).(*decrypt.Fernet); ok {
			opts.Sealer = f
		}
		cancel()
	}

	if _, err := generator.Generate(opts); err != nil {
		log.Fatal().Err(err).Msg("generate demo data")
	}
}
