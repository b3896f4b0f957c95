package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/urfave/cli"

	"github.com/streamforge/uploadengine/config"
	"github.com/streamforge/uploadengine/http"
	"github.com/streamforge/uploadengine/logger"
	"github.com/streamforge/uploadengine/multipart"
	"github.com/streamforge/uploadengine/pipeline"
	"github.com/streamforge/uploadengine/ratelimit"
	"github.com/streamforge/uploadengine/signedurl"
	"github.com/streamforge/uploadengine/sink"
	"github.com/streamforge/uploadengine/upload"
	"github.com/streamforge/uploadengine/validators"
)

// ServeCommand runs the HTTP server that accepts multipart/form-data
// uploads, validates signed URLs and bearer tokens, and stores completed
// files through the configured sink.
var ServeCommand = cli.Command{
	Name:  "serve",
	Usage: "run the upload engine HTTP server",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "path to the YAML configuration file",
			Value: "./uploadengine.yaml",
		},
		cli.StringFlag{
			Name:  "jwks-file",
			Usage: "path to a public JWKS file; when set, every upload requires a valid bearer token",
		},
		cli.StringFlag{
			Name:  "jwks-audience",
			Usage: "required \"aud\" claim for bearer tokens, when --jwks-file is set",
		},
	},
	Action: serveAction,
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	level, err := logger.LevelFromString(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.NewConsoleLogger(logger.NewTextPrinter(os.Stderr), os.Exit)
	log.SetLevel(level)

	storageSink, err := buildSink(cfg.Sink)
	if err != nil {
		return err
	}

	var requestValidators []pipeline.Plugin
	requestValidators = append(requestValidators, validators.NewAllowlistValidator(cfg.AllowedTypes))

	if cfg.SignedURLSecret != "" {
		signer := signedurl.New(signedurl.Config{
			Secret:        []byte(cfg.SignedURLSecret),
			DefaultExpiry: cfg.SignedURLMaxAge,
			ReplayCache:   signedurl.NewReplayCache(time.Minute),
		})
		requestValidators = append(requestValidators, signedurl.NewValidatorPlugin(signer))
	}

	if jwksFile := c.String("jwks-file"); jwksFile != "" {
		keySet, err := jwk.ReadFile(jwksFile)
		if err != nil {
			return fmt.Errorf("reading jwks file %s: %w", jwksFile, err)
		}
		requestValidators = append(requestValidators, validators.NewJWTAuthValidator(keySet, c.String("jwks-audience")))
	}

	// The allowlist is registered again here, after the signed-URL validator,
	// so that this run sees a URL's own allowed_types constraint in
	// AuthConstraints; the first registration above runs before it is set.
	requestValidators = append(requestValidators, validators.NewAllowlistValidator(cfg.AllowedTypes))

	coordinator := upload.New(upload.Config{
		Limits: multipart.Limits{
			FileSize:   cfg.MaxFileSize,
			Files:      cfg.MaxFiles,
			Fields:     cfg.MaxFields,
			FieldSize:  cfg.MaxFieldSize,
			HeaderSize: cfg.MaxHeaderSize,
		}.WithDefaults(),
		Validators: requestValidators,
		Sinks:      []pipeline.Plugin{storageSink},
		Log:        log,
		OnError: func(err error) {
			log.Warn("upload failed: %v", err)
		},
	})

	ctx := context.Background()
	if err := coordinator.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	defer coordinator.Shutdown(ctx)

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequests:     cfg.RateLimitRequests,
		Window:          cfg.RateLimitWindow,
		CleanupInterval: time.Minute,
	})

	srv := &server{coordinator: coordinator, limiter: limiter, log: log}

	httpSrv := &stdhttp.Server{
		Addr:    cfg.Listen,
		Handler: srv.router(),
	}

	log.Info("uploadengine listening on %s", cfg.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}
	return nil
}

func buildSink(cfg config.SinkConfig) (pipeline.Plugin, error) {
	switch cfg.Kind {
	case "", "memory":
		return sink.NewMemory(), nil
	case "disk":
		return sink.NewDisk(cfg.BaseDir, cfg.PathTemplate), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}

type server struct {
	coordinator *upload.Coordinator
	limiter     *ratelimit.Limiter
	log         logger.Logger
}

func (s *server) router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/upload", s.handleUpload)
	return r
}

func (s *server) handleUpload(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if err := s.limiter.AllowRequest(r); err != nil {
		http.WriteError(w, err)
		return
	}

	ctx := signedurl.WithRequestURL(r.Context(), requestURL(r))

	if bearer := bearerToken(r); bearer != "" {
		ctx = validators.WithBearerToken(ctx, bearer)
	}

	result, err := s.coordinator.Handle(ctx, r.Body, r.Header.Get("Content-Type"))
	if err != nil {
		http.WriteError(w, err)
		return
	}

	http.WriteJSON(w, stdhttp.StatusOK, result)
}

// requestURL reconstructs the URL the client addressed, honoring
// X-Forwarded-Proto for requests behind a reverse proxy, so signed URL
// validation sees the same URL the client signed.
func requestURL(r *stdhttp.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s?%s", scheme, r.Host, r.URL.Path, r.URL.RawQuery)
}

func bearerToken(r *stdhttp.Request) string {
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
