package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jensneuse/abstractlogger"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	config "github.com/hanpama/gqlguard/internal/config"
	eventbus "github.com/hanpama/gqlguard/internal/eventbus"
	otel "github.com/hanpama/gqlguard/internal/otel"
	pipeline "github.com/hanpama/gqlguard/internal/pipeline"
	server "github.com/hanpama/gqlguard/internal/server"
)

const shutdownTimeout = 15 * time.Second

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "serve runs the validating proxy",
		Example: "gqlguard serve --schema schema.graphql --upstream.url http://localhost:4000/graphql --limits.depth 5",
		Args:    cobra.NoArgs,
		RunE:    a.runServe,
	}
	fs := cmd.Flags()
	fs.String("server.addr", ":8080", "host:port the proxy listens on")
	fs.String("server.path", "/graphql", "path the GraphQL endpoint is served on")
	fs.Bool("server.pretty", false, "pretty-print JSON responses")
	fs.Duration("server.timeout", 10*time.Second, "per-request timeout")
	fs.Int64("server.max-body-bytes", 1<<20, "maximum request body size, 0 means unlimited")
	fs.StringSlice("server.forward-headers", []string{"Authorization"}, "client headers forwarded upstream")
	fs.StringSlice("server.cors-origins", nil, "allowed CORS origins, * allows any")
	fs.Bool("server.graphiql", true, "serve GraphiQL to browsers")
	fs.String("upstream.url", "", "URL of the GraphQL server requests are forwarded to")
	fs.Duration("upstream.timeout", 30*time.Second, "timeout for upstream requests")
	fs.Bool("errors.mask", false, "replace upstream error messages")
	fs.String("errors.message", "", "message used for masked errors")
	fs.String("otel.endpoint", "", "OTLP collector endpoint")
	fs.String("otel.service", "gqlguard", "OpenTelemetry service name")
	addLimitFlags(fs)
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := a.load(cmd)
	if err != nil {
		return err
	}
	logger, flush, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer flush()

	upstream, err := cfg.UpstreamURL()
	if err != nil {
		return err
	}

	bus := eventbus.New()
	eventbus.Use(bus)
	shutdownTracing, err := otel.Setup(bus, cfg.Otel.Endpoint, cfg.Otel.Service)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sch, err := loadSchema(ctx, cfg, logger)
	if err != nil {
		return err
	}
	h, err := server.New(pipeline.New(sch), upstream, serverOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, h)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			abstractlogger.String("addr", cfg.Server.Addr),
			abstractlogger.String("path", cfg.Server.Path),
			abstractlogger.String("upstream", upstream.String()),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func serverOptions(cfg *config.Config, logger abstractlogger.Logger) []server.Option {
	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTimeout(cfg.Server.Timeout),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithGraphiQL(cfg.Server.GraphiQL),
		server.WithHTTPClient(&http.Client{Timeout: cfg.Upstream.Timeout}),
	}
	if cfg.Server.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if len(cfg.Server.ForwardHeaders) > 0 {
		opts = append(opts, server.WithForwardHeaders(cfg.Server.ForwardHeaders...))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.Server.CORSOrigins...))
	}
	return opts
}
