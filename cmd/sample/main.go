// Command sample runs a small user API built on bind.
//
// Run:
//
//	go run ./cmd/sample
//
// Print the routes or the OpenAPI document and exit:
//
//	go run ./cmd/sample -routes
//	go run ./cmd/sample -spec
//	go run ./cmd/sample -spec -yaml -o openapi.yaml
//
// Then explore:
//
//	GET  http://localhost:8080/docs
//	GET  http://localhost:8080/v1/users
//	POST http://localhost:8080/v1/users
//	GET  http://localhost:8080/v1/users/{id:int}
//	POST http://localhost:8080/v1/users/{id:int}/avatar
//	GET  http://localhost:8080/v1/events
//	GET  http://localhost:8080/v1/ws
package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"

	"github.com/cockroachdb/errors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/bjaus/bind"
)

var (
	specFlag   = flag.Bool("spec", false, "print the OpenAPI document and exit")
	yamlFlag   = flag.Bool("yaml", false, "write the document as YAML (with -spec)")
	outFlag    = flag.String("o", "", "output file for the document (with -spec)")
	routesFlag = flag.Bool("routes", false, "print the route table and exit")
	envFlag    = flag.String("env", "", "optional .env file to load")
)

func main() {
	flag.Parse()

	if *specFlag || *routesFlag {
		r := newRouter(bind.DefaultConfig(), zap.NewNop(), newStore())
		if err := printAndExit(r); err != nil {
			os.Stderr.WriteString(err.Error() + "\n") //nolint:errcheck,gosec // exiting anyway
			os.Exit(1)
		}
		return
	}

	fx.New(
		fx.Provide(
			loadConfig,
			newLogger,
			newStore,
			newRouter,
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l}
		}),
		fx.Invoke(runServer),
	).Run()
}

func loadConfig() (bind.Config, error) {
	var files []string
	if *envFlag != "" {
		files = append(files, *envFlag)
	}
	return bind.LoadConfig(files...)
}

func newLogger(cfg bind.Config) (*zap.Logger, error) {
	return cfg.NewLogger()
}

func printAndExit(r *bind.Router) error {
	if *routesFlag {
		printRoutes(os.Stdout, r)
		return nil
	}

	var w io.Writer = os.Stdout
	if *outFlag != "" {
		f, err := os.Create(*outFlag) //nolint:gosec // user-provided CLI flag
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer f.Close() //nolint:errcheck // best-effort close
		w = f
	}
	if *yamlFlag {
		return r.WriteSpecYAML(w)
	}
	return r.WriteSpec(w)
}

func runServer(lc fx.Lifecycle, r *bind.Router, logger *zap.Logger) {
	srv := &http.Server{
		Addr:              ":8080",
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("docs", "http://localhost:8080/docs"))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("server stopping")
			return srv.Shutdown(ctx)
		},
	})
}
