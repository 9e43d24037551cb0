// Package main runs toolgate as a standalone diagnostic process: it
// installs the interception transport on http.DefaultTransport with a
// logging interceptor and optionally serves the local debug API. Hosts that
// embed toolgate wire the same pieces themselves and supply their own
// interceptor and transcript source.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/router-for-me/toolgate/internal/api"
	"github.com/router-for-me/toolgate/internal/config"
	"github.com/router-for-me/toolgate/internal/intercept"
	"github.com/router-for-me/toolgate/internal/logging"
	"github.com/router-for-me/toolgate/internal/reqlog"
	"github.com/router-for-me/toolgate/internal/session"
	"github.com/router-for-me/toolgate/internal/transport"
	"github.com/router-for-me/toolgate/internal/wire"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string
	var showVersion bool
	var injectNote string
	flag.StringVar(&configPath, "config", "toolgate.yaml", "path to the configuration file")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&injectNote, "inject-note", "", "append this note to the last user turn of every intercepted request")
	flag.Parse()

	if showVersion {
		fmt.Printf("toolgate %s (%s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	if wd, err := os.Getwd(); err == nil {
		_ = godotenv.Load(filepath.Join(wd, ".env"))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	ring := logging.NewRingBuffer(0)
	log.AddHook(ring)

	store := session.NewStore(nil)
	recorder := reqlog.NewRecorder(cfg.RequestLog)
	defer func() { _ = recorder.Close() }()

	pipeline := intercept.New(store, nil, recorder, loggingInterceptor(injectNote))
	tr := transport.New(pipeline,
		transport.WithEndpoints(cfg.Endpoints),
		transport.WithSessionHeader(cfg.SessionHeader),
	)
	restore := transport.InstallTransport(tr)
	defer restore()

	stopWatch, err := config.Watch(configPath, func(next *config.Config) {
		tr.SetEndpoints(next.Endpoints)
	})
	if err != nil {
		log.WithError(err).Warn("config watcher unavailable, hot reload disabled")
	} else {
		defer stopWatch()
	}

	if cfg.DebugAPI.Enabled {
		server := api.NewServer(cfg.DebugAPI.Addr, store, ring)
		server.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		}()
	}

	log.WithFields(log.Fields{
		"version":   Version,
		"endpoints": len(cfg.Endpoints),
	}).Info("toolgate installed on default transport")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

// loggingInterceptor reports every intercepted request at debug level and,
// when note is non-empty, appends it to the last user turn.
func loggingInterceptor(note string) intercept.Interceptor {
	return func(_ context.Context, req *intercept.Request) (intercept.Result, error) {
		log.WithFields(req.Descriptor.LogFields(req.Turns, req.URL)).
			WithField("tool_outputs", len(req.ToolOutputs)).
			Debug("intercepted request")

		if note == "" {
			return intercept.Result{Body: req.Body, Modified: false}, nil
		}
		body, ok := wire.InjectIntoLastUserTurn(req.Descriptor, req.Body, note)
		return intercept.Result{Body: body, Modified: ok}, nil
	}
}
