package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"steamswitch/internal/core"
	"steamswitch/internal/identity"
	"steamswitch/internal/logging"
	"steamswitch/internal/model"
	"steamswitch/internal/platform"
	"steamswitch/internal/process"
	"steamswitch/internal/secrets"
	"steamswitch/internal/server"
	"steamswitch/internal/steamweb"
	"steamswitch/internal/store"
)

type daemonController struct {
	mu              sync.Mutex
	addr            string
	preferencesPath string
	logPath         string
	httpServer      *http.Server
	shuttingDown    bool
	done            chan struct{}
}

func newDaemonController(addr, preferencesPath, logPath string, srv *http.Server) *daemonController {
	return &daemonController{
		addr:            addr,
		preferencesPath: preferencesPath,
		logPath:         logPath,
		httpServer:      srv,
		done:            make(chan struct{}),
	}
}

func (d *daemonController) Info() server.DaemonInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return server.DaemonInfo{
		PID:             os.Getpid(),
		Addr:            d.addr,
		PreferencesPath: d.preferencesPath,
		LogPath:         d.logPath,
	}
}

func (d *daemonController) Shutdown() error {
	d.mu.Lock()
	if d.shuttingDown {
		d.mu.Unlock()
		return nil
	}
	d.shuttingDown = true
	srv := d.httpServer
	d.mu.Unlock()

	go func() {
		// Let the shutdown response reach the caller first.
		time.Sleep(150 * time.Millisecond)
		defer close(d.done)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.ErrorLogger.Printf("http shutdown: %v", err)
		}
	}()
	return nil
}

func main() {
	addr := flag.String("addr", "127.0.0.1:7777", "listen address")
	logFile := flag.String("log-file", "", "log file path (default: user cache dir)")
	flag.Parse()

	logPath := *logFile
	if logPath == "" {
		p, err := platform.LogPath()
		if err != nil {
			logging.ErrorLogger.Fatalf("resolve log path: %v", err)
		}
		logPath = p
	}
	closer, err := logging.InitLoggingWithPath(logPath)
	if err != nil {
		logging.ErrorLogger.Fatalf("init logging: %v", err)
	}
	defer closer.Close()

	prefs, err := store.NewPreferencesStore()
	if err != nil {
		logging.ErrorLogger.Fatalf("init preferences store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := prefs.Watch(ctx, func(p model.Preferences) {
		logging.InfoLogger.Printf("preferences reloaded from %s", prefs.Path())
	}); err != nil {
		logging.ErrorLogger.Printf("watch preferences: %v", err)
	}
	defer prefs.StopWatch()

	manager := core.NewManager(
		prefs,
		identity.NewDefaultStore(),
		process.NewDefaultController(),
		steamweb.NewClient(nil),
		core.WithFolderOpener(platform.OpenFolder),
		core.WithSecretStore(secrets.NewDefaultStore()),
	)

	httpServer := &http.Server{
		Addr:              *addr,
		ReadHeaderTimeout: 5 * time.Second,
	}
	daemonCtl := newDaemonController(*addr, prefs.Path(), logPath, httpServer)
	httpServer.Handler = server.New(manager, daemonCtl).Handler()

	go func() {
		<-ctx.Done()
		_ = daemonCtl.Shutdown()
	}()

	logging.InfoLogger.Printf("steamswitchd listening on http://%s", *addr)
	fmt.Printf("preferences file: %s\n", prefs.Path())
	fmt.Printf("log file: %s\n", logPath)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.ErrorLogger.Fatal(err)
	}
	// ListenAndServe returns as soon as Shutdown starts.
	<-daemonCtl.done
}
