package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/untoldecay/moobase/internal/config"
	"github.com/untoldecay/moobase/internal/httpapi"
	"github.com/untoldecay/moobase/internal/rpc"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP boundary and worker channel until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.close()

			watchConfig(a)

			socketPath := config.GetString("socket.path")
			if socketPath == "" {
				socketPath = rpc.DefaultSocketPath(config.GetString("home"))
			}
			rpcServer := rpc.NewServer(socketPath, a.registry, a.providers, a.users, a.log)
			if err := rpcServer.Start(); err != nil {
				return err
			}
			defer rpcServer.Stop()
			a.log.Info("worker channel listening", "socket", socketPath)

			httpServer := &http.Server{
				Addr:    config.GetString("http.addr"),
				Handler: httpapi.New(a.registry, a.providers, a.users, a.log).Handler(),
			}
			go func() {
				a.log.Info("http boundary listening", "addr", httpServer.Addr)
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					a.log.Error("http server stopped", "err", err)
				}
			}()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			a.log.Info("shutting down")
			return httpServer.Shutdown(context.Background())
		},
	}
}

// watchConfig arms an fsnotify watch on the loaded config file so
// log.level and socket.path changes take effect without a restart,
// the way a hot-reloadable config file should (§9 ambient config).
func watchConfig(a *app) {
	path := config.Path()
	if path == "" {
		return
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.log.Warn("config watch disabled", "err", err)
		return
	}
	if err := watcher.Add(path); err != nil {
		a.log.Warn("config watch disabled", "err", err)
		watcher.Close()
		return
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := config.Reload(path); err != nil {
						a.log.Warn("config reload failed", "err", err)
					} else {
						a.log.Info("config reloaded", "path", path)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				a.log.Warn("config watch error", "err", err)
			}
		}
	}()
}
