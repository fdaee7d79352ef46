// Command moobase is the object-store daemon and CLI: the teacher's
// own cmd/bd root-command wiring (config load, logger construction,
// store bundle assembly, serve loop) adapted from the beads issue
// tracker to moobase's five-partition object store.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/untoldecay/moobase/internal/audit"
	"github.com/untoldecay/moobase/internal/change"
	"github.com/untoldecay/moobase/internal/clone"
	"github.com/untoldecay/moobase/internal/config"
	"github.com/untoldecay/moobase/internal/index"
	"github.com/untoldecay/moobase/internal/kv"
	"github.com/untoldecay/moobase/internal/logx"
	"github.com/untoldecay/moobase/internal/objects"
	"github.com/untoldecay/moobase/internal/ops"
	"github.com/untoldecay/moobase/internal/refs"
	"github.com/untoldecay/moobase/internal/users"
	"github.com/untoldecay/moobase/internal/workspace"
)

// app bundles everything a subcommand needs: the wired Providers, the
// operation registry, and the stores a command may want directly
// (Users, for user/create-equivalent CLI sugar).
type app struct {
	db        *kv.DB
	log       *logx.Logger
	registry  *ops.Registry
	providers *ops.Providers
	users     *users.Store
}

// openApp loads config, opens the data directory, and wires every
// store into a Providers bundle. Callers must call close() when done.
func openApp() (*app, error) {
	if err := config.Initialize(); err != nil {
		return nil, err
	}

	home := config.GetString("home")
	logPath := config.GetString("log.path")
	level := logx.ParseLevel(config.GetString("log.level"))
	log := logx.New(logPath, level)

	dbPath := filepath.Join(home, "moobase.db")
	db, err := kv.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open data directory: %w", err)
	}

	objs := objects.New(db)
	rfs := refs.New(db)
	idx := index.New(db)
	ws := workspace.New(db)
	chg := change.New(idx, ws)
	usr, err := users.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open users partition: %w", err)
	}
	cl := clone.New(rfs, objs, idx)

	var aud *audit.Log
	if auditPath := filepath.Join(home, "audit.db"); auditPath != "" {
		aud, err = audit.Open(auditPath)
		if err != nil {
			log.Warn("audit trail unavailable, admin actions will not be recorded", "err", err)
			aud = nil
		}
	}

	remoteURL := config.GetString("clone.remote_url")
	providers := ops.New(objs, rfs, idx, ws, chg, usr, cl, remoteURL, log, aud)

	return &app{
		db:        db,
		log:       log,
		registry:  ops.NewRegistry(),
		providers: providers,
		users:     usr,
	}, nil
}

func (a *app) close() error {
	return a.db.Close()
}
