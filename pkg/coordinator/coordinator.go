package coordinator

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"gitlab.com/tinyland/lab/ikup/pkg/config"
	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
	"gitlab.com/tinyland/lab/ikup/pkg/terminal"
	"gitlab.com/tinyland/lab/ikup/pkg/transcode"
)

// Coordinator is the top-level image-instance coordinator: it owns one id
// database handle and one transcode cache, scoped to the calling process's
// terminal identity, and exposes the assign/upload/display/fix/reupload/
// dirty/forget/list operations built on top of them.
type Coordinator struct {
	cfg      *config.Config
	db       *iddb.DB
	dbPath   string
	cache    *transcode.Cache
	encoder  transcode.Encoder
	identity terminal.Identity
	logger   *slog.Logger
}

// New opens the id database and transcode cache named by cfg and the calling
// process's resolved terminal identity. Callers must call Close when done.
func New(cfg *config.Config, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	identity := terminal.ResolveIdentity()

	space, err := cfg.IDDatabase.Space()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArg, err)
	}

	dbPath := filepath.Join(cfg.IDDatabase.Dir, fmt.Sprintf("%s-%s.db", identity.DBName(), space))
	db, err := iddb.Open(dbPath, iddb.Config{
		BusyTimeout: cfg.IDDatabase.BusyTimeout.Duration,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open id database: %v", ErrIO, err)
	}

	cache, err := transcode.Open(transcode.Config{
		Dir:        cfg.Cache.Dir,
		MaxBytes:   cfg.Cache.MaxBytes,
		MaxEntries: cfg.Cache.MaxEntries,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: open transcode cache: %v", ErrIO, err)
	}

	logger.Debug("coordinator opened", "terminal", identity.Name, "db", dbPath, "cache_dir", cfg.Cache.Dir)

	return &Coordinator{
		cfg:      cfg,
		db:       db,
		dbPath:   dbPath,
		cache:    cache,
		encoder:  transcode.DefaultEncoder{},
		identity: identity,
		logger:   logger,
	}, nil
}

// Close releases the id database handle. The transcode cache holds no open
// file handles between calls and needs no explicit close.
func (c *Coordinator) Close() error {
	return c.db.Close()
}

// Identity returns the terminal identity this coordinator instance resolved
// at construction.
func (c *Coordinator) Identity() terminal.Identity {
	return c.identity
}

// terminalKey is the upload_status table's terminal_id value for this
// process: the id database file is already scoped to one terminal identity,
// so this just needs to be stable, not globally unique.
func (c *Coordinator) terminalKey() string {
	return c.identity.DBName()
}
