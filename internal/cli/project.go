package cli

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/config"
	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/registry"
	"github.com/roach88/solpm/internal/store"
)

// project is the resolved environment of one command invocation.
type project struct {
	root       string
	cfg        *config.Config
	configFile string
	logger     *slog.Logger
	manifests  *manifest.Store
}

// project resolves the project root and loads its configuration.
// Failures are command errors.
func (o *RootOptions) project(cmd *cobra.Command, f *OutputFormatter) (*project, error) {
	root := o.Dir
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeNotFound, "resolve project directory", err)
	}

	cfg, path, err := config.Load(config.LoadOptions{ConfigFile: o.ConfigFile, Dir: root})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "load configuration", err)
	}
	if path != "" {
		f.VerboseLog("Using config %s", path)
	}

	return &project{
		root:       root,
		cfg:        cfg,
		configFile: path,
		logger:     o.logger(cmd),
		manifests:  manifest.NewStore(cfg.ManifestFile(root)),
	}, nil
}

// logger returns the slog logger for library code. It writes through a
// charm log handler to stderr; --verbose lowers the level to debug.
func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	level := log.InfoLevel
	if o.Verbose {
		level = log.DebugLevel
	}
	handler := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix:          "solpm",
		Level:           level,
		ReportTimestamp: o.Verbose,
	})
	return slog.New(handler)
}

// fetcher returns the document source. A registry_url of the form
// file:///path reads a local registry directory.
func (p *project) fetcher(o *RootOptions) engine.Fetcher {
	if o.Fetcher != nil {
		return o.Fetcher
	}
	if dir, ok := strings.CutPrefix(p.cfg.RegistryURL, "file://"); ok {
		return registry.Dir{Root: dir}
	}
	opts := []registry.ClientOption{
		registry.WithBaseURL(p.cfg.RegistryURL),
		registry.WithUserAgent("solpm/" + Version),
	}
	if hash, err := registry.ProjectHash(p.root); err == nil {
		opts = append(opts, registry.WithProjectHash(hash))
	}
	return registry.NewClient(opts...)
}

// engine builds the reconciliation engine. The journal is optional: when it
// cannot be opened the run proceeds without history. The returned function
// closes the journal.
func (p *project) engine(o *RootOptions) (*engine.Engine, func()) {
	opts := []engine.Option{engine.WithLogger(p.logger)}
	closeFn := func() {}

	if path := p.cfg.JournalFile(p.root); path != "" {
		j, err := store.Open(path)
		if err != nil {
			p.logger.Warn("journal unavailable", "path", path, "error", err)
		} else {
			opts = append(opts, engine.WithJournal(j))
			closeFn = func() {
				if err := j.Close(); err != nil {
					p.logger.Warn("journal close failed", "error", err)
				}
			}
		}
	}

	return engine.New(p.cfg.Engine(p.root), p.fetcher(o), p.manifests, opts...), closeFn
}
