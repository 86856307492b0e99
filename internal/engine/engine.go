package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/emit"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/registry"
	"github.com/roach88/solpm/internal/store"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultParallelism  = 4
	DefaultFetchTimeout = 30 * time.Second
	DefaultIDLDir       = "./program/idl"
	DefaultClientDir    = "./program/client"
)

// Fetcher returns the interface document of one program version. version
// may be "latest". A missing program must be reported with an error that
// wraps registry.ErrNotFound.
//
// Implemented by registry.Client, registry.Dir and registry.Memory.
type Fetcher interface {
	Fetch(ctx context.Context, name, version string, network ir.Network) ([]byte, error)
}

// Journal records finished runs. Implemented by *store.Store.
type Journal interface {
	RecordRun(ctx context.Context, run store.Run) error
}

// Config is the engine configuration. Relative paths are resolved against
// ProjectRoot.
type Config struct {
	// Network is used by AddDependency when the request names none.
	Network      ir.Network
	ProjectRoot  string
	IDLDir       string
	ClientDir    string
	Parallelism  int
	FetchTimeout time.Duration
	// ModulePath is the Go module path of the project. When set, generated
	// packages carry an import comment below it.
	ModulePath   string
}

func (c Config) withDefaults() Config {
	if c.Network == "" {
		c.Network = ir.Devnet
	}
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if c.IDLDir == "" {
		c.IDLDir = DefaultIDLDir
	}
	if c.ClientDir == "" {
		c.ClientDir = DefaultClientDir
	}
	if c.Parallelism <= 0 {
		c.Parallelism = DefaultParallelism
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	return c
}

// DocumentPath returns the default cache path of a dependency's document,
// as recorded in the manifest: "./program/idl/<name>.json" by default.
func (c Config) DocumentPath(name string) string {
	dir := filepath.ToSlash(c.withDefaults().IDLDir)
	p := path.Join(dir, name+".json")
	if strings.HasPrefix(dir, "./") {
		p = "./" + p
	}
	return p
}

// Engine reconciles a project's manifest with its cached documents and
// generated clients.
//
// Thread-safety: an Engine may be shared, but concurrent operations on the
// same project serialize on the manifest lock only at their final save.
type Engine struct {
	cfg       Config
	fetcher   Fetcher
	manifests *manifest.Store
	journal   Journal
	runIDs    RunIDGenerator
	clock     Clock
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithClock sets the clock for journal timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(cfg Config, fetcher Fetcher, manifests *manifest.Store, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg.withDefaults(),
		fetcher:   fetcher,
		manifests: manifests,
		runIDs:    UUIDv7Generator{},
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Options controls a reconciliation.
type Options struct {
	GenerateCode bool
	Group        manifest.GroupSelector
}

// AddRequest names a dependency to add.
type AddRequest struct {
	Name string
	// Version is a semantic version or "latest" (also when empty).
	Version string
	// Network defaults to Config.Network.
	Network ir.Network
	Group   manifest.Group
	// DocumentPath overrides the default cache path.
	DocumentPath string
}

// job is one dependency to run through the pipeline.
type job struct {
	group   manifest.Group
	name    string
	version string
	network ir.Network
	docPath string
	// current is the manifest record being reconciled, nil when adding.
	current *manifest.Record
	// collision is set when another job of the same operation would
	// generate the same client package.
	collision error
}

// fetchFunc obtains the document of a job.
type fetchFunc func(ctx context.Context, j job) ([]byte, error)

type result struct {
	entry   Entry
	machine *machine
	// record is set when the dependency is ready to be written to the
	// manifest.
	record *manifest.Record
	// client is the generated package, written once the record is saved.
	client *emit.Module
}

// Reconcile installs every dependency of the selected groups. A manifest
// that cannot be loaded fails the whole operation; any other failure is
// confined to its dependency's report entry.
func (e *Engine) Reconcile(ctx context.Context, opts Options) (*Report, error) {
	m, err := e.manifests.Load()
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, g := range opts.Group.Groups() {
		for _, name := range m.Names(g) {
			rec, _ := m.Get(g, name)
			docPath := rec.DocumentPath
			if docPath == "" {
				docPath = e.cfg.DocumentPath(name)
			}
			jobs = append(jobs, job{
				group:   g,
				name:    name,
				version: rec.Version,
				network: rec.Network,
				docPath: docPath,
				current: &rec,
			})
		}
	}

	r := e.begin("install")
	r.Entries = e.run(ctx, jobs, e.fetchRegistry, opts.GenerateCode, true)
	e.finish(ctx, r, opts)
	return r, nil
}

// AddDependency fetches one dependency and records it in the manifest. A
// name already present in the group is Skipped without fetching.
func (e *Engine) AddDependency(ctx context.Context, req AddRequest, opts Options) (*Report, error) {
	if err := checkName(req.Name); err != nil {
		return nil, err
	}
	m, err := e.manifests.LoadOrNew()
	if err != nil {
		return nil, err
	}
	opts.Group = selectorFor(req.Group)

	r := e.begin("add")
	if _, ok := m.Get(req.Group, req.Name); ok {
		e.logger.Info("dependency already present", "dependency", req.Name, "group", req.Group.String())
		r.Entries = []Entry{{Name: req.Name, Group: req.Group, Outcome: Skipped{Reason: "already present"}}}
		e.finish(ctx, r, opts)
		return r, nil
	}

	j := job{
		group:   req.Group,
		name:    req.Name,
		version: req.Version,
		network: req.Network,
		docPath: req.DocumentPath,
	}
	if registry.IsLatest(j.version) {
		j.version = registry.Latest
	}
	if j.network == "" {
		j.network = e.cfg.Network
	}
	if j.docPath == "" {
		j.docPath = e.cfg.DocumentPath(req.Name)
	}

	r.Entries = e.run(ctx, []job{j}, e.fetchRegistry, opts.GenerateCode, true)
	e.finish(ctx, r, opts)
	return r, nil
}

// Generate regenerates clients from the cached documents of the selected
// dependencies without fetching. An empty names list selects every
// dependency of the groups. The manifest is not modified.
func (e *Engine) Generate(ctx context.Context, names []string, group manifest.GroupSelector) (*Report, error) {
	m, err := e.manifests.Load()
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = false
	}

	var jobs []job
	for _, g := range group.Groups() {
		for _, name := range m.Names(g) {
			if _, ok := wanted[name]; len(names) > 0 && !ok {
				continue
			}
			wanted[name] = true
			rec, _ := m.Get(g, name)
			docPath := rec.DocumentPath
			if docPath == "" {
				docPath = e.cfg.DocumentPath(name)
			}
			jobs = append(jobs, job{group: g, name: name, version: rec.Version, network: rec.Network, docPath: docPath, current: &rec})
		}
	}
	for _, n := range names {
		if !wanted[n] {
			return nil, fmt.Errorf("%w: %s is not in the %s groups", ErrUnknownDependency, n, group)
		}
	}

	r := e.begin("codegen")
	r.Entries = e.run(ctx, jobs, e.fetchCache, true, false)
	e.finish(ctx, r, Options{GenerateCode: true, Group: group})
	return r, nil
}

func (e *Engine) begin(op string) *Report {
	return &Report{RunID: e.runIDs.Generate(), Operation: op, StartedAt: e.clock.Now()}
}

// finish stamps the report and appends it to the journal. Journal failures
// are logged and otherwise ignored.
func (e *Engine) finish(ctx context.Context, r *Report, opts Options) {
	r.FinishedAt = e.clock.Now()
	installed, skipped, failed := r.Counts()
	e.logger.Info("reconciliation finished",
		"run_id", r.RunID,
		"operation", r.Operation,
		"installed", installed,
		"skipped", skipped,
		"failed", failed,
	)
	if e.journal == nil {
		return
	}
	if err := e.journal.RecordRun(ctx, r.journalRun(opts.Group, opts.GenerateCode)); err != nil {
		e.logger.Warn("journal write failed", "run_id", r.RunID, "error", err)
	}
}

// run processes jobs with bounded parallelism, then commits the records
// of every successful dependency in one manifest update. Entries come
// back in job order.
func (e *Engine) run(ctx context.Context, jobs []job, fetch fetchFunc, generateCode, persist bool) []Entry {
	results := make([]result, len(jobs))
	if generateCode {
		markCollisions(jobs)
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Parallelism)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = e.process(ctx, j, fetch, generateCode, persist)
			return nil
		})
	}
	_ = g.Wait() // pipelines report through results, never through the group

	if persist {
		e.commit(ctx, results)
	} else {
		for i := range results {
			if results[i].record != nil {
				e.installed(&results[i])
			}
		}
	}

	entries := make([]Entry, len(results))
	for i, res := range results {
		entries[i] = res.entry
	}
	return entries
}

// commit writes every pending record under the manifest lock. Nothing is
// reported Installed unless the save succeeded.
func (e *Engine) commit(ctx context.Context, results []result) {
	var pending []int
	for i, res := range results {
		if res.record != nil {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	err := e.manifests.Update(ctx, func(m *manifest.Manifest) error {
		target := map[manifest.Group]map[string]manifest.Record{}
		for _, i := range pending {
			res := results[i]
			g := res.entry.Group
			if target[g] == nil {
				target[g] = m.Clone().Group(g)
			}
			target[g][res.entry.Name] = *res.record
		}
		changes := m.Diff(target)
		for _, c := range changes {
			if c.Kind != manifest.Unchanged {
				e.logger.Info("manifest change",
					"change", c.Kind.String(),
					"group", c.Group.String(),
					"dependency", c.Name,
					"version", c.New.Version,
				)
			}
		}
		m.Apply(changes)
		return nil
	})

	for _, i := range pending {
		res := &results[i]
		if err != nil {
			e.fail(res, err)
			continue
		}
		e.installed(res)
	}
}

// installed writes the generated client, if any, and completes the
// dependency. It runs only after the record is saved, so a failed manifest
// save leaves existing clients untouched.
func (e *Engine) installed(res *result) {
	if res.client != nil {
		p, err := res.client.WriteTo(e.abs(e.cfg.ClientDir))
		if err != nil {
			e.fail(res, err)
			return
		}
		out := res.entry.Outcome.(Installed)
		out.ClientPath = e.rel(p)
		res.entry.Outcome = out
	}
	if err := res.machine.to(StateInstalled); err != nil {
		e.fail(res, err)
	}
}

func (e *Engine) fail(res *result, err error) {
	if terr := res.machine.to(StateFailed); terr != nil {
		err = errors.Join(err, terr)
	}
	e.logger.Warn("dependency failed",
		"dependency", res.entry.Name,
		"group", res.entry.Group.String(),
		"error", err,
	)
	res.entry.Outcome = Failed{Err: err}
	res.record = nil
}

// process runs one dependency up to the point where its record can be
// committed. It never returns an error: failures end up in the entry.
func (e *Engine) process(ctx context.Context, j job, fetch fetchFunc, generateCode, persist bool) result {
	res := result{
		entry:   Entry{Name: j.name, Group: j.group},
		machine: newMachine(j.name, j.group, e.logger),
	}
	m := res.machine

	step := func(next State) bool {
		if err := m.to(next); err != nil {
			e.fail(&res, err)
			return false
		}
		return true
	}
	invalid := func(err error) result {
		if step(Invalid) {
			e.logger.Warn("dependency invalid", "dependency", j.name, "group", j.group.String(), "error", err)
			res.entry.Outcome = Failed{Err: err}
		}
		return res
	}

	if j.collision != nil {
		e.fail(&res, j.collision)
		return res
	}
	if !step(Fetching) {
		return res
	}
	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	data, err := fetch(fctx, j)
	cancel()
	if err != nil {
		e.fail(&res, classifyFetch(j, err))
		return res
	}

	if !step(Validating) {
		return res
	}
	v, err := compiler.Load(data, compiler.CompileOptions{Filename: j.name + ".json", Name: j.name, Network: j.network})
	if err != nil {
		return invalid(err)
	}
	id := v.Program().Identity
	if !registry.IsLatest(j.version) && id.Version != j.version {
		return invalid(&FetchError{
			Kind:    NotFound,
			Name:    j.name,
			Version: j.version,
			Network: j.network,
			Err:     fmt.Errorf("%w: document is version %s", ErrVersionMismatch, id.Version),
		})
	}
	if !step(Valid) {
		return res
	}

	var mod *emit.Module
	if generateCode {
		if !step(Generating) {
			return res
		}
		pkg := emit.PackageName(j.name)
		mod, err = emit.Emit(v, emit.Options{Package: pkg, ImportPath: e.importPath(pkg), Logger: e.logger})
		if err != nil {
			e.fail(&res, err)
			return res
		}
		res.entry.Warnings = mod.Warnings
	}

	if persist {
		if err := e.writeDocument(j.docPath, data); err != nil {
			e.fail(&res, err)
			return res
		}
	}
	rec := e.record(j, id)
	res.record = &rec
	res.client = mod
	res.entry.Outcome = Installed{Version: rec.Version, Path: rec.DocumentPath}
	return res
}

// record builds the manifest record of a valid dependency. A reconciled
// record keeps its pinned fields and only gains a document path; an added
// one takes version and address from the document.
func (e *Engine) record(j job, id ir.Identity) manifest.Record {
	if j.current == nil {
		return manifest.Record{Version: id.Version, Address: id.Address, Network: j.network, DocumentPath: j.docPath}
	}
	rec := *j.current
	if rec.DocumentPath == "" {
		rec.DocumentPath = j.docPath
	}
	if id.Address != "" && rec.Address != id.Address {
		e.logger.Warn("document address differs from manifest",
			"dependency", j.name,
			"manifest", rec.Address,
			"document", id.Address,
		)
	}
	return rec
}

// writeDocument caches the fetched bytes unchanged, so the cached file has
// the digest the client was generated from.
func (e *Engine) writeDocument(docPath string, data []byte) error {
	p := e.abs(docPath)
	if existing, err := os.ReadFile(p); err == nil && bytes.Equal(existing, data) {
		return nil
	}
	if err := manifest.WriteFileAtomic(p, data); err != nil {
		return fmt.Errorf("write document %s: %w", docPath, err)
	}
	return nil
}

// importPath returns the import path of a generated package, or "" when
// no module path is configured or the client directory is outside the
// project.
func (e *Engine) importPath(pkg string) string {
	if e.cfg.ModulePath == "" {
		return ""
	}
	dir := e.rel(e.abs(e.cfg.ClientDir))
	if dir == ".." || strings.HasPrefix(dir, "../") || filepath.IsAbs(dir) {
		return ""
	}
	return path.Join(e.cfg.ModulePath, dir, pkg)
}

func (e *Engine) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.cfg.ProjectRoot, filepath.FromSlash(p))
}

func (e *Engine) rel(p string) string {
	r, err := filepath.Rel(e.cfg.ProjectRoot, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}

func (e *Engine) fetchRegistry(ctx context.Context, j job) ([]byte, error) {
	return e.fetcher.Fetch(ctx, j.name, j.version, j.network)
}

// fetchCache reads the document from its cache path. A missing file is
// reported as a registry miss so it classifies as NotFound.
func (e *Engine) fetchCache(_ context.Context, j job) ([]byte, error) {
	data, err := os.ReadFile(e.abs(j.docPath))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no cached document at %s", registry.ErrNotFound, j.docPath)
	}
	return data, err
}

// markCollisions fails every job whose client package name is shared with
// another job, since their generated files would overwrite each other.
func markCollisions(jobs []job) {
	byPackage := make(map[string][]int)
	for i, j := range jobs {
		pkg := emit.PackageName(j.name)
		byPackage[pkg] = append(byPackage[pkg], i)
	}
	for pkg, idx := range byPackage {
		if len(idx) < 2 {
			continue
		}
		names := make([]string, len(idx))
		for k, i := range idx {
			names[k] = jobs[i].group.String() + "/" + jobs[i].name
		}
		err := fmt.Errorf("%w: %s all generate package %s", ErrPackageCollision, strings.Join(names, ", "), pkg)
		for _, i := range idx {
			jobs[i].collision = err
		}
	}
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\@`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func selectorFor(g manifest.Group) manifest.GroupSelector {
	if g == manifest.Development {
		return manifest.SelectDevelopment
	}
	return manifest.SelectRegular
}
