// Package analysis drives the pytest analyzer over a loaded project.
// It registers every module with the host checker, visits fixtures and
// tests in two passes, buffers each node's diagnostics, and re-queues
// nodes whose analysis was deferred.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/loader"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/pytest"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// Options configures the analysis behavior.
type Options struct {
	// Config is the tool configuration. If nil, DefaultConfig() is used.
	Config *config.Config

	// Framework holds the collection patterns and registered markers.
	// If nil, DefaultFramework() is used.
	Framework *config.Framework

	// TestFilter limits test analysis to functions with this name.
	// Fixture definitions are always validated.
	TestFilter string

	// Disable adds codes to those disabled by Config.
	Disable []taxonomy.Code

	// Version is the paramcheck version string to embed in metadata.
	// If empty, defaults to "dev".
	Version string

	// Logger receives progress and warnings. Nil disables logging.
	Logger *log.Logger
}

// kind of a visited function.
type kind int

const (
	kindFunction kind = iota
	kindTest
)

// node is one function the analyzer visits.
type node struct {
	module *checker.Module
	index  int
	fn     *pyast.FuncDef
	site   pytest.Site
	kind   kind
}

func (n node) qualifiedName() string {
	if n.site.Class != nil {
		return n.module.Name + "." + n.site.Class.Name + "." + n.fn.Name
	}
	return n.module.Name + "." + n.fn.Name
}

// analyzer holds the state of one run.
type analyzer struct {
	opts      Options
	checker   *checker.Checker
	env       *pytest.Env
	collector *diag.Collector
	logger    *log.Logger
	tests     int
	warnings  []string
}

// Analyze runs the analysis over every module of project.
func Analyze(ctx context.Context, project *loader.Project, opts Options) (*taxonomy.Result, error) {
	start := time.Now()
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Framework == nil {
		opts.Framework = config.DefaultFramework()
	}

	c, err := checker.New(checker.Options{Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("loading stubs: %w", err)
	}
	disabled := append(opts.Config.DisabledCodes(), opts.Disable...)
	if !opts.Config.Checks.UnknownMarks {
		disabled = append(disabled, taxonomy.UnknownMark)
	}
	if !opts.Config.Checks.ReturnTypes {
		disabled = append(disabled, taxonomy.TestReturnType)
	}
	a := &analyzer{
		opts:    opts,
		checker: c,
		env: pytest.NewEnv(c, pytest.Options{
			FixtureModules: append(append([]string(nil), config.DefaultFixtureModules...), opts.Config.FixtureModules...),
			SkipScopeCheck: !opts.Config.Checks.FixtureScopes,
			SkipTypeCheck:  !opts.Config.Checks.FixtureTypes,
		}),
		collector: diag.NewCollector(disabled...),
		logger:    opts.Logger,
	}

	modules := make([]*checker.Module, 0, len(project.Files))
	for _, f := range project.Files {
		m := c.AddModule(f.Module, f.Package)
		modules = append(modules, m)
		if len(f.Module.SyntaxErrors) > 0 {
			diag.Reporter{Sink: a.collector, File: f.Rel}.Fail(taxonomy.SyntaxError,
				"Syntax error: analysis continues on the partial tree", f.Module.SyntaxErrors[0])
		}
	}

	var nodes []node
	for _, m := range a.analyzedModules(modules) {
		nodes = append(nodes, a.collect(m)...)
	}
	a.info("analyzing project", "root", project.Root, "modules", len(modules), "functions", len(nodes))

	if err := a.run(ctx, nodes); err != nil {
		return nil, err
	}

	diags := a.collector.Diagnostics()
	return &taxonomy.Result{
		Diagnostics: diags,
		Summary:     taxonomy.Summarize(diags),
		Metadata:    a.metadata(start, project),
	}, nil
}

// LoadAndAnalyze is a convenience function that loads the project at
// root and runs analysis with the given options.
func LoadAndAnalyze(ctx context.Context, root string, cache *loader.Cache, opts Options) (*taxonomy.Result, error) {
	project, err := loader.Load(ctx, root, loader.Options{Config: opts.Config, Cache: cache, Logger: opts.Logger})
	if err != nil {
		return nil, err
	}
	return Analyze(ctx, project, opts)
}

// analyzedModules selects test modules, conftest modules, and the
// plugin modules those name in pytest_plugins.
func (a *analyzer) analyzedModules(modules []*checker.Module) []*checker.Module {
	selected := map[string]bool{}
	var out []*checker.Module
	add := func(m *checker.Module) {
		if m != nil && !m.Stub && !selected[m.Name] {
			selected[m.Name] = true
			out = append(out, m)
		}
	}
	for _, m := range modules {
		if a.opts.Framework.IsTestModule(m.Path) || config.IsConftest(m.Path) {
			add(m)
		}
	}
	for _, m := range append([]*checker.Module(nil), out...) {
		for _, name := range pytest.PytestPlugins(m) {
			add(a.checker.Module(name))
		}
	}
	return out
}

// collect lists the functions of m in statement order: top-level
// functions, then methods of test classes at the class's index.
func (a *analyzer) collect(m *checker.Module) []node {
	testModule := a.opts.Framework.IsTestModule(m.Path)
	var out []node
	for i, st := range m.AST.Body {
		switch st := st.(type) {
		case *pyast.FuncDef:
			k := kindFunction
			if testModule && a.opts.Framework.IsTestFunction(st.Name) {
				k = kindTest
			}
			out = append(out, node{module: m, index: i, fn: st, site: pytest.Site{Module: m}, kind: k})
		case *pyast.ClassDef:
			if !testModule || !a.opts.Framework.IsTestClass(st.Name) {
				continue
			}
			for _, inner := range st.Body {
				fn, ok := inner.(*pyast.FuncDef)
				if !ok {
					continue
				}
				k := kindFunction
				if a.opts.Framework.IsTestFunction(fn.Name) {
					k = kindTest
				}
				out = append(out, node{module: m, index: i, fn: fn, site: pytest.Site{Module: m, Class: st}, kind: k})
			}
		}
	}
	return out
}

// run visits nodes in a speculative pass, then re-visits the deferred
// ones in the final pass.
func (a *analyzer) run(ctx context.Context, nodes []node) error {
	a.checker.SetFinalPass(false)
	var deferred []node
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := a.visit(n)
		if err != nil {
			return err
		}
		if !ok {
			deferred = append(deferred, n)
		}
	}

	if len(deferred) > 0 {
		a.info("re-running deferred nodes", "count", len(deferred))
	}
	a.checker.SetFinalPass(true)
	for _, n := range deferred {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := a.visit(n)
		if err != nil {
			return err
		}
		if !ok {
			msg := fmt.Sprintf("%s: analysis still deferred in the final pass", n.qualifiedName())
			a.warnings = append(a.warnings, msg)
			if a.logger != nil {
				a.logger.Warn("giving up on deferred node", "node", n.qualifiedName(), "file", n.module.Path)
			}
		}
	}
	return nil
}

// visit runs the callbacks for n against a fresh buffer. It returns
// false when the node was deferred; the buffer is then discarded.
func (a *analyzer) visit(n node) (bool, error) {
	a.checker.Enter(n.module.Name, n.index)
	var buf diag.Buffer
	rep := diag.Reporter{Sink: &buf, File: n.module.Path, Test: n.qualifiedName()}

	err := a.check(n, rep)
	var deferral *pytest.DeferralError
	if errors.As(err, &deferral) {
		if a.logger != nil {
			a.logger.Debug("deferred", "node", n.qualifiedName(), "reason", deferral.Reason)
		}
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("analyzing %s: %w", n.qualifiedName(), err)
	}
	buf.FlushTo(a.collector)
	return true, nil
}

func (a *analyzer) check(n node, rep diag.Reporter) error {
	fx, err := a.env.CheckFixture(n.fn, n.site, rep)
	if err != nil {
		return err
	}
	if err := a.checkMarks(n, rep); err != nil {
		return err
	}
	if fx != nil || n.kind != kindTest {
		return nil
	}
	if a.opts.TestFilter != "" && n.fn.Name != a.opts.TestFilter {
		return nil
	}
	if _, err := a.env.CheckTest(n.fn, n.site, rep); err != nil {
		return err
	}
	if err := a.checkReturnType(n, rep); err != nil {
		return err
	}
	a.tests++
	return nil
}

func (a *analyzer) info(msg string, keyvals ...any) {
	if a.logger != nil {
		a.logger.Info(msg, keyvals...)
	}
}

func (a *analyzer) metadata(start time.Time, project *loader.Project) taxonomy.Metadata {
	version := a.opts.Version
	if version == "" {
		version = "dev"
	}
	return taxonomy.Metadata{
		RunID:         taxonomy.NewRunID(),
		Version:       version,
		Root:          project.Root,
		FilesAnalyzed: len(project.Files),
		TestsAnalyzed: a.tests,
		Timestamp:     start,
		Duration:      time.Since(start),
		Warnings:      a.warnings,
	}
}
