// Package pytest is the parametrization and fixture analyzer. For one
// test function it builds the graph of names the test needs, resolves
// each to a parametrization or a fixture, and checks argname coverage,
// fixture scopes and value types against the test's signature.
package pytest

import (
	"errors"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// Full names of the framework types the analyzer recognizes.
const (
	fixtureMarkerType     = "_pytest.fixtures.FixtureFunctionMarker"
	parametrizeMarkerType = "_pytest.mark.structures._ParametrizeMarkDecorator"
	usefixturesMarkerType = "_pytest.mark.structures._UsefixturesMarkDecorator"
	parameterSetType      = "_pytest.mark.structures.ParameterSet"
	paramFunction         = "_pytest.mark.structures.param"
)

// requestName is the framework's special fixture name. It is always
// available and can never be parametrized.
const requestName = "request"

// Options tunes the analysis.
type Options struct {
	// FixtureModules are the default fixture modules contributed by
	// plugins, searched after the conftest chain.
	FixtureModules []string

	// SkipScopeCheck disables inverted-fixture-scope.
	SkipScopeCheck bool

	// SkipTypeCheck disables fixture-arg-type.
	SkipTypeCheck bool
}

// Site is where a test or fixture is defined: a module and, for
// methods, the enclosing class.
type Site struct {
	Module *checker.Module
	Class  *pyast.ClassDef
}

// Context returns the checker context for code at the site.
func (s Site) Context(c *checker.Checker) checker.Context {
	ctx := checker.ModuleContext(s.Module)
	if s.Class != nil {
		ctx.Class = c.ClassScope(s.Module, s.Class)
	}
	return ctx
}

// File returns the path of the site's module.
func (s Site) File() string {
	return s.Module.Path
}

// Env bundles what every component needs during one callback.
type Env struct {
	Checker  *checker.Checker
	Fixtures *FixtureManager
	Options  Options
}

// NewEnv creates an environment whose fixture manager searches
// opts.FixtureModules after the conftest chain.
func NewEnv(c *checker.Checker, opts Options) *Env {
	return &Env{
		Checker:  c,
		Fixtures: NewFixtureManager(c, opts.FixtureModules),
		Options:  opts,
	}
}

// typeOf evaluates e, turning a not-ready answer into a deferral.
func (e *Env) typeOf(ctx checker.Context, expr pyast.Expr, reason DeferralReason) (types.Type, error) {
	t, err := e.Checker.TypeOf(ctx, expr)
	if err != nil {
		return nil, asDeferral(err, reason)
	}
	return t, nil
}

// DeferralReason says why analysis of a node was postponed.
type DeferralReason int

// Deferral reasons.
const (
	// RequiredWait means the analysis cannot proceed without the type.
	RequiredWait DeferralReason = iota
	// SpeculativeWait means the analysis could proceed but might be
	// wrong without more of the module analyzed.
	SpeculativeWait
)

func (r DeferralReason) String() string {
	if r == SpeculativeWait {
		return "speculative-wait"
	}
	return "required-wait"
}

// DeferralError asks the caller to re-run the callback for the node
// once more of the module has been analyzed.
type DeferralError struct {
	Reason DeferralReason
}

func (e *DeferralError) Error() string {
	return "analysis deferred (" + e.Reason.String() + ")"
}

// asDeferral converts checker.ErrNotReady into a DeferralError. An
// existing deferral keeps its innermost reason.
func asDeferral(err error, reason DeferralReason) error {
	if err == nil {
		return nil
	}
	var d *DeferralError
	if errors.As(err, &d) {
		return err
	}
	if errors.Is(err, checker.ErrNotReady) {
		return &DeferralError{Reason: reason}
	}
	return err
}
