package pytest

import (
	"fmt"

	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

// TestInfo holds what one test's analysis learns about it.
type TestInfo struct {
	Fn        *pyast.FuncDef
	Site      Site
	Arguments []TestArgument
	Graph     *RequestGraph

	decorators []*DecoratorWrapper
	usefixture []UseFixture
}

// CheckTest analyzes test function fn defined at site and reports every
// problem to rep. A *DeferralError means the test must be analyzed
// again later; whatever was reported before it should be discarded.
func (e *Env) CheckTest(fn *pyast.FuncDef, site Site, rep diag.Reporter) (*TestInfo, error) {
	rep = rep.WithFile(site.File())
	ctx := site.Context(e.Checker)
	info := &TestInfo{Fn: fn, Site: site}
	info.Arguments = e.TestArguments(fn, site, rep)

	for _, d := range fn.Decorators {
		w, err := e.ParametrizeDecorator(ctx, d)
		if err != nil {
			return nil, err
		}
		if w != nil {
			info.decorators = append(info.decorators, w)
			continue
		}
		args, ok, err := e.UsefixturesDecorator(ctx, d)
		if err != nil {
			return nil, err
		}
		if ok {
			names, err := e.ParseUsefixtures(ctx, args, rep)
			if err != nil {
				return nil, err
			}
			info.usefixture = append(info.usefixture, names...)
		}
	}

	roots, seeds, err := e.roots(info)
	if err != nil {
		return nil, err
	}
	requests, fixtures, err := e.Fixtures.ResolveRequests(seeds, site)
	if err != nil {
		return nil, asDeferral(err, RequiredWait)
	}
	for i := range roots {
		roots[i].Request = requests[roots[i].Arg.Name]
	}
	info.Graph = NewRequestGraph(e.Checker, e.Options, fn, site.File(), requests, fixtures, roots)

	claimed := map[string]bool{}
	for _, w := range info.decorators {
		argnames, argvalues, ok := w.Pair(rep)
		if !ok {
			continue
		}
		names, ok, err := e.ParseArgnames(ctx, argnames, rep)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		valid := true
		for _, name := range names.Items {
			req, known := requests[name]
			switch {
			case !known:
				rep.Fail(taxonomy.UnknownArgname,
					fmt.Sprintf("Unknown argname %q: not an argument of %q or of any fixture it requests", name, fn.Name), argnames.Pos())
				valid = false
			case claimed[name]:
				rep.Fail(taxonomy.RepeatedArgname,
					fmt.Sprintf("Argname %q is parametrized more than once", name), argnames.Pos())
				valid = false
			default:
				claimed[name] = true
				req.Used = true
			}
		}
		if !valid {
			continue
		}
		base := signatureBase{checker: e.Checker, ctx: ctx, rep: rep, fnName: fn.Name}
		sig := newTestSignature(base, names, requests)
		if err := (Argvalues{Expr: argvalues}).CheckAgainst(e, ctx, sig); err != nil {
			return nil, err
		}
	}

	info.Graph.Check(rep)
	return info, nil
}

// roots collects what the test asks for directly, in order: its
// arguments, its usefixtures names, then the autouse fixtures in scope.
// seeds are the matching requests.
func (e *Env) roots(info *TestInfo) ([]RequestNode, []TestArgument, error) {
	file := info.Site.File()
	var roots []RequestNode
	var seeds []TestArgument
	for _, arg := range info.Arguments {
		roots = append(roots, RequestNode{Arg: arg, Origin: OriginArgument, Source: info.Fn.Name, File: file, Scope: ScopeFunction})
		seeds = append(seeds, arg)
	}
	for _, u := range info.usefixture {
		arg := TestArgument{Name: u.Name, Type: types.Any, Pos: u.Pos, File: file}
		roots = append(roots, RequestNode{Arg: arg, Origin: OriginUsefixtures, Source: info.Fn.Name, File: file, Scope: ScopeFunction})
		seeds = append(seeds, arg)
	}
	autouse, err := e.Fixtures.Autouse(info.Site)
	if err != nil {
		return nil, nil, asDeferral(err, RequiredWait)
	}
	for _, fx := range autouse {
		arg := TestArgument{Name: fx.Name, Type: types.Any, Pos: fx.Pos, File: fx.File}
		roots = append(roots, RequestNode{Arg: arg, Origin: OriginAutouse, Source: info.Fn.Name, File: file, Scope: ScopeFunction})
		seeds = append(seeds, arg)
	}
	return roots, seeds, nil
}

// CheckFixture validates a fixture definition at its own visit: the
// decorator, the scope and the parameter kinds. It returns nil when fn
// is not a fixture.
func (e *Env) CheckFixture(fn *pyast.FuncDef, site Site, rep diag.Reporter) (*Fixture, error) {
	return e.FixtureFromFunc(fn, site, rep.WithFile(site.File()))
}

// IsFixture reports whether fn carries a fixture decorator.
func (e *Env) IsFixture(fn *pyast.FuncDef, site Site) (bool, error) {
	ctx := site.Context(e.Checker)
	for _, d := range fn.Decorators {
		ok, err := e.isFixtureDecorator(ctx, d)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
