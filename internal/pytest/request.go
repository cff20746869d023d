package pytest

import (
	"fmt"
	"maps"
	"slices"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

// Request is a name the test or one of its fixtures asks for. Used is
// set when a parametrization claims the name.
type Request struct {
	Arg  TestArgument
	Used bool
}

// Origin says where a request node comes from.
type Origin int

// Request origins.
const (
	OriginArgument Origin = iota
	OriginFixture
	OriginAutouse
	OriginUsefixtures
)

func (o Origin) String() string {
	switch o {
	case OriginFixture:
		return "fixture"
	case OriginAutouse:
		return "autouse"
	case OriginUsefixtures:
		return "usefixtures"
	}
	return "argument"
}

// RequestNode is one edge into the graph: a requester asking for
// Arg.Name with the type it declares.
type RequestNode struct {
	Request *Request
	Arg     TestArgument
	Origin  Origin

	// Source is the test or fixture that asks. Fixture is set for
	// fixture-originated nodes.
	Source  string
	Fixture *Fixture
	File    string
	Scope   Scope
}

// RequestGraph is the graph of names one test needs.
type RequestGraph struct {
	Name     string
	Requests map[string]*Request
	Fixtures map[string]*Fixture

	checker *checker.Checker
	options Options
	fn      *pyast.FuncDef
	file    string
	roots   []RequestNode
}

// NewRequestGraph creates the graph for test fn. roots are the nodes
// the test asks for directly: its arguments, autouse fixtures and
// usefixtures names.
func NewRequestGraph(c *checker.Checker, opts Options, fn *pyast.FuncDef, file string,
	requests map[string]*Request, fixtures map[string]*Fixture, roots []RequestNode) *RequestGraph {
	return &RequestGraph{
		Name:     fn.Name,
		Requests: requests,
		Fixtures: fixtures,
		checker:  c,
		options:  opts,
		fn:       fn,
		file:     file,
		roots:    roots,
	}
}

// live is the pruned graph: the request nodes reached from the roots
// and the fixtures activated on the way.
type live struct {
	nodes    []RequestNode
	names    map[string]bool
	fixtures map[string]*Fixture
}

// prune walks from the roots. A name claimed by a parametrization
// stops the walk; an unclaimed name backed by a fixture activates that
// fixture and enqueues its arguments.
func (g *RequestGraph) prune() live {
	l := live{names: map[string]bool{}, fixtures: map[string]*Fixture{}}
	queue := append([]RequestNode(nil), g.roots...)
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		l.nodes = append(l.nodes, node)
		name := node.Arg.Name
		l.names[name] = true
		req := g.Requests[name]
		if req != nil && req.Used {
			continue
		}
		fx := g.Fixtures[name]
		if fx == nil {
			continue
		}
		if _, active := l.fixtures[name]; active {
			continue
		}
		l.fixtures[name] = fx
		for _, arg := range fx.Arguments {
			queue = append(queue, RequestNode{
				Request: g.Requests[arg.Name],
				Arg:     arg,
				Origin:  OriginFixture,
				Source:  fx.Name,
				Fixture: fx,
				File:    fx.File,
				Scope:   fx.Scope,
			})
		}
	}
	return l
}

// Check validates the live graph: coverage, shadowing, scope order and
// fixture value types.
func (g *RequestGraph) Check(rep diag.Reporter) {
	l := g.prune()
	dummy := rep.WithFile(g.file)

	reportedMissing := map[string]bool{}
	for _, node := range l.nodes {
		name := node.Arg.Name
		req := g.Requests[name]
		if req != nil && req.Used {
			continue
		}
		if _, ok := l.fixtures[name]; ok {
			continue
		}
		switch node.Origin {
		case OriginArgument:
			rep.WithFile(node.File).Fail(taxonomy.MissingArgname,
				fmt.Sprintf("Argname %q is not parametrized and no fixture provides it", name), node.Arg.Pos)
		case OriginUsefixtures:
			rep.WithFile(node.File).Fail(taxonomy.MissingArgname,
				fmt.Sprintf("No fixture provides %q", name), node.Arg.Pos)
		default:
			key := node.Source + "\x00" + name
			if reportedMissing[key] {
				continue
			}
			reportedMissing[key] = true
			dummy.Fail(taxonomy.MissingArgname,
				fmt.Sprintf("Argname %q requested by fixture %q is not parametrized and no fixture provides it", name, node.Source),
				g.fn.Pos())
		}
	}

	for _, name := range slices.Sorted(maps.Keys(g.Requests)) {
		if g.Requests[name].Used && !l.names[name] {
			dummy.Fail(taxonomy.RepeatedFixtureArgname,
				fmt.Sprintf("Argname %q is parametrized, but the fixture that requests it is itself replaced by a parametrization", name),
				g.fn.Pos())
		}
	}

	for _, node := range l.nodes {
		name := node.Arg.Name
		target, ok := l.fixtures[name]
		if !ok {
			continue
		}
		if node.Origin == OriginFixture && node.Fixture == target {
			continue
		}
		at := rep.WithFile(node.File)
		// request takes on the scope of whoever asks for it.
		if node.Origin == OriginFixture && name != requestName && !g.options.SkipScopeCheck {
			if node.Scope.Known() && target.Scope.Known() && target.Scope < node.Scope {
				at.Fail(taxonomy.InvertedFixtureScope,
					fmt.Sprintf("Fixture %q with scope %q requests fixture %q with narrower scope %q",
						node.Source, node.Scope, name, target.Scope),
					node.Arg.Pos)
			}
		}
		if g.options.SkipTypeCheck {
			continue
		}
		switch node.Origin {
		case OriginArgument, OriginFixture:
			want := types.Erase(node.Arg.Type)
			got := types.Erase(target.ReturnType)
			if !types.IsSubtype(got, want) {
				at.Fail(taxonomy.FixtureArgType,
					fmt.Sprintf("Argument %q of %q expects %q, but fixture %q provides %q",
						name, node.Source, checker.Display(want), target.Name, checker.Display(got)),
					node.Arg.Pos)
			}
		}
	}
}
