package analysis

import (
	"errors"
	"fmt"

	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/pytest"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
	"github.com/unbound-force/paramcheck/internal/types"
)

const markGeneratorType = "_pytest.mark.structures.MarkGenerator"

// checkMarks reports decorators of the form mark.<name> or
// mark.<name>(...) whose name is neither builtin nor registered.
func (a *analyzer) checkMarks(n node, rep diag.Reporter) error {
	ctx := n.site.Context(a.checker)
	for _, d := range n.fn.Decorators {
		expr := d
		if call, ok := expr.(*pyast.Call); ok {
			expr = call.Func
		}
		attr, ok := expr.(*pyast.Attribute)
		if !ok {
			continue
		}
		owner, err := a.checker.TypeOf(ctx, attr.Value)
		if err != nil {
			return deferral(err)
		}
		inst, ok := owner.(*types.Instance)
		if !ok || !inst.Is(markGeneratorType) {
			continue
		}
		if a.opts.Framework.HasMarker(attr.Attr, a.opts.Config.Markers...) {
			continue
		}
		rep.Fail(taxonomy.UnknownMark,
			fmt.Sprintf("Unknown mark %q: register it under markers in the pytest configuration", attr.Attr),
			attr.Pos())
	}
	return nil
}

// checkReturnType reports a test whose declared return type is not
// None. Coroutine tests declare what they return when awaited.
func (a *analyzer) checkReturnType(n node, rep diag.Reporter) error {
	if n.fn.Returns == nil {
		return nil
	}
	ctx := n.site.Context(a.checker)
	t := a.checker.AnalyzeAnnotation(ctx, n.fn.Returns)
	if types.IsNone(t) || types.IsAny(t) {
		return nil
	}
	rep.Fail(taxonomy.TestReturnType,
		fmt.Sprintf("Test %q should return None, not %q", n.fn.Name, checker.Display(t)),
		n.fn.Returns.Pos())
	return nil
}

func deferral(err error) error {
	if errors.Is(err, checker.ErrNotReady) {
		return &pytest.DeferralError{Reason: pytest.RequiredWait}
	}
	return err
}
