package pytest

import (
	"github.com/unbound-force/paramcheck/internal/checker"
	"github.com/unbound-force/paramcheck/internal/diag"
	"github.com/unbound-force/paramcheck/internal/pyast"
	"github.com/unbound-force/paramcheck/internal/types"
)

// TestSignature checks parametrized values against the part of a
// test's signature one decorator covers. Every check hands a synthetic
// callable named after the test to the checker's call check, so
// diagnostics point at the user's values.
type TestSignature interface {
	// CheckItems checks the values of one test case given one per
	// argname. ctx locates errors about the case as a whole.
	CheckItems(items []*pyast.Arg, ctx pyast.Node) error
	// CheckTestCase checks one expression holding a whole test case.
	CheckTestCase(expr pyast.Expr) error
	// CheckSequence checks an expression holding every test case.
	CheckSequence(expr pyast.Expr) error
	// Single reports whether the signature covers one argname.
	Single() bool
}

type signatureBase struct {
	checker  *checker.Checker
	ctx      checker.Context
	rep      diag.Reporter
	fnName   string
	typeVars []*types.TypeVar
}

func (s signatureBase) callable(params ...types.Param) *types.Callable {
	return &types.Callable{
		Params:   params,
		Ret:      types.None,
		Name:     s.fnName,
		TypeVars: s.typeVars,
	}
}

func (s signatureBase) check(sig *types.Callable, args []*pyast.Arg, ctx pyast.Node) error {
	_, err := s.checker.CheckCall(s.ctx, sig, args, ctx, s.rep)
	return asDeferral(err, SpeculativeWait)
}

func (s signatureBase) checkOne(sig *types.Callable, expr pyast.Expr) error {
	arg := &pyast.Arg{Loc: pyast.Loc{Start: expr.Pos()}, Kind: pyast.ArgPositional, Value: expr}
	return s.check(sig, []*pyast.Arg{arg}, expr)
}

func (s signatureBase) parameterSet(t types.Type) types.Type {
	return s.checker.NamedType(parameterSetType, t)
}

func (s signatureBase) iterable(t types.Type) types.Type {
	return s.checker.NamedType("typing.Iterable", t)
}

// OneItemTestSignature covers a single argname.
type OneItemTestSignature struct {
	signatureBase
	Name string
	Type types.Type
}

// ItemsSignature is (name: T) -> None.
func (s *OneItemTestSignature) ItemsSignature() *types.Callable {
	return s.callable(types.Param{Name: s.Name, Kind: types.ArgPos, Type: s.Type})
}

// TestCaseSignature is (name: T | ParameterSet[T]) -> None.
func (s *OneItemTestSignature) TestCaseSignature() *types.Callable {
	return s.callable(types.Param{Name: s.Name, Kind: types.ArgPos, Type: types.MakeUnion(s.Type, s.parameterSet(s.Type))})
}

// SequenceSignature is (_: Iterable[T | ParameterSet[T]]) -> None.
func (s *OneItemTestSignature) SequenceSignature() *types.Callable {
	elem := types.MakeUnion(s.Type, s.parameterSet(s.Type))
	return s.callable(types.Param{Name: "_", Kind: types.ArgPos, Type: s.iterable(elem)})
}

// CheckItems implements TestSignature.
func (s *OneItemTestSignature) CheckItems(items []*pyast.Arg, ctx pyast.Node) error {
	return s.check(s.ItemsSignature(), items, ctx)
}

// CheckTestCase implements TestSignature.
func (s *OneItemTestSignature) CheckTestCase(expr pyast.Expr) error {
	return s.checkOne(s.TestCaseSignature(), expr)
}

// CheckSequence implements TestSignature.
func (s *OneItemTestSignature) CheckSequence(expr pyast.Expr) error {
	return s.checkOne(s.SequenceSignature(), expr)
}

// Single implements TestSignature.
func (s *OneItemTestSignature) Single() bool { return true }

// ManyItemsTestSignature covers a sequence of argnames.
type ManyItemsTestSignature struct {
	signatureBase
	Names []string
	Types []types.Type
}

// ItemsSignature is (n1: T1, ..., nk: Tk) -> None.
func (s *ManyItemsTestSignature) ItemsSignature() *types.Callable {
	params := make([]types.Param, len(s.Names))
	for i, name := range s.Names {
		params[i] = types.Param{Name: name, Kind: types.ArgPos, Type: s.Types[i]}
	}
	return s.callable(params...)
}

func (s *ManyItemsTestSignature) testCase() types.Type {
	tup := s.checker.Tuple(s.Types...)
	return types.MakeUnion(tup, s.parameterSet(tup))
}

// TestCaseSignature is (_: tuple[T1, ..., Tk] | ParameterSet[tuple[T1, ..., Tk]]) -> None.
func (s *ManyItemsTestSignature) TestCaseSignature() *types.Callable {
	return s.callable(types.Param{Name: "_", Kind: types.ArgPos, Type: s.testCase()})
}

// SequenceSignature is (_: Iterable[tuple[T1, ..., Tk] | ParameterSet[...]]) -> None.
func (s *ManyItemsTestSignature) SequenceSignature() *types.Callable {
	return s.callable(types.Param{Name: "_", Kind: types.ArgPos, Type: s.iterable(s.testCase())})
}

// CheckItems implements TestSignature.
func (s *ManyItemsTestSignature) CheckItems(items []*pyast.Arg, ctx pyast.Node) error {
	return s.check(s.ItemsSignature(), items, ctx)
}

// CheckTestCase implements TestSignature.
func (s *ManyItemsTestSignature) CheckTestCase(expr pyast.Expr) error {
	return s.checkOne(s.TestCaseSignature(), expr)
}

// CheckSequence implements TestSignature.
func (s *ManyItemsTestSignature) CheckSequence(expr pyast.Expr) error {
	return s.checkOne(s.SequenceSignature(), expr)
}

// Single implements TestSignature.
func (s *ManyItemsTestSignature) Single() bool { return false }

// newTestSignature builds the sub-signature for parsed argnames. Every
// name must be a known request.
func newTestSignature(base signatureBase, names Names, requests map[string]*Request) TestSignature {
	if names.Single {
		req := requests[names.Items[0]]
		base.typeVars = req.Arg.TypeVars
		return &OneItemTestSignature{signatureBase: base, Name: req.Arg.Name, Type: req.Arg.Type}
	}
	sig := &ManyItemsTestSignature{signatureBase: base}
	var tvs []*types.TypeVar
	for _, name := range names.Items {
		req := requests[name]
		sig.Names = append(sig.Names, name)
		sig.Types = append(sig.Types, req.Arg.Type)
		tvs = append(tvs, req.Arg.TypeVars...)
	}
	sig.typeVars = tvs
	return sig
}
