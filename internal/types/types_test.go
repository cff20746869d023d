package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unbound-force/paramcheck/internal/types"
)

// world is a hand-built hierarchy mirroring the builtins the checker
// loads from stubs.
type world struct {
	object, int_, bool_, float_, str, tuple, iterable, sequence, list, sized *types.ClassInfo
	tco, t                                                                      *types.TypeVar
}

func newWorld() *world {
	w := &world{}
	w.object = types.NewClassInfo("builtins.object")
	obj := types.NewInstance(w.object)

	mk := func(name string, bases ...*types.Instance) *types.ClassInfo {
		c := types.NewClassInfo(name)
		if len(bases) == 0 {
			bases = []*types.Instance{obj}
		}
		c.Bases = bases
		return c
	}
	w.int_ = mk("builtins.int")
	w.bool_ = mk("builtins.bool", types.NewInstance(w.int_))
	w.float_ = mk("builtins.float")
	w.str = mk("builtins.str")

	w.tco = &types.TypeVar{Name: "_T_co", Variance: types.Covariant}
	w.t = &types.TypeVar{Name: "_T"}

	w.sized = mk("typing.Sized")
	w.sized.IsProtocol = true
	w.sized.Members["__len__"] = true

	w.iterable = mk("typing.Iterable")
	w.iterable.TypeVars = []*types.TypeVar{w.tco}
	w.iterable.IsProtocol = true
	w.iterable.Members["__iter__"] = true

	w.sequence = mk("typing.Sequence", types.NewInstance(w.iterable, w.tco))
	w.sequence.TypeVars = []*types.TypeVar{w.tco}

	w.list = mk("builtins.list", types.NewInstance(w.sequence, w.t))
	w.list.TypeVars = []*types.TypeVar{w.t}
	w.list.Members["__len__"] = true

	w.tuple = mk("builtins.tuple", types.NewInstance(w.sequence, w.tco))
	w.tuple.TypeVars = []*types.TypeVar{w.tco}
	return w
}

func (w *world) inst(c *types.ClassInfo, args ...types.Type) *types.Instance {
	return types.NewInstance(c, args...)
}

func TestIsSubtype(t *testing.T) {
	w := newWorld()
	intT, strT, boolT, floatT := w.inst(w.int_), w.inst(w.str), w.inst(w.bool_), w.inst(w.float_)
	lit := types.NewLiteral(types.LitStr, "s", strT)
	tup := types.NewTuple([]types.Type{intT, strT}, w.tuple)

	tests := []struct {
		name        string
		left, right types.Type
		want        bool
	}{
		{"int <: int", intT, intT, true},
		{"str </: int", strT, intT, false},
		{"bool <: int via base", boolT, intT, true},
		{"int <: float promotion", intT, floatT, true},
		{"bool <: float promotion via MRO", boolT, floatT, true},
		{"float </: int", floatT, intT, false},
		{"Any <: int", types.Any, intT, true},
		{"int <: Any", intT, types.Any, true},
		{"Never <: str", types.Never, strT, true},
		{"literal <: fallback", lit, strT, true},
		{"literal </: int", lit, intT, false},
		{"str </: literal", strT, lit, false},
		{"int <: int | None", intT, types.Optional(intT), true},
		{"None <: int | None", types.None, types.Optional(intT), true},
		{"int | str </: int", types.MakeUnion(intT, strT), intT, false},
		{"list[int] <: Iterable[int]", w.inst(w.list, intT), w.inst(w.iterable, intT), true},
		{"list[bool] <: Sequence[int] covariance", w.inst(w.list, boolT), w.inst(w.sequence, intT), true},
		{"list[bool] </: list[int] invariance", w.inst(w.list, boolT), w.inst(w.list, intT), false},
		{"list[Any] <: list[int] gradual", w.inst(w.list, types.Any), w.inst(w.list, intT), true},
		{"tuple[int,str] <: tuple[int,str]", tup, types.NewTuple([]types.Type{intT, strT}, w.tuple), true},
		{"tuple[int,str] </: tuple[int]", tup, types.NewTuple([]types.Type{intT}, w.tuple), false},
		{"tuple[int,str] <: Iterable[int|str]", tup, w.inst(w.iterable, types.MakeUnion(intT, strT)), true},
		{"tuple[int,str] </: Iterable[int]", tup, w.inst(w.iterable, intT), false},
		{"list structurally Sized", w.inst(w.list, intT), w.inst(w.sized), true},
		{"int not Sized", intT, w.inst(w.sized), false},
		{"None </: int", types.None, intT, false},
		{"int <: object", intT, w.inst(w.object), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types.IsSubtype(tt.left, tt.right))
		})
	}
}

func TestIsSubtype_Callables(t *testing.T) {
	w := newWorld()
	intT, boolT := w.inst(w.int_), w.inst(w.bool_)
	fnInt := &types.Callable{Params: []types.Param{{Name: "x", Kind: types.ArgPos, Type: intT}}, Ret: boolT}
	fnBool := &types.Callable{Params: []types.Param{{Name: "x", Kind: types.ArgPos, Type: boolT}}, Ret: intT}

	assert.True(t, types.IsSubtype(fnInt, fnBool), "contravariant params, covariant return")
	assert.False(t, types.IsSubtype(fnBool, fnInt))
	assert.True(t, types.IsSubtype(fnBool, &types.Callable{AnyParams: true, Ret: intT}))
}

func TestMakeUnion(t *testing.T) {
	w := newWorld()
	intT, strT := w.inst(w.int_), w.inst(w.str)

	assert.Equal(t, types.Never, types.MakeUnion())
	assert.Equal(t, intT, types.MakeUnion(intT, intT, types.Never))
	assert.Equal(t, types.Any, types.MakeUnion(intT, types.Any))

	u := types.MakeUnion(intT, types.MakeUnion(strT, types.None))
	assert.Equal(t, "int | str | None", u.String())
}

func TestSubstituteAndErase(t *testing.T) {
	w := newWorld()
	intT := w.inst(w.int_)
	generic := w.inst(w.list, w.t)

	sub := types.Substitute(generic, map[*types.TypeVar]types.Type{w.t: intT})
	assert.Equal(t, "list[int]", sub.String())

	bounded := &types.TypeVar{Name: "N", Bound: intT}
	assert.Equal(t, "int", types.Erase(bounded).String())
	assert.Equal(t, "list[Any]", types.Erase(generic).String())
	assert.True(t, types.ContainsTypeVars(generic))
	assert.False(t, types.ContainsTypeVars(sub))
}

func TestMapToBase(t *testing.T) {
	w := newWorld()
	intT := w.inst(w.int_)

	mapped := types.MapToBase(w.inst(w.list, intT), w.iterable)
	if assert.NotNil(t, mapped) {
		assert.Equal(t, "Iterable[int]", mapped.String())
	}
	assert.Nil(t, types.MapToBase(intT, w.iterable))
}

func TestMRO(t *testing.T) {
	o := types.NewClassInfo("builtins.object")
	obj := types.NewInstance(o)
	a := types.NewClassInfo("m.A")
	a.Bases = []*types.Instance{obj}
	b := types.NewClassInfo("m.B")
	b.Bases = []*types.Instance{types.NewInstance(a)}
	c := types.NewClassInfo("m.C")
	c.Bases = []*types.Instance{types.NewInstance(a)}
	d := types.NewClassInfo("m.D")
	d.Bases = []*types.Instance{types.NewInstance(b), types.NewInstance(c)}

	var names []string
	for _, k := range d.MRO() {
		names = append(names, k.Name)
	}
	assert.Equal(t, []string{"D", "B", "C", "A", "object"}, names)
}

func TestString(t *testing.T) {
	w := newWorld()
	strT := w.inst(w.str)
	tests := []struct {
		typ  types.Type
		want string
	}{
		{types.NewLiteral(types.LitStr, "x", strT), "Literal['x']"},
		{types.NewLiteral(types.LitInt, int64(3), nil), "Literal[3]"},
		{types.NewLiteral(types.LitBool, true, nil), "Literal[True]"},
		{types.NewTuple(nil, w.tuple), "tuple[()]"},
		{w.inst(w.tuple, strT), "tuple[str, ...]"},
		{&types.Callable{Params: []types.Param{{Name: "x", Kind: types.ArgPos, Type: strT}}, Ret: types.None}, "Callable[[str], None]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}
