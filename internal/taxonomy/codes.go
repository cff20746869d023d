package taxonomy

// CodeInfo documents one diagnostic code.
type CodeInfo struct {
	Code        Code     `json:"code"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Codes returns every known code in documentation order.
func Codes() []CodeInfo {
	out := make([]CodeInfo, len(codeTable))
	copy(out, codeTable)
	return out
}

// Lookup returns the documentation for code.
func Lookup(code Code) (CodeInfo, bool) {
	info, ok := codeIndex[code]
	return info, ok
}

// CategoryOf returns the category for a code. Unknown codes fall into
// the lint category.
func CategoryOf(code Code) Category {
	if info, ok := codeIndex[code]; ok {
		return info.Category
	}
	return CategoryLint
}

// SeverityOf returns the severity for a code. Unknown codes are errors.
func SeverityOf(code Code) Severity {
	if info, ok := codeIndex[code]; ok {
		return info.Severity
	}
	return SeverityError
}

var codeTable = []CodeInfo{
	// argnames
	{InvalidArgname, CategoryArgnames, SeverityError, "Argname is not a valid identifier, or is a reserved keyword."},
	{UnreadableArgname, CategoryArgnames, SeverityError, "Single argname expression is not a string or resolvable literal."},
	{UnreadableArgnames, CategoryArgnames, SeverityError, "Outer argnames expression is not a string or sequence."},
	{DuplicateArgname, CategoryArgnames, SeverityError, "Sequence contains the same identifier twice."},
	{RequestKeyword, CategoryArgnames, SeverityError, "An argname equals the reserved name \"request\"."},
	{UnknownArgname, CategoryArgnames, SeverityError, "Parametrize argname does not correspond to any test parameter or fixture."},
	{RepeatedArgname, CategoryArgnames, SeverityError, "The same argname appears in two parametrize decorators on one test."},
	{MissingArgname, CategoryArgnames, SeverityError, "A test or fixture parameter is neither parametrized nor fixture-backed."},
	{RepeatedFixtureArgname, CategoryArgnames, SeverityError, "A fixture name is shadowed by a parametrize while both paths are active."},
	{VariadicArgnamesArgvalues, CategoryArgnames, SeverityError, "Parametrize was called with a spread that obscures argnames/argvalues."},

	// values
	{ArgType, CategoryValues, SeverityError, "A parametrized value's type is incompatible with the parameter type."},
	{CallArg, CategoryValues, SeverityError, "A test case supplies too few, too many, or unexpected values."},

	// fixtures
	{FixtureArgType, CategoryFixtures, SeverityError, "Fixture return type does not satisfy a consumer's declared type."},
	{InvertedFixtureScope, CategoryFixtures, SeverityError, "A longer-scoped fixture requests a shorter-scoped fixture."},
	{InvalidFixtureScope, CategoryFixtures, SeverityError, "The scope argument cannot be statically resolved to a known scope."},
	{DuplicateFixture, CategoryFixtures, SeverityError, "A function has more than one fixture decorator."},
	{InvalidFixtureName, CategoryFixtures, SeverityError, "A usefixtures or name= fixture name is not a valid identifier, or is a reserved keyword."},
	{UnreadableFixtureName, CategoryFixtures, SeverityError, "A usefixtures or name= fixture name is not a string or resolvable literal."},

	// arguments
	{PosOnlyArg, CategoryArguments, SeverityError, "Test or fixture parameter is positional-only."},
	{OptArg, CategoryArguments, SeverityError, "Test or fixture parameter has a default value."},
	{VarPosArg, CategoryArguments, SeverityError, "Test or fixture parameter is variadic positional (*args)."},
	{VarKeywordArg, CategoryArguments, SeverityError, "Test or fixture parameter is variadic keyword (**kwargs)."},

	// lint
	{UnknownMark, CategoryLint, SeverityError, "Mark name is neither builtin nor registered in the pytest configuration."},
	{TestReturnType, CategoryLint, SeverityError, "Test function declares a return type other than None."},

	// source
	{SyntaxError, CategorySource, SeverityWarning, "The file could not be parsed cleanly; analysis continued on the partial tree."},
}

var codeIndex = func() map[Code]CodeInfo {
	m := make(map[Code]CodeInfo, len(codeTable))
	for _, info := range codeTable {
		m[info.Code] = info
	}
	return m
}()
