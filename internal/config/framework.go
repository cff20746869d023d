package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"
)

// BuiltinMarks are the marks pytest registers itself.
var BuiltinMarks = []string{
	"filterwarnings", "parametrize", "skip", "skipif", "tryfirst",
	"trylast", "usefixtures", "xfail",
}

// DefaultFixtureModules are the plugin modules whose fixtures every
// test can request.
var DefaultFixtureModules = []string{
	"_pytest.fixtures",
	"_pytest.tmpdir",
	"_pytest.capture",
	"_pytest.monkeypatch",
	"_pytest.logging",
	"_pytest.recwarn",
	"_pytest.cacheprovider",
}

// Framework is the test framework's view of the project: collection
// patterns and registered markers.
type Framework struct {
	// Source is the file the settings were read from, empty for defaults.
	Source string

	PythonFiles     []string
	PythonFunctions []string
	PythonClasses   []string
	Markers         []string
}

// DefaultFramework returns pytest's collection defaults.
func DefaultFramework() *Framework {
	return &Framework{
		PythonFiles:     []string{"test_*.py", "*_test.py"},
		PythonFunctions: []string{"test"},
		PythonClasses:   []string{"Test"},
	}
}

// IsTestModule reports whether the file at rel is collected.
func (f *Framework) IsTestModule(rel string) bool {
	base := path.Base(filepath.ToSlash(rel))
	for _, pattern := range f.PythonFiles {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// IsConftest reports whether the file at rel is a conftest module.
func IsConftest(rel string) bool {
	return path.Base(filepath.ToSlash(rel)) == "conftest.py"
}

// IsTestFunction reports whether a function name is collected.
func (f *Framework) IsTestFunction(name string) bool {
	return matchNamePattern(f.PythonFunctions, name)
}

// IsTestClass reports whether a class name is collected.
func (f *Framework) IsTestClass(name string) bool {
	return matchNamePattern(f.PythonClasses, name)
}

// HasMarker reports whether name is a builtin or registered mark, or
// one listed in extra.
func (f *Framework) HasMarker(name string, extra ...string) bool {
	for _, list := range [][]string{BuiltinMarks, f.Markers, extra} {
		for _, m := range list {
			if m == name {
				return true
			}
		}
	}
	return false
}

// Name patterns are prefixes unless they contain glob characters.
func matchNamePattern(patterns []string, name string) bool {
	for _, p := range patterns {
		if strings.ContainsAny(p, "*?[") {
			if ok, _ := path.Match(p, name); ok {
				return true
			}
			continue
		}
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

type frameworkEntry struct {
	once sync.Once
	fw   *Framework
	err  error
}

var frameworks sync.Map

// LoadFramework returns the framework settings for root, reading them
// once per process.
func LoadFramework(root string) (*Framework, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	v, _ := frameworks.LoadOrStore(abs, &frameworkEntry{})
	e := v.(*frameworkEntry)
	e.once.Do(func() {
		e.fw, e.err = ReadFramework(abs)
	})
	return e.fw, e.err
}

// ReadFramework reads the framework settings for root without caching.
// The first of pytest.ini, pyproject.toml, tox.ini and setup.cfg that
// carries a pytest section wins.
func ReadFramework(root string) (*Framework, error) {
	readers := []struct {
		name string
		read func(data []byte, fw *Framework) (bool, error)
	}{
		{"pytest.ini", iniReader("pytest", true)},
		{"pyproject.toml", readPyproject},
		{"tox.ini", iniReader("pytest", false)},
		{"setup.cfg", iniReader("tool:pytest", false)},
	}
	for _, r := range readers {
		p := filepath.Join(root, r.name)
		data, err := os.ReadFile(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		fw := DefaultFramework()
		ok, err := r.read(data, fw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
		if ok {
			fw.Source = p
			return fw, nil
		}
	}
	return DefaultFramework(), nil
}

// iniReader reads section from an ini file. pytest.ini is used even
// when the section is absent.
func iniReader(section string, always bool) func([]byte, *Framework) (bool, error) {
	return func(data []byte, fw *Framework) (bool, error) {
		f, err := ini.LoadSources(ini.LoadOptions{
			AllowPythonMultilineValues: true,
			SkipUnrecognizableLines:    true,
			IgnoreInlineComment:        true,
		}, data)
		if err != nil {
			return false, err
		}
		if !f.HasSection(section) {
			return always, nil
		}
		sec := f.Section(section)
		if k, err := sec.GetKey("python_files"); err == nil {
			fw.PythonFiles = strings.Fields(k.String())
		}
		if k, err := sec.GetKey("python_functions"); err == nil {
			fw.PythonFunctions = strings.Fields(k.String())
		}
		if k, err := sec.GetKey("python_classes"); err == nil {
			fw.PythonClasses = strings.Fields(k.String())
		}
		if k, err := sec.GetKey("markers"); err == nil {
			fw.Markers = markerNames(strings.Split(k.String(), "\n"))
		}
		return true, nil
	}
}

func readPyproject(data []byte, fw *Framework) (bool, error) {
	var doc struct {
		Tool struct {
			Pytest struct {
				IniOptions map[string]any `toml:"ini_options"`
			} `toml:"pytest"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false, err
	}
	opts := doc.Tool.Pytest.IniOptions
	if opts == nil {
		return false, nil
	}
	if v, ok := opts["python_files"]; ok {
		fw.PythonFiles = tomlStrings(v)
	}
	if v, ok := opts["python_functions"]; ok {
		fw.PythonFunctions = tomlStrings(v)
	}
	if v, ok := opts["python_classes"]; ok {
		fw.PythonClasses = tomlStrings(v)
	}
	if v, ok := opts["markers"]; ok {
		fw.Markers = markerNames(tomlLines(v))
	}
	return true, nil
}

// tomlStrings accepts a whitespace-separated string or an array.
func tomlStrings(v any) []string {
	switch x := v.(type) {
	case string:
		return strings.Fields(x)
	case []any:
		var out []string
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, strings.Fields(s)...)
			}
		}
		return out
	}
	return nil
}

func tomlLines(v any) []string {
	switch x := v.(type) {
	case string:
		return strings.Split(x, "\n")
	case []any:
		var out []string
		for _, item := range x {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// markerNames extracts names from marker lines such as
// "slow: marks tests as slow" or "env(name): run on env".
func markerNames(lines []string) []string {
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if i := strings.IndexAny(line, ":("); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
