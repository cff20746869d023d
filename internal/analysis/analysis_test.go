package analysis_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/unbound-force/paramcheck/internal/analysis"
	"github.com/unbound-force/paramcheck/internal/config"
	"github.com/unbound-force/paramcheck/internal/loader"
	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// extract writes every file of the archive except "want" into a temp
// dir and returns the dir and the expected lines.
func extract(t *testing.T, archive string) (string, []string) {
	t.Helper()
	ar, err := txtar.ParseFile(archive)
	require.NoError(t, err)
	dir := t.TempDir()
	var want []string
	for _, f := range ar.Files {
		if f.Name == "want" {
			for _, line := range strings.Split(string(f.Data), "\n") {
				if line = strings.TrimSpace(line); line != "" {
					want = append(want, line)
				}
			}
			continue
		}
		p := filepath.Join(dir, filepath.FromSlash(f.Name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, f.Data, 0o644))
	}
	return dir, want
}

func analyze(t *testing.T, dir string, opts analysis.Options) *taxonomy.Result {
	t.Helper()
	cfg, err := config.Find(dir, "")
	require.NoError(t, err)
	fw, err := config.ReadFramework(dir)
	require.NoError(t, err)
	opts.Config = cfg
	opts.Framework = fw
	result, err := analysis.LoadAndAnalyze(context.Background(), dir, nil, opts)
	require.NoError(t, err)
	return result
}

func render(result *taxonomy.Result) []string {
	var out []string
	for _, d := range result.Diagnostics {
		out = append(out, fmt.Sprintf("%s:%d %s: %s", d.Location.File, d.Location.Line, d.Code, d.Message))
	}
	return out
}

func TestAnalyze_Testdata(t *testing.T) {
	archives, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, archives)
	for _, archive := range archives {
		t.Run(strings.TrimSuffix(filepath.Base(archive), ".txtar"), func(t *testing.T) {
			dir, want := extract(t, archive)
			result := analyze(t, dir, analysis.Options{})
			assert.Equal(t, want, render(result))
			assert.Empty(t, result.Metadata.Warnings)
		})
	}
}

// Running twice, with parsed modules reused from the cache on the
// second run, reports the same diagnostics in the same order, and that
// order is by file, line and column.
func TestAnalyze_Repeatable(t *testing.T) {
	for _, name := range []string{"scenarios", "fixtures", "deferral"} {
		t.Run(name, func(t *testing.T) {
			dir, want := extract(t, filepath.Join("testdata", name+".txtar"))
			cfg, err := config.Find(dir, "")
			require.NoError(t, err)
			fw, err := config.ReadFramework(dir)
			require.NoError(t, err)
			opts := analysis.Options{Config: cfg, Framework: fw}
			cache := loader.NewCache()

			first, err := analysis.LoadAndAnalyze(context.Background(), dir, cache, opts)
			require.NoError(t, err)
			second, err := analysis.LoadAndAnalyze(context.Background(), dir, cache, opts)
			require.NoError(t, err)

			assert.Equal(t, want, render(first))
			assert.Equal(t, render(first), render(second))
			assert.Equal(t, first.Summary, second.Summary)

			less := func(a, b taxonomy.Location) bool {
				if a.File != b.File {
					return a.File < b.File
				}
				if a.Line != b.Line {
					return a.Line < b.Line
				}
				return a.Column < b.Column
			}
			for i := 1; i < len(second.Diagnostics); i++ {
				prev, cur := second.Diagnostics[i-1].Location, second.Diagnostics[i].Location
				assert.False(t, less(cur, prev), "diagnostic %d (%s) sorts before %s", i, cur, prev)
			}
		})
	}
}

func TestAnalyze_Metadata(t *testing.T) {
	dir, _ := extract(t, filepath.Join("testdata", "fixtures.txtar"))
	result := analyze(t, dir, analysis.Options{Version: "1.2.3"})

	assert.Equal(t, "1.2.3", result.Metadata.Version)
	assert.Equal(t, dir, result.Metadata.Root)
	assert.Equal(t, 6, result.Metadata.FilesAnalyzed)
	// test_local, test_db and test_db_wrong.
	assert.Equal(t, 3, result.Metadata.TestsAnalyzed)
	assert.NotEmpty(t, result.Metadata.RunID)
	assert.Equal(t, 3, result.Summary.Errors)
	assert.Equal(t, 1, result.Summary.ByCode[taxonomy.FixtureArgType])
}

func TestAnalyze_DisabledCodes(t *testing.T) {
	dir, _ := extract(t, filepath.Join("testdata", "scenarios.txtar"))
	result := analyze(t, dir, analysis.Options{
		Disable: []taxonomy.Code{taxonomy.MissingArgname, taxonomy.FixtureArgType},
	})
	for _, d := range result.Diagnostics {
		assert.NotEqual(t, taxonomy.MissingArgname, d.Code)
		assert.NotEqual(t, taxonomy.FixtureArgType, d.Code)
	}
	assert.Len(t, result.Diagnostics, 5)
}

func TestAnalyze_ChecksDisabledInConfig(t *testing.T) {
	dir, _ := extract(t, filepath.Join("testdata", "marks.txtar"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(`
markers: [integration]
checks:
  unknown_marks: false
  return_types: false
`), 0o644))
	result := analyze(t, dir, analysis.Options{})
	assert.Equal(t, []string{
		"test_broken.py:1 syntax-error: Syntax error: analysis continues on the partial tree",
	}, render(result))
}

func TestAnalyze_TestFilter(t *testing.T) {
	dir, _ := extract(t, filepath.Join("testdata", "fixtures.txtar"))
	result := analyze(t, dir, analysis.Options{TestFilter: "test_db_wrong"})

	assert.Equal(t, 1, result.Metadata.TestsAnalyzed)
	assert.Equal(t, []string{
		`plugins/extra.py:7 opt-arg: Argument "x" of "extra" has a default value`,
		`tests/test_app.py:12 fixture-arg-type: Argument "db" of "test_db_wrong" expects "str", but fixture "db" provides "bytes"`,
	}, render(result))
}

func TestLoadAndAnalyze_NoPythonFiles(t *testing.T) {
	_, err := analysis.LoadAndAnalyze(context.Background(), t.TempDir(), nil, analysis.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, loader.ErrNoPythonFiles)
}

func TestLoadAndAnalyze_Cancelled(t *testing.T) {
	dir, _ := extract(t, filepath.Join("testdata", "scenarios.txtar"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := analysis.LoadAndAnalyze(ctx, dir, nil, analysis.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
