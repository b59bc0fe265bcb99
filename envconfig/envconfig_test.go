package envconfig

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarTrimsWhitespaceAndQuotes(t *testing.T) {
	t.Setenv("SMALLMIND_TEST_VAR", `  "hello"  `)
	require.Equal(t, "hello", Var("SMALLMIND_TEST_VAR"))
}

func TestNumThreadsDefaultsToAuto(t *testing.T) {
	t.Setenv("SMALLMIND_NUM_THREADS", "")
	require.Equal(t, 0, NumThreads())
}

func TestNumThreadsParsesExplicitValue(t *testing.T) {
	t.Setenv("SMALLMIND_NUM_THREADS", "4")
	require.Equal(t, 4, NumThreads())
}

func TestNumThreadsFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SMALLMIND_NUM_THREADS", "not-a-number")
	require.Equal(t, 0, NumThreads())

	t.Setenv("SMALLMIND_NUM_THREADS", "-1")
	require.Equal(t, 0, NumThreads())
}

func TestResolvedThreadsFallsBackToNumCPU(t *testing.T) {
	t.Setenv("SMALLMIND_NUM_THREADS", "")
	require.Equal(t, runtime.NumCPU(), ResolvedThreads())

	t.Setenv("SMALLMIND_NUM_THREADS", "7")
	require.Equal(t, 7, ResolvedThreads())
}

func TestModelCacheDefaultsUnderHome(t *testing.T) {
	t.Setenv("SMALLMIND_MODEL_CACHE", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".smallmind", "models"), ModelCache())
}

func TestModelCacheHonorsOverride(t *testing.T) {
	t.Setenv("SMALLMIND_MODEL_CACHE", "/tmp/custom-cache")
	require.Equal(t, "/tmp/custom-cache", ModelCache())
}

func TestRNGSeedDefaultsToMinusOne(t *testing.T) {
	t.Setenv("SMALLMIND_RNG_SEED", "")
	require.Equal(t, int64(-1), RNGSeed())
}

func TestRNGSeedParsesExplicitValue(t *testing.T) {
	t.Setenv("SMALLMIND_RNG_SEED", "42")
	require.Equal(t, int64(42), RNGSeed())
}

func TestRNGSeedFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SMALLMIND_RNG_SEED", "not-a-seed")
	require.Equal(t, int64(-1), RNGSeed())
}

func TestAsMapReportsAllRecognizedVars(t *testing.T) {
	m := AsMap()
	require.Contains(t, m, "SMALLMIND_NUM_THREADS")
	require.Contains(t, m, "SMALLMIND_MODEL_CACHE")
	require.Contains(t, m, "SMALLMIND_RNG_SEED")
}
