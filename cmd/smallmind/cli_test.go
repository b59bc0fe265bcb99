package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/smallmind-run/smallmind/fs/smq"
)

func writeTestSMQ(t *testing.T) string {
	t.Helper()

	manifest := smq.Manifest{
		ModelName: "toy",
		ModelDims: smq.ModelDims{
			NumLayers: 1, HiddenDim: 8, VocabSize: 4, ContextLength: 16,
			NumHeads: 2, NumKVHeads: 2, HeadDim: 4,
			MLPKind: "swiglu", PositionEmbed: "rope",
		},
	}
	tensors := []smq.Tensor{
		{Name: "token_embd.weight", Dtype: "f32", Shape: []int{4, 8}, BlockSize: 1, Data: make([]byte, 4*8*4)},
	}

	path := filepath.Join(t.TempDir(), "toy.smq")
	require.NoError(t, smq.Write(path, manifest, tensors))
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVerifyCommandReportsOK(t *testing.T) {
	path := writeTestSMQ(t)
	out, _, err := runCmd(t, "verify", path)
	require.NoError(t, err)
	require.Contains(t, out, "ok")
	require.Contains(t, out, "1 tensors")
}

func TestVerifyCommandFailsOnMissingFile(t *testing.T) {
	_, _, err := runCmd(t, "verify", filepath.Join(t.TempDir(), "missing.smq"))
	require.Error(t, err)
}

func TestInspectCommandPrintsManifestAndDirectory(t *testing.T) {
	path := writeTestSMQ(t)
	out, _, err := runCmd(t, "inspect", path)
	require.NoError(t, err)
	require.Contains(t, out, "model_name:     toy")
	require.Contains(t, out, "vocab_size:     4")
	require.Contains(t, out, "token_embd.weight")
}

func TestImportGGUFCommandRequiresTwoArgs(t *testing.T) {
	_, _, err := runCmd(t, "import-gguf", "only-one-arg")
	require.Error(t, err)
}

func TestImportGGUFCommandFailsOnMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.smq")
	_, _, err := runCmd(t, "import-gguf", filepath.Join(t.TempDir(), "missing.gguf"), out)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestRunMapsValidationErrorsToExitCodeTwo(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	path := filepath.Join(t.TempDir(), "bad.smq")
	require.NoError(t, os.WriteFile(path, []byte("not-a-valid-smq-file-at-all"), 0o644))

	os.Args = []string{"smallmind", "verify", path}
	require.Equal(t, 2, run())
}

func TestRunMapsUnknownCommandToExitCodeOne(t *testing.T) {
	origArgs := os.Args
	defer func() { os.Args = origArgs }()

	os.Args = []string{"smallmind", "not-a-real-subcommand"}
	require.Equal(t, 1, run())
}
