// Package model loads a GGUF checkpoint into an engine.Model and
// tokenizer.Vocabulary (component C7's model-graph half; fs/gguf owns
// the byte-level reader). It resolves a model's declared architecture
// name to an MLPKind/PositionEmbed profile rather than building a
// distinct Go type per architecture: the engine is data-oriented, so
// there is nothing for a per-architecture type hierarchy to buy here.
package model

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/fs/gguf"
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/tokenizer"
)

// smqMagic is duplicated from fs/smq rather than imported, since
// fs/smq exports no "sniff this path's format" helper of its own and a
// eight-byte literal isn't worth a new cross-package dependency.
var smqMagic = []byte("SMALLMND")

// Profile is what the loader needs beyond raw tensor shapes: the two
// structural choices spec.md's Open Questions say must never be
// defaulted.
type Profile struct {
	MLPKind       engine.MLPKind
	PositionEmbed engine.PositionEmbed
}

// profiles maps a declared "general.architecture" value to its
// profile. Register adds or overrides an entry; architectures outside
// this table fail closed with ErrUnsupportedArchitecture rather than
// guessing a default.
var profiles = map[string]Profile{}

// Register adds arch's profile to the loader's architecture table.
// Exported so a caller embedding this package can extend coverage to
// an architecture the corpus didn't name, mirroring the teacher's own
// registration pattern for its per-architecture model constructors.
func Register(arch string, p Profile) {
	profiles[arch] = p
}

func init() {
	Register("llama", Profile{engine.MLPSwiGLU, engine.PositionEmbedRoPE})
	Register("mistral", Profile{engine.MLPSwiGLU, engine.PositionEmbedRoPE})
	Register("qwen2", Profile{engine.MLPSwiGLU, engine.PositionEmbedRoPE})
	Register("gptneox", Profile{engine.MLPGeluFFN, engine.PositionEmbedRoPE})
	Register("gpt2", Profile{engine.MLPGeluFFN, engine.PositionEmbedAdditiveAbsolute})
}

func profileFor(arch string) (Profile, error) {
	p, ok := profiles[arch]
	if !ok {
		return Profile{}, unsupportedArchf("architecture %q has no registered MLP/position-embed profile", arch)
	}
	return p, nil
}

// tensor name layout, fixed across every registered architecture.
const (
	tensorTokenEmbed    = "token_embd.weight"
	tensorPositionEmbed = "position_embd.weight"
	tensorOutputNorm    = "output_norm.weight"
	tensorUnembed       = "output.weight"
)

// Load opens path, sniffs whether it's a GGUF or SMQ container, and
// builds the Model (and, for GGUF, the embedded Vocabulary) it
// describes. SMQ carries no embedded vocabulary, so the returned
// *tokenizer.Vocabulary is nil for SMQ models; callers resolve a
// tokenizer for those through the model's registry entry instead.
func Load(path string) (*engine.Model, *tokenizer.Vocabulary, error) {
	isSMQ, err := hasMagic(path, smqMagic)
	if err != nil {
		return nil, nil, invalidModelf("reading %s: %v", path, err)
	}
	if isSMQ {
		m, err := loadSMQ(path)
		return m, nil, err
	}
	return loadGGUF(path)
}

// hasMagic reports whether path's first len(magic) bytes equal magic.
func hasMagic(path string, magic []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(magic))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false, nil
	}
	return bytes.Equal(buf, magic), nil
}

// loadGGUF opens path as a GGUF file and builds the Model and
// Vocabulary it describes. The returned Model owns no reference back
// to the file; loadGGUF closes it before returning.
func loadGGUF(path string) (*engine.Model, *tokenizer.Vocabulary, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return nil, nil, invalidModelf("opening %s: %v", path, err)
	}
	defer f.Close()

	arch := f.KeyValue("general.architecture").String()
	if arch == "" {
		return nil, nil, invalidModelf("missing general.architecture")
	}

	profile, err := profileFor(arch)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := buildConfig(f, profile)
	if err != nil {
		return nil, nil, err
	}

	slog.Debug("loading model", "architecture", arch, "layers", cfg.NumLayers, "embed_dim", cfg.EmbedDim, "vocab_size", cfg.VocabSize)

	m := &engine.Model{Config: cfg}

	m.TokenEmbed, err = loadTensor(f, tensorTokenEmbed)
	if err != nil {
		return nil, nil, err
	}

	m.OutputNorm, _, err = loadDense(f, tensorOutputNorm)
	if err != nil {
		return nil, nil, err
	}

	m.Unembed, err = loadPacked(f, tensorUnembed)
	if err != nil {
		return nil, nil, err
	}

	if cfg.PositionEmbed == engine.PositionEmbedAdditiveAbsolute {
		m.AbsPosEmbed, _, err = loadDense(f, tensorPositionEmbed)
		if err != nil {
			return nil, nil, err
		}
	} else {
		m.RoPE = kernel.NewRoPETable(cfg.MaxContext, cfg.HeadDim, cfg.RopeBase)
	}

	m.Layers = make([]engine.LayerWeights, cfg.NumLayers)
	for i := range cfg.NumLayers {
		m.Layers[i], err = loadLayer(f, i, cfg)
		if err != nil {
			return nil, nil, err
		}
	}

	vocab, err := loadVocabulary(f)
	if err != nil {
		return nil, nil, err
	}

	return m, vocab, nil
}

// buildConfig reads the architecture-scoped hyperparameters; fs/gguf's
// File.KeyValue prepends the architecture name to any key that isn't
// already "general."- or "tokenizer."-prefixed, so these calls read
// e.g. "llama.block_count" without spelling the architecture out here.
func buildConfig(f *gguf.File, profile Profile) (engine.Config, error) {
	vocabSize := len(f.KeyValue("tokenizer.ggml.tokens").Strings())
	if vocabSize == 0 {
		return engine.Config{}, invalidModelf("tokenizer.ggml.tokens is empty")
	}

	numHeads := int(f.KeyValue("attention.head_count").Int())
	if numHeads == 0 {
		return engine.Config{}, invalidModelf("attention.head_count is zero")
	}
	numKVHeads := int(f.KeyValue("attention.head_count_kv").Int())
	if numKVHeads == 0 {
		numKVHeads = numHeads
	}

	embedDim := int(f.KeyValue("embedding_length").Int())
	if embedDim == 0 {
		return engine.Config{}, invalidModelf("embedding_length is zero")
	}
	headDim := embedDim / numHeads

	normEps := float32(f.KeyValue("attention.layer_norm_rms_epsilon").Float())
	if normEps == 0 {
		normEps = float32(f.KeyValue("attention.layer_norm_epsilon").Float())
	}
	if normEps == 0 {
		normEps = 1e-5
	}

	ropeBase := float32(f.KeyValue("rope.freq_base").Float())
	if ropeBase == 0 {
		ropeBase = 10000
	}

	numLayers := int(f.KeyValue("block_count").Int())
	if numLayers == 0 {
		return engine.Config{}, invalidModelf("block_count is zero")
	}

	maxContext := int(f.KeyValue("context_length").Int())
	if maxContext == 0 {
		return engine.Config{}, invalidModelf("context_length is zero")
	}

	mlpHidden := int(f.KeyValue("feed_forward_length").Int())
	if mlpHidden == 0 {
		return engine.Config{}, invalidModelf("feed_forward_length is zero")
	}

	return engine.Config{
		VocabSize:     vocabSize,
		MaxContext:    maxContext,
		EmbedDim:      embedDim,
		NumHeads:      numHeads,
		NumKVHeads:    numKVHeads,
		HeadDim:       headDim,
		NumLayers:     numLayers,
		MLPHidden:     mlpHidden,
		NormEps:       normEps,
		RopeBase:      ropeBase,
		MLPKind:       profile.MLPKind,
		PositionEmbed: profile.PositionEmbed,
	}, nil
}

// loadLayer reads one decoder block's weights by GGUF's "blk.N.*"
// naming convention.
func loadLayer(f *gguf.File, i int, cfg engine.Config) (engine.LayerWeights, error) {
	var w engine.LayerWeights
	var err error

	blk := func(suffix string) string { return blkName(i, suffix) }

	if w.AttnNorm, _, err = loadDense(f, blk("attn_norm.weight")); err != nil {
		return w, err
	}
	if w.MLPNorm, _, err = loadDense(f, blk("ffn_norm.weight")); err != nil {
		return w, err
	}

	if w.Wq, err = loadPacked(f, blk("attn_q.weight")); err != nil {
		return w, err
	}
	if w.Wk, err = loadPacked(f, blk("attn_k.weight")); err != nil {
		return w, err
	}
	if w.Wv, err = loadPacked(f, blk("attn_v.weight")); err != nil {
		return w, err
	}
	if w.Wo, err = loadPacked(f, blk("attn_output.weight")); err != nil {
		return w, err
	}

	switch cfg.MLPKind {
	case engine.MLPGeluFFN:
		if w.W1, err = loadPacked(f, blk("ffn_up.weight")); err != nil {
			return w, err
		}
		if w.W2, err = loadPacked(f, blk("ffn_down.weight")); err != nil {
			return w, err
		}
	case engine.MLPSwiGLU:
		if w.WGate, err = loadPacked(f, blk("ffn_gate.weight")); err != nil {
			return w, err
		}
		if w.WUp, err = loadPacked(f, blk("ffn_up.weight")); err != nil {
			return w, err
		}
		if w.WDown, err = loadPacked(f, blk("ffn_down.weight")); err != nil {
			return w, err
		}
	default:
		return w, unsupportedArchf("mlp_kind %q", cfg.MLPKind)
	}

	return w, nil
}

func blkName(i int, suffix string) string {
	return "blk." + strconv.Itoa(i) + "." + suffix
}
