package model

import (
	"github.com/smallmind-run/smallmind/engine"
	"github.com/smallmind-run/smallmind/fs/smq"
	"github.com/smallmind-run/smallmind/kernel"
	"github.com/smallmind-run/smallmind/quant"
)

// loadSMQ builds an engine.Model from a native SMQ container. Unlike
// GGUF, SMQ carries no embedded vocabulary — a model's tokenizer is
// resolved separately through its registry entry's tokenizer_id, so
// the returned vocabulary is always nil here; Load's caller is
// expected to load one itself when the model came from SMQ.
func loadSMQ(path string) (*engine.Model, error) {
	f, err := smq.Open(path)
	if err != nil {
		return nil, invalidModelf("opening %s: %v", path, err)
	}
	defer f.Close()

	dims := f.Manifest.ModelDims

	profile, err := smqProfile(dims)
	if err != nil {
		return nil, err
	}

	cfg := engine.Config{
		VocabSize:     dims.VocabSize,
		MaxContext:    dims.ContextLength,
		EmbedDim:      dims.HiddenDim,
		NumHeads:      dims.NumHeads,
		NumKVHeads:    dims.NumKVHeads,
		HeadDim:       dims.HeadDim,
		NumLayers:     dims.NumLayers,
		MLPHidden:     dims.MLPHidden,
		NormEps:       dims.NormEps,
		RopeBase:      dims.RopeBase,
		MLPKind:       profile.MLPKind,
		PositionEmbed: profile.PositionEmbed,
	}
	if cfg.NumLayers == 0 || cfg.EmbedDim == 0 || cfg.VocabSize == 0 {
		return nil, invalidModelf("%s: incomplete model_dims in manifest", path)
	}

	m := &engine.Model{Config: cfg}

	m.TokenEmbed, err = loadTensorSMQ(f, tensorTokenEmbed)
	if err != nil {
		return nil, err
	}

	m.OutputNorm, _, err = loadDenseSMQ(f, tensorOutputNorm)
	if err != nil {
		return nil, err
	}

	m.Unembed, err = loadPackedSMQ(f, tensorUnembed)
	if err != nil {
		return nil, err
	}

	if cfg.PositionEmbed == engine.PositionEmbedAdditiveAbsolute {
		m.AbsPosEmbed, _, err = loadDenseSMQ(f, tensorPositionEmbed)
		if err != nil {
			return nil, err
		}
	} else {
		m.RoPE = kernel.NewRoPETable(cfg.MaxContext, cfg.HeadDim, cfg.RopeBase)
	}

	m.Layers = make([]engine.LayerWeights, cfg.NumLayers)
	for i := range cfg.NumLayers {
		m.Layers[i], err = loadLayerSMQ(f, i, cfg)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// smqProfile recovers a Profile directly from the manifest's own
// mlp_kind/position_embed strings, for models whose architecture was
// never registered under profileFor's GGUF-architecture-name keying.
func smqProfile(dims smq.ModelDims) (Profile, error) {
	var p Profile
	switch dims.MLPKind {
	case "swiglu":
		p.MLPKind = engine.MLPSwiGLU
	case "gelu_ffn":
		p.MLPKind = engine.MLPGeluFFN
	default:
		return Profile{}, unsupportedArchf("manifest mlp_kind %q", dims.MLPKind)
	}
	switch dims.PositionEmbed {
	case "rope":
		p.PositionEmbed = engine.PositionEmbedRoPE
	case "additive_absolute":
		p.PositionEmbed = engine.PositionEmbedAdditiveAbsolute
	default:
		return Profile{}, unsupportedArchf("manifest position_embed %q", dims.PositionEmbed)
	}
	return p, nil
}

func loadLayerSMQ(f *smq.File, i int, cfg engine.Config) (engine.LayerWeights, error) {
	var w engine.LayerWeights
	var err error

	blk := func(suffix string) string { return blkName(i, suffix) }

	if w.AttnNorm, _, err = loadDenseSMQ(f, blk("attn_norm.weight")); err != nil {
		return w, err
	}
	if w.MLPNorm, _, err = loadDenseSMQ(f, blk("ffn_norm.weight")); err != nil {
		return w, err
	}

	if w.Wq, err = loadPackedSMQ(f, blk("attn_q.weight")); err != nil {
		return w, err
	}
	if w.Wk, err = loadPackedSMQ(f, blk("attn_k.weight")); err != nil {
		return w, err
	}
	if w.Wv, err = loadPackedSMQ(f, blk("attn_v.weight")); err != nil {
		return w, err
	}
	if w.Wo, err = loadPackedSMQ(f, blk("attn_output.weight")); err != nil {
		return w, err
	}

	switch cfg.MLPKind {
	case engine.MLPGeluFFN:
		if w.W1, err = loadPackedSMQ(f, blk("ffn_up.weight")); err != nil {
			return w, err
		}
		if w.W2, err = loadPackedSMQ(f, blk("ffn_down.weight")); err != nil {
			return w, err
		}
	case engine.MLPSwiGLU:
		if w.WGate, err = loadPackedSMQ(f, blk("ffn_gate.weight")); err != nil {
			return w, err
		}
		if w.WUp, err = loadPackedSMQ(f, blk("ffn_up.weight")); err != nil {
			return w, err
		}
		if w.WDown, err = loadPackedSMQ(f, blk("ffn_down.weight")); err != nil {
			return w, err
		}
	default:
		return w, unsupportedArchf("mlp_kind %q", cfg.MLPKind)
	}

	return w, nil
}

// smqTag maps a manifest dtype string to quant.Tag; SMQ spells tags the
// same way quant.Tag.String() renders them, since the writer produces
// both from the same source.
func smqTag(dtype string) (quant.Tag, bool) {
	switch dtype {
	case "f32":
		return quant.TagF32, true
	case "f16":
		return quant.TagF16, true
	case "bf16":
		return quant.TagBF16, true
	case "q4_0":
		return quant.TagQ4_0, true
	case "q5_0":
		return quant.TagQ5_0, true
	case "q8_0":
		return quant.TagQ8_0, true
	case "q4_k":
		return quant.TagQ4K, true
	case "q6_k":
		return quant.TagQ6K, true
	default:
		return 0, false
	}
}
