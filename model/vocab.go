package model

import (
	"github.com/smallmind-run/smallmind/fs/gguf"
	"github.com/smallmind-run/smallmind/tokenizer"
)

// LoadVocabulary opens path as a GGUF file and reads only its
// tokenizer metadata, for resolving a tokenizer companion file
// against an SMQ model, which carries no embedded vocabulary of its
// own (spec.md's registry owns that mapping via tokenizer_id).
func LoadVocabulary(path string) (*tokenizer.Vocabulary, error) {
	f, err := gguf.Open(path)
	if err != nil {
		return nil, invalidModelf("opening %s: %v", path, err)
	}
	defer f.Close()
	return loadVocabulary(f)
}

// loadVocabulary builds a tokenizer.Vocabulary from the
// "tokenizer.ggml.*" metadata keys, the same keys the teacher's own
// per-architecture loaders read via c.Strings("tokenizer.ggml.tokens").
// A "gpt2" tokenizer model selects byte-level BPE; anything else falls
// back to classic regex-split BPE over the declared token set.
func loadVocabulary(f *gguf.File) (*tokenizer.Vocabulary, error) {
	tokens := f.KeyValue("tokenizer.ggml.tokens").Strings()
	if len(tokens) == 0 {
		return nil, invalidModelf("tokenizer.ggml.tokens is empty")
	}
	merges := f.KeyValue("tokenizer.ggml.merges").Strings()

	tokenizerModel := f.KeyValue("tokenizer.ggml.model").String()

	cfg := tokenizer.Config{
		Tokens:    tokens,
		Merges:    merges,
		ByteLevel: tokenizerModel == "gpt2",
		BOS:       int(f.KeyValue("tokenizer.ggml.bos_token_id").Int()),
		EOS:       int(f.KeyValue("tokenizer.ggml.eos_token_id").Int()),
		PAD:       int(f.KeyValue("tokenizer.ggml.padding_token_id").Int()),
		UNK:       int(f.KeyValue("tokenizer.ggml.unknown_token_id").Int()),
	}

	v, err := tokenizer.New(cfg)
	if err != nil {
		return nil, invalidModelf("building vocabulary: %v", err)
	}
	return v, nil
}
