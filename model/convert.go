package model

import (
	"io"
	"time"

	"github.com/smallmind-run/smallmind/fs/gguf"
	"github.com/smallmind-run/smallmind/fs/smq"
)

// ConvertGGUFToSMQ reads every tensor in a GGUF checkpoint at inPath
// and writes them to outPath as a native SMQ container, preserving
// each tensor's on-disk quantization exactly (no re-quantization: only
// the container format changes). It is the command-line import-gguf
// operation's implementation.
func ConvertGGUFToSMQ(inPath, outPath string) error {
	f, err := gguf.Open(inPath)
	if err != nil {
		return invalidModelf("opening %s: %v", inPath, err)
	}
	defer f.Close()

	arch := f.KeyValue("general.architecture").String()
	if arch == "" {
		return invalidModelf("missing general.architecture")
	}

	profile, err := profileFor(arch)
	if err != nil {
		return err
	}

	cfg, err := buildConfig(f, profile)
	if err != nil {
		return err
	}

	var tensors []smq.Tensor
	var schemes = map[string]bool{}

	for _, ti := range f.TensorInfos() {
		t, err := convertTensor(f, ti)
		if err != nil {
			return err
		}
		tensors = append(tensors, t)
		schemes[t.Dtype] = true
	}

	quantSchemes := make([]string, 0, len(schemes))
	for s := range schemes {
		quantSchemes = append(quantSchemes, s)
	}

	manifest := smq.Manifest{
		ModelName:    arch,
		CreatedUTC:   time.Now().UTC().Format(time.RFC3339),
		QuantSchemes: quantSchemes,
		ModelDims: smq.ModelDims{
			NumLayers:     cfg.NumLayers,
			HiddenDim:     cfg.EmbedDim,
			VocabSize:     cfg.VocabSize,
			ContextLength: cfg.MaxContext,
			NumHeads:      cfg.NumHeads,
			NumKVHeads:    cfg.NumKVHeads,
			HeadDim:       cfg.HeadDim,
			MLPHidden:     cfg.MLPHidden,
			RopeBase:      cfg.RopeBase,
			NormEps:       cfg.NormEps,
			MLPKind:       string(cfg.MLPKind),
			PositionEmbed: string(cfg.PositionEmbed),
		},
	}

	return smq.Write(outPath, manifest, tensors)
}

func convertTensor(f *gguf.File, ti gguf.TensorInfo) (smq.Tensor, error) {
	_, r, err := f.TensorReader(ti.Name)
	if err != nil {
		return smq.Tensor{}, invalidModelf("tensor %s: %v", ti.Name, err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return smq.Tensor{}, invalidModelf("tensor %s: reading bytes: %v", ti.Name, err)
	}

	tag, ok := quantTagFor(ti.Type)
	if !ok {
		return smq.Tensor{}, unsupportedConversionf("tensor %s: gguf type %s has no supported quant.Tag", ti.Name, ti.Type)
	}

	shape := make([]int, len(ti.Shape))
	for i, d := range ti.Shape {
		shape[i] = int(d)
	}

	blockSize := 1
	if tag.IsBlockQuantized() {
		blockSize = ggufBlockSize(tag)
	}

	return smq.Tensor{
		Name:      ti.Name,
		Dtype:     tag.String(),
		Shape:     shape,
		BlockSize: blockSize,
		Data:      raw,
	}, nil
}
