package whisper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Variant is a size/accuracy tier of the Whisper model.
type Variant string

const (
	VariantTiny   Variant = "tiny"
	VariantBase   Variant = "base"
	VariantSmall  Variant = "small"
	VariantMedium Variant = "medium"
	VariantLarge  Variant = "large"
)

const DefaultVariant = VariantBase

// ErrUnknownVariant is returned for model names outside the supported set.
var ErrUnknownVariant = errors.New("unknown model variant")

// Variants lists the supported variants from smallest to largest.
func Variants() []Variant {
	return []Variant{VariantTiny, VariantBase, VariantSmall, VariantMedium, VariantLarge}
}

// ParseVariant accepts exactly one of the supported variant names.
func ParseVariant(name string) (Variant, error) {
	for _, v := range Variants() {
		if string(v) == name {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w %q (choose from %s)", ErrUnknownVariant, name, strings.Join(ModelNames(), ", "))
}

type Model struct {
	Variant  Variant
	FileName string
	URL      string
	SHA256   string
}

type ResolvedModel struct {
	Variant       Variant
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
	IsCustomPath  bool
}

var registry = map[Variant]Model{
	VariantTiny: {
		Variant:  VariantTiny,
		FileName: "ggml-tiny.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin",
		SHA256:   "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	},
	VariantBase: {
		Variant:  VariantBase,
		FileName: "ggml-base.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin",
		SHA256:   "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	},
	VariantSmall: {
		Variant:  VariantSmall,
		FileName: "ggml-small.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		SHA256:   "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	},
	VariantMedium: {
		Variant:  VariantMedium,
		FileName: "ggml-medium.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		SHA256:   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	},
	// "large" tracks the newest large checkpoint.
	VariantLarge: {
		Variant:  VariantLarge,
		FileName: "ggml-large-v3.bin",
		URL:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin",
		SHA256:   "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	},
}

func ModelNames() []string {
	names := make([]string, 0, len(registry))
	for _, v := range Variants() {
		names = append(names, string(v))
	}
	return names
}

func LookupModel(v Variant) (Model, bool) {
	model, ok := registry[v]
	return model, ok
}

// ResolveModel maps a variant name or a custom .bin path to a weights file.
func ResolveModel(modelRef, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelRef) == "" {
		modelRef = string(DefaultVariant)
	}

	if model, ok := LookupModel(Variant(modelRef)); ok {
		if strings.TrimSpace(modelDir) == "" {
			return ResolvedModel{}, errors.New("model directory must not be empty for named model")
		}

		modelPath := filepath.Join(modelDir, model.FileName)
		_, statErr := os.Stat(modelPath)
		needsDownload := errors.Is(statErr, os.ErrNotExist)
		if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("stat model path: %w", statErr)
		}

		return ResolvedModel{
			Variant:       model.Variant,
			Path:          modelPath,
			URL:           model.URL,
			SHA256:        model.SHA256,
			NeedsDownload: needsDownload,
		}, nil
	}

	if !looksLikePath(modelRef) {
		_, err := ParseVariant(modelRef)
		return ResolvedModel{}, err
	}

	customPath := filepath.Clean(modelRef)
	if _, err := os.Stat(customPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", customPath)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}

	return ResolvedModel{
		Path:         customPath,
		IsCustomPath: true,
	}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.HasSuffix(strings.ToLower(input), ".bin")
}
