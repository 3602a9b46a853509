package program

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownVariant = errors.New("unknown protocol variant")

// Variant binds a protocol version to its instruction names, circuit and
// vector length.
type Variant struct {
	Name            string
	Segments        int
	Instruction     string
	InitInstruction string
	Circuit         string
}

const (
	VariantDNA4 = "dna4"
	VariantDNA8 = "dna8"
)

var variants = map[string]Variant{
	VariantDNA4: {
		Name:            VariantDNA4,
		Segments:        4,
		Instruction:     "request_genomic_match",
		InitInstruction: "init_dna_config",
		Circuit:         "compute_dna_similarity",
	},
	VariantDNA8: {
		Name:            VariantDNA8,
		Segments:        8,
		Instruction:     "request_genomic_match_wide",
		InitInstruction: "init_dna_wide_config",
		Circuit:         "compute_dna_similarity_wide",
	},
}

func LookupVariant(name string) (Variant, error) {
	v, ok := variants[name]
	if !ok {
		return Variant{}, errors.Wrapf(ErrUnknownVariant, "lookup %q", name)
	}
	return v, nil
}

// Variants lists every supported variant ordered by segment count.
func Variants() []Variant {
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Segments < out[j].Segments
	})
	return out
}
