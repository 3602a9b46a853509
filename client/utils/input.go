package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Silent-Builder-x/ArcDNA/node/app"
	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

// BatchFile is the YAML input of match-batch.
type BatchFile struct {
	Variant string      `yaml:"variant"`
	Pairs   []BatchPair `yaml:"pairs"`
}

type BatchPair struct {
	User   []uint64 `yaml:"user"`
	Target []uint64 `yaml:"target"`
}

func (b *BatchFile) MatchPairs() []app.MatchPair {
	pairs := make([]app.MatchPair, 0, len(b.Pairs))
	for _, p := range b.Pairs {
		pairs = append(pairs, app.MatchPair{User: p.User, Target: p.Target})
	}
	return pairs
}

// ParseSegments parses a comma separated list of unsigned segment values.
func ParseSegments(value string) ([]uint64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, errors.New("no segments given")
	}

	parts := strings.Split(value, ",")
	segments := make([]uint64, 0, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "segment %d", i)
		}
		segments = append(segments, v)
	}
	return segments, nil
}

func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load batch file")
	}

	batch := &BatchFile{}
	if err := yaml.UnmarshalStrict(data, batch); err != nil {
		return nil, errors.Wrap(err, "load batch file")
	}
	if len(batch.Pairs) == 0 {
		return nil, errors.Wrap(errors.New("no pairs"), "load batch file")
	}

	return batch, nil
}

// FormatMatch renders a result the way the match command prints it.
func FormatMatch(result *computation.MatchResult) string {
	return fmt.Sprintf(
		"Similarity Score: %d / %d\nIs Relative? %t\n",
		result.Score,
		result.Segments,
		result.Related(),
	)
}

func FormatMatchLine(result *computation.MatchResult) string {
	return fmt.Sprintf(
		"score %d / %d, relative %t",
		result.Score,
		result.Segments,
		result.Related(),
	)
}
