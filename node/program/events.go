package program

import (
	"encoding/base64"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/pkg/errors"

	"github.com/Silent-Builder-x/ArcDNA/types/computation"
)

const (
	programDataPrefix = "Program data: "

	DnaMatchEventName = "DnaMatchEvent"
)

var dnaMatchEventDiscriminator = EventDiscriminator(DnaMatchEventName)

// DnaMatchEvent is emitted by the computation callback with the encrypted
// similarity result.
type DnaMatchEvent struct {
	EncryptedScore      [32]byte
	EncryptedIsRelative [32]byte
	Nonce               [16]byte
}

// Result converts the event into the encrypted computation output, ordered
// score then relative flag.
func (e *DnaMatchEvent) Result() *computation.ComputationResult {
	return &computation.ComputationResult{
		EncryptedOutputs: []computation.CiphertextBlock{
			e.EncryptedScore,
			e.EncryptedIsRelative,
		},
		Nonce: e.Nonce,
	}
}

// EventPayloads extracts every anchor event record from a transaction's
// log messages. Lines that are not valid base64 are skipped.
func EventPayloads(logs []string) [][]byte {
	var payloads [][]byte
	for _, line := range logs {
		if !strings.HasPrefix(line, programDataPrefix) {
			continue
		}

		payload, err := base64.StdEncoding.DecodeString(
			strings.TrimPrefix(line, programDataPrefix),
		)
		if err != nil || len(payload) < DiscriminatorSize {
			continue
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

// IsDnaMatchEvent reports whether payload carries the DnaMatchEvent
// discriminator.
func IsDnaMatchEvent(payload []byte) bool {
	return len(payload) >= DiscriminatorSize &&
		Discriminator(payload[:DiscriminatorSize]) == dnaMatchEventDiscriminator
}

func DecodeDnaMatchEvent(payload []byte) (*DnaMatchEvent, error) {
	if !IsDnaMatchEvent(payload) {
		return nil, errors.Wrap(
			errors.New("not a dna match event"),
			"decode dna match event",
		)
	}

	event := &DnaMatchEvent{}
	if err := bin.UnmarshalBorsh(event, payload[DiscriminatorSize:]); err != nil {
		return nil, errors.Wrap(err, "decode dna match event")
	}

	return event, nil
}

// EncodeDnaMatchEvent renders the event the way the program logs it.
func EncodeDnaMatchEvent(event *DnaMatchEvent) (string, error) {
	body, err := bin.MarshalBorsh(event)
	if err != nil {
		return "", errors.Wrap(err, "encode dna match event")
	}

	payload := make([]byte, 0, DiscriminatorSize+len(body))
	payload = append(payload, dnaMatchEventDiscriminator[:]...)
	payload = append(payload, body...)
	return programDataPrefix + base64.StdEncoding.EncodeToString(payload), nil
}
