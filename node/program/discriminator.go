package program

import "crypto/sha256"

const DiscriminatorSize = 8

// Discriminator is the anchor prefix identifying an instruction, account or
// event: the first eight bytes of SHA-256("<namespace>:<name>").
type Discriminator [DiscriminatorSize]byte

func NewDiscriminator(namespace string, name string) Discriminator {
	digest := sha256.Sum256([]byte(namespace + ":" + name))
	var d Discriminator
	copy(d[:], digest[:DiscriminatorSize])
	return d
}

func InstructionDiscriminator(name string) Discriminator {
	return NewDiscriminator("global", name)
}

func EventDiscriminator(name string) Discriminator {
	return NewDiscriminator("event", name)
}

func AccountDiscriminator(name string) Discriminator {
	return NewDiscriminator("account", name)
}
