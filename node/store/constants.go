package store

// Top level key prefixes
const (
	COMPUTATION = 0x10
	PROFILE     = 0x11
)

// Computation index prefixes
const (
	COMPUTATION_BY_OFFSET = 0x00
)

// Profile index prefixes
const (
	PROFILE_BY_PAYER = 0x00
)
