package crypto

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm is the type to define the hash algorithm of a factory.
type HashAlgorithm int

const (
	// Sha256 is the identifier of the SHA-256 algorithm.
	Sha256 HashAlgorithm = iota

	// Sha3_224 is the identifier of the SHA3-224 algorithm.
	Sha3_224
)

// hashFactory is a hash factory that is using SHA algorithms.
//
// - implements crypto.HashFactory
type hashFactory struct {
	hashType HashAlgorithm
}

// NewSha256Factory returns a factory producing SHA-256 hashes.
func NewSha256Factory() HashFactory {
	return hashFactory{Sha256}
}

// NewHashFactory returns a factory for the given algorithm.
func NewHashFactory(a HashAlgorithm) HashFactory {
	return hashFactory{a}
}

// New implements crypto.HashFactory. It returns a new hash instance.
func (f hashFactory) New() hash.Hash {
	switch f.hashType {
	case Sha256:
		return sha256.New()
	case Sha3_224:
		return sha3.New224()
	default:
		panic("unknown hash algorithm")
	}
}
