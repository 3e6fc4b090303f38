// Package otpcode generates six-digit one-time login codes.
//
// Two sources are provided. PseudoRandom is the default: a code lives for five
// minutes, is single use and only ever travels by email, so a non-cryptographic
// generator is acceptable for this threat model. Crypto draws from crypto/rand
// for deployments that want unpredictable codes regardless of that model.
package otpcode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
)

// Codes are drawn uniformly from [Min, Max], so they always render as six digits.
const (
	Min = 100000
	Max = 999999
)

var span = big.NewInt(Max - Min + 1)

// Generator produces one-time codes.
type Generator interface {
	Generate() (string, error)
}

// PseudoRandom draws codes from math/rand/v2. Never returns an error.
type PseudoRandom struct{}

func (PseudoRandom) Generate() (string, error) {
	return fmt.Sprintf("%06d", Min+mrand.IntN(Max-Min+1)), nil
}

// Crypto draws codes from crypto/rand.
type Crypto struct{}

func (Crypto) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", Min+n.Int64()), nil
}

// New returns Crypto when cryptoRand is set, PseudoRandom otherwise.
func New(cryptoRand bool) Generator {
	if cryptoRand {
		return Crypto{}
	}
	return PseudoRandom{}
}
