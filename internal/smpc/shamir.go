package smpc

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/suprachakra/AeroFusionXR-sub002/pkg/errors"
)

// defaultModulusStr is the 256-bit prime 2^256 - 2^32 - 977 used as the
// field modulus when no modulus is supplied.
const defaultModulusStr = "115792089237316195423570985008687907853269984665640564039457584007908834671663"

// Share is one (index, value) point of a split secret. Shares are ephemeral:
// they are created at split time and consumed once at reconstruction.
type Share struct {
	Index *big.Int
	Value *big.Int
}

// Clone returns an independent copy of the share
func (s Share) Clone() Share {
	return Share{
		Index: new(big.Int).Set(s.Index),
		Value: new(big.Int).Set(s.Value),
	}
}

// SecretSharingScheme implements Shamir threshold secret sharing over a fixed
// prime modulus. All arithmetic is exact modular integer arithmetic; floating
// point never appears in share generation or reconstruction. Fewer than
// threshold shares carry no information about the secret.
type SecretSharingScheme struct {
	prime *big.Int
}

// NewSecretSharingScheme creates a scheme over the given prime modulus.
// A nil modulus selects the default 256-bit prime.
func NewSecretSharingScheme(prime *big.Int) (*SecretSharingScheme, error) {
	if prime == nil {
		p, ok := new(big.Int).SetString(defaultModulusStr, 10)
		if !ok {
			return nil, errors.NewInternalError("failed to parse default modulus")
		}
		prime = p
	}
	if prime.Sign() <= 0 || !prime.ProbablyPrime(20) {
		return nil, errors.NewInvalidParameterError("modulus must be a positive prime")
	}
	return &SecretSharingScheme{prime: prime}, nil
}

// Modulus returns the field modulus
func (s *SecretSharingScheme) Modulus() *big.Int {
	return new(big.Int).Set(s.prime)
}

// Share splits secret into n shares with reconstruction threshold t: it draws
// t-1 random coefficients, forms the degree-(t-1) polynomial whose constant
// term is the secret, and evaluates it at the nonzero points 1..n.
func (s *SecretSharingScheme) Share(secret *big.Int, n, t int) ([]Share, error) {
	if secret == nil {
		return nil, errors.NewInvalidParameterError("secret is required")
	}
	if n < 1 {
		return nil, errors.NewInvalidParameterError("share count must be at least 1")
	}
	if t < 1 || t > n {
		return nil, errors.NewInvalidParameterError(fmt.Sprintf("threshold %d must be in [1, %d]", t, n))
	}

	// Lift the secret into the field; negative values wrap to p - |v|.
	constant := new(big.Int).Mod(secret, s.prime)

	coefficients := make([]*big.Int, t-1)
	for i := range coefficients {
		c, err := rand.Int(rand.Reader, s.prime)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeAggregation, "RANDOM_COEFFICIENT", "failed to draw polynomial coefficient")
		}
		coefficients[i] = c
	}

	shares := make([]Share, n)
	for i := 0; i < n; i++ {
		x := big.NewInt(int64(i + 1))
		shares[i] = Share{
			Index: x,
			Value: s.evaluatePolynomial(constant, coefficients, x),
		}
	}
	return shares, nil
}

// Reconstruct recovers the secret from at least threshold shares using
// Lagrange interpolation at x=0. Share indexes must be distinct.
func (s *SecretSharingScheme) Reconstruct(shares []Share, threshold int) (*big.Int, error) {
	if len(shares) < threshold {
		return nil, errors.NewInsufficientSharesError(threshold, len(shares))
	}

	subset := shares[:threshold]
	seen := make(map[string]struct{}, threshold)
	for _, sh := range subset {
		if sh.Index == nil || sh.Value == nil {
			return nil, errors.NewInvalidParameterError("share index and value are required")
		}
		key := sh.Index.String()
		if _, dup := seen[key]; dup {
			return nil, errors.WrapError(errors.ErrDuplicateShare, errors.ErrorTypeAggregation,
				errors.CodeDuplicateShare, fmt.Sprintf("duplicate share index %s", key))
		}
		seen[key] = struct{}{}
	}

	return s.lagrangeAtZero(subset), nil
}

// evaluatePolynomial computes constant + sum(coeff_i * x^(i+1)) mod p
func (s *SecretSharingScheme) evaluatePolynomial(constant *big.Int, coefficients []*big.Int, x *big.Int) *big.Int {
	result := new(big.Int).Set(constant)
	xPower := new(big.Int).Set(x)

	for _, coeff := range coefficients {
		term := new(big.Int).Mul(coeff, xPower)
		result.Add(result, term)
		result.Mod(result, s.prime)

		xPower.Mul(xPower, x)
		xPower.Mod(xPower, s.prime)
	}
	return result
}

// lagrangeAtZero interpolates the polynomial through the shares and
// evaluates it at x=0, recovering the constant term.
func (s *SecretSharingScheme) lagrangeAtZero(shares []Share) *big.Int {
	result := big.NewInt(0)

	for i, share := range shares {
		numerator := big.NewInt(1)
		denominator := big.NewInt(1)

		for j, other := range shares {
			if i == j {
				continue
			}
			numerator.Mul(numerator, new(big.Int).Neg(other.Index))
			numerator.Mod(numerator, s.prime)

			diff := new(big.Int).Sub(share.Index, other.Index)
			denominator.Mul(denominator, diff)
			denominator.Mod(denominator, s.prime)
		}

		invDenominator := new(big.Int).ModInverse(denominator, s.prime)
		if invDenominator == nil {
			// Distinct indexes under a prime modulus always have an inverse.
			continue
		}

		term := new(big.Int).Mul(share.Value, numerator)
		term.Mul(term, invDenominator)
		term.Mod(term, s.prime)

		result.Add(result, term)
		result.Mod(result, s.prime)
	}
	return result
}

// CenteredLift maps a field element back to a signed integer, interpreting
// values above p/2 as negative.
func (s *SecretSharingScheme) CenteredLift(v *big.Int) *big.Int {
	half := new(big.Int).Rsh(s.prime, 1)
	out := new(big.Int).Mod(v, s.prime)
	if out.Cmp(half) > 0 {
		out.Sub(out, s.prime)
	}
	return out
}
