// Package blindsign implements Chaum's RSA blind-signature protocol over the
// issuer's 2048-bit RSA key: a voter blinds a token, the issuer signs the
// blinded value without ever observing the token, and the voter unblinds the
// result into a signature that verifies against the original token. The
// issuer cannot link the signature it produced to the token it eventually
// signs for anyone who presents it.
//
// Hashing the token before blinding binds the signature to the token rather
// than to an arbitrary chosen integer, which is what makes forgery by
// picking a convenient blinded value infeasible. This is a textbook
// construction, not a hardened full-domain-hash scheme: a deployment
// worried about the (SHA-256 mod n) truncation would move to RSA-PSS-blind
// or a dedicated full-domain hash.
package blindsign

import (
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/quorumvote/ballotvault/util"
)

// KeySize is the RSA modulus size, in bits, used for the issuer key.
const KeySize = 2048

// ErrInvalidBlindingFactor is returned when a blinding factor has no
// multiplicative inverse modulo n (vanishingly unlikely for a uniformly
// sampled r against a 2048-bit modulus, but checked regardless).
var ErrInvalidBlindingFactor = errors.New("blindsign: blinding factor has no inverse mod n")

// hashToField reduces SHA-256(token) into Z_n, the approximation of a
// full-domain hash this construction relies on.
func hashToField(token []byte, n *big.Int) *big.Int {
	sum := sha256.Sum256(token)
	m := new(big.Int).SetBytes(sum[:])
	return m.Mod(m, n)
}

// Blind masks token under the issuer's public key, returning the blinded
// bytes to send to the issuer and the blinding factor r to keep secret for
// later unblinding. r is drawn uniformly from [2, n) by rejection sampling;
// a deployment that wants to eliminate even the negligible chance of a
// non-coprime r can additionally check gcd(r, n) == 1 before accepting it.
func Blind(token []byte, pub *rsa.PublicKey) (blinded []byte, r *big.Int, err error) {
	n := pub.N
	e := big.NewInt(int64(pub.E))

	m := hashToField(token, n)

	for {
		candidate := new(big.Int).SetBytes(util.RandomBytes(KeySize / 8))
		candidate.Mod(candidate, n)
		if candidate.Cmp(big.NewInt(1)) <= 0 {
			continue
		}
		r = candidate
		break
	}

	rE := new(big.Int).Exp(r, e, n)
	blindedInt := new(big.Int).Mul(m, rE)
	blindedInt.Mod(blindedInt, n)

	return blindedInt.Bytes(), r, nil
}

// Sign computes the issuer's blind signature over a blinded value, using the
// issuer's private exponent. It performs no validation of blinded beyond
// decoding it as an integer; callers that want to reject blinded >= n may do
// so before calling Sign.
func Sign(blinded []byte, priv *rsa.PrivateKey) *big.Int {
	blindedInt := new(big.Int).SetBytes(blinded)
	return new(big.Int).Exp(blindedInt, priv.D, priv.N)
}

// Unblind removes the blinding factor r from a blind signature, producing a
// signature that verifies directly against the original (unblinded) token.
func Unblind(blindSig, r *big.Int, pub *rsa.PublicKey) (*big.Int, error) {
	rInv := new(big.Int).ModInverse(r, pub.N)
	if rInv == nil {
		return nil, ErrInvalidBlindingFactor
	}
	sig := new(big.Int).Mul(blindSig, rInv)
	sig.Mod(sig, pub.N)
	return sig, nil
}

// Verify reports whether sig is a valid signature over token under pub.
func Verify(token []byte, sig *big.Int, pub *rsa.PublicKey) bool {
	m := hashToField(token, pub.N)
	e := big.NewInt(int64(pub.E))
	recovered := new(big.Int).Exp(sig, e, pub.N)
	return recovered.Cmp(m) == 0
}

// Nullifier derives the deterministic, one-way spent-set identifier for a
// token: lowercase hex SHA-256, 64 characters.
func Nullifier(token []byte) string {
	sum := sha256.Sum256(token)
	return fmt.Sprintf("%x", sum[:])
}
