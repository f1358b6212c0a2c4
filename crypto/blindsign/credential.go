package blindsign

import (
	"encoding/base64"
	"encoding/hex"
	"math/big"
)

// Credential is a single-use voting credential: a secret token and the
// issuer's unblinded signature over it. It is never persisted by the
// system; the voter holds it client-side until cast.
type Credential struct {
	Token     []byte
	Signature *big.Int
}

// IntToBase64 encodes a non-negative big integer as base64 of its minimal
// big-endian byte representation, for JSON transport.
func IntToBase64(n *big.Int) string {
	return base64.StdEncoding.EncodeToString(n.Bytes())
}

// Base64ToInt decodes a base64 string produced by IntToBase64 back into an
// integer.
func Base64ToInt(s string) (*big.Int, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// TokenToHex encodes a token as lowercase hex.
func TokenToHex(token []byte) string {
	return hex.EncodeToString(token)
}

// HexToToken decodes a lowercase hex string back into token bytes.
func HexToToken(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// SerializeCredential renders a credential as its wire form: token as hex,
// signature as base64.
func SerializeCredential(c Credential) (tokenHex, sigB64 string) {
	return TokenToHex(c.Token), IntToBase64(c.Signature)
}

// DeserializeCredential parses the wire form produced by SerializeCredential
// back into a Credential.
func DeserializeCredential(tokenHex, sigB64 string) (Credential, error) {
	token, err := HexToToken(tokenHex)
	if err != nil {
		return Credential{}, err
	}
	sig, err := Base64ToInt(sigB64)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, Signature: sig}, nil
}
