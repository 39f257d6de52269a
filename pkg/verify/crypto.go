// Copyright 2025 The Sigstore Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verify

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
	"github.com/sigstore/sigstore/pkg/signature"
	sigoptions "github.com/sigstore/sigstore/pkg/signature/options"
)

// digestAlgorithm names the two hash functions spec §4.1 requires.
type digestAlgorithm string

const (
	algSHA256 digestAlgorithm = "SHA2_256"
	algSHA384 digestAlgorithm = "SHA2_384"
)

// digest computes the hash of data under the named algorithm, spec §4.1.
func digest(alg string, data []byte) ([]byte, error) {
	switch digestAlgorithm(alg) {
	case algSHA256, "":
		sum := sha256.Sum256(data)
		return sum[:], nil
	case algSHA384:
		sum := sha512.Sum384(data)
		return sum[:], nil
	default:
		return nil, fmt.Errorf("unsupported digest algorithm %q", alg)
	}
}

// hashFuncFor maps a digest algorithm name to its crypto.Hash, for
// constructing a signature.Verifier.
func hashFuncFor(alg string) crypto.Hash {
	switch digestAlgorithm(alg) {
	case algSHA384:
		return crypto.SHA384
	default:
		return crypto.SHA256
	}
}

// constantTimeEqual compares two byte slices in constant time, used
// whenever this package compares digests or MACs (spec §4.1, §9).
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// verifySignature checks sig over data using key, dispatching across
// PKIX ECDSA P-256/P-384, RSA PKCS1v15/PSS, and Ed25519 via the
// sigstore/sigstore signature.Verifier abstraction (spec §4.1).
func verifySignature(key crypto.PublicKey, data, sig []byte, hash crypto.Hash) error {
	verifier, err := signature.LoadVerifier(key, hash)
	if err != nil {
		return fmt.Errorf("loading verifier: %w", err)
	}
	err = verifier.VerifySignature(bytesReader(sig), bytesReader(data), sigoptions.WithCryptoSignerOpts(hash))
	if rsaKey, ok := key.(*rsa.PublicKey); ok && err != nil {
		// LoadVerifier checks RSA keys as PKCS#1 v1.5; try PSS before failing.
		pssVerifier, pssErr := signature.LoadRSAPSSVerifier(rsaKey, hash, nil)
		if pssErr == nil && pssVerifier.VerifySignature(bytesReader(sig), bytesReader(data)) == nil {
			return nil
		}
	}
	return err
}

// pemToDER accepts either PEM or raw DER and always returns DER, per
// spec §4.1's "PEM↔DER: ... for DER input pass-through."
func pemToDER(data []byte) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		// Not PEM; assume the caller already has DER. Validate it parses
		// as at least one of the shapes we expect to avoid silently
		// accepting garbage.
		if _, err := x509.ParseCertificate(data); err == nil {
			return data, nil
		}
		if _, err := x509.ParsePKIXPublicKey(data); err == nil {
			return data, nil
		}
		return nil, fmt.Errorf("invalid key or certificate encoding")
	}
	return block.Bytes, nil
}

// publicKeyToDER normalizes any supported public key to its SPKI DER
// encoding, for the PEM-vs-DER-agnostic comparisons spec §9 requires.
func publicKeyToDER(key crypto.PublicKey) ([]byte, error) {
	return cryptoutils.MarshalPublicKeyToDER(key)
}

// certificateFromPEMOrDER parses a certificate that may be PEM or DER
// encoded.
func certificateFromPEMOrDER(data []byte) (*x509.Certificate, error) {
	if certs, err := cryptoutils.UnmarshalCertificatesFromPEM(data); err == nil && len(certs) > 0 {
		return certs[0], nil
	}
	return x509.ParseCertificate(data)
}
