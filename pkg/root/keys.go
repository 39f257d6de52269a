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

package root

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"strings"
)

// pemEncodeSPKI wraps a raw SPKI DER blob in a PEM PUBLIC KEY block, so it
// can be fed through cryptoutils.UnmarshalPEMToPublicKey the same way the
// rest of the codebase parses embedded keys.
func pemEncodeSPKI(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

// x509ParsePKIXFallback parses a raw SPKI DER blob directly, for trust roots
// that hand us naked DER instead of PEM-wrapped DER.
func x509ParsePKIXFallback(der []byte) (crypto.PublicKey, error) {
	return x509.ParsePKIXPublicKey(der)
}

// hashFuncFor maps a trust root's declared key_details string to the hash
// algorithm its signatures are computed with (spec §4.5: "Signature
// algorithm derives from the log's declared key_details").
func hashFuncFor(keyDetails string) crypto.Hash {
	switch {
	case strings.Contains(keyDetails, "384"):
		return crypto.SHA384
	case strings.Contains(keyDetails, "512"):
		return crypto.SHA512
	default:
		return crypto.SHA256
	}
}
