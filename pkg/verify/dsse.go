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
	"encoding/json"
	"fmt"

	"github.com/in-toto/in-toto-golang/in_toto"
	"github.com/secure-systems-lab/go-securesystemslib/dsse"
	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

// preAuthEncoding computes the DSSE Pre-Authentication Encoding over
// payloadType and payload, spec §4.3/GLOSSARY:
// "DSSEv1 "||len(pt)||" "||pt||" "||len(p)||" "||p
func preAuthEncoding(payloadType string, payload []byte) []byte {
	return dsse.PAE(payloadType, payload)
}

// signatureContentBytes returns the exact bytes a bundle's signature
// covers, per spec §4.3: the raw artifact for a message signature, or the
// DSSE PAE for an envelope.
func signatureContentBytes(content bundle.SignatureContent) []byte {
	if env := content.EnvelopeContent(); env != nil {
		return preAuthEncoding(env.PayloadType, env.Payload)
	}
	return nil // message-signature content is supplied by the caller's artifact
}

// statementFromEnvelope parses a DSSE envelope's payload as an in-toto
// statement, used to populate VerificationResult.Statement and to compare
// artifact digests against the statement's subject.
func statementFromEnvelope(env *bundle.DSSEEnvelope) (*in_toto.Statement, error) {
	var stmt in_toto.Statement
	if err := json.Unmarshal(env.Payload, &stmt); err != nil {
		return nil, fmt.Errorf("parsing dsse payload as in-toto statement: %w", err)
	}
	return &stmt, nil
}
