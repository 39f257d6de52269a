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
	"io"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/root"
	"github.com/sigstore/sigstore/pkg/signature"
	sigoptions "github.com/sigstore/sigstore/pkg/signature/options"
)

// resolveVerificationKey returns the crypto.PublicKey to check a signature
// against, taking it from either the embedded leaf certificate or the
// trust material's public-key index (spec §4.3/§4.9 step 5).
func resolveVerificationKey(vc bundle.VerificationContent, trustedMaterial root.TrustedMaterial) (crypto.PublicKey, error) {
	if cert := vc.GetCertificate(); cert != nil {
		return cert.PublicKey, nil
	}

	hint := vc.GetPublicKeyHint()
	entry, err := trustedMaterial.PublicKeyVerifier(hint)
	if err != nil {
		return nil, wrapf(PublicKeyError, err, "resolving public key for hint %q", hint)
	}
	return entry.Key, nil
}

// VerifySignature verifies a DSSE envelope's signature without reference to
// any artifact, per spec §4.3's DSSE verification step.
func VerifySignature(content bundle.SignatureContent, vc bundle.VerificationContent, trustedMaterial root.TrustedMaterial) error {
	env := content.EnvelopeContent()
	if env == nil {
		return newError(SignatureError, "VerifySignature requires a DSSE envelope", nil)
	}

	key, err := resolveVerificationKey(vc, trustedMaterial)
	if err != nil {
		return err
	}

	pae := preAuthEncoding(env.PayloadType, env.Payload)
	if err := verifySignature(key, pae, content.Signature(), crypto.SHA256); err != nil {
		return wrapf(SignatureError, err, "dsse signature verification failed")
	}
	return nil
}

// VerifySignatureWithArtifact verifies a message-signature entity's
// signature over the provided artifact, per spec §4.3: first the digest
// must match, then the signature must verify over the artifact bytes. For
// a DSSE entity, the artifact's digest is compared against the envelope's
// statement subject.
func VerifySignatureWithArtifact(content bundle.SignatureContent, vc bundle.VerificationContent, trustedMaterial root.TrustedMaterial, artifact io.Reader) error {
	data, err := io.ReadAll(artifact)
	if err != nil {
		return wrapf(SignatureError, err, "reading artifact")
	}

	if env := content.EnvelopeContent(); env != nil {
		if err := verifyStatementSubjectDigest(env, data, "sha256"); err != nil {
			return err
		}
		return VerifySignature(content, vc, trustedMaterial)
	}

	ms := content.MessageSignatureContent()
	if ms == nil {
		return newError(SignatureError, "no data for message signature", nil)
	}

	sum, err := digest(ms.Algorithm, data)
	if err != nil {
		return wrapf(SignatureError, err, "computing artifact digest")
	}
	if !constantTimeEqual(sum, ms.Digest) {
		return newError(SignatureError, "artifact digest does not match message signature digest", nil)
	}

	key, err := resolveVerificationKey(vc, trustedMaterial)
	if err != nil {
		return err
	}
	if err := verifySignature(key, data, content.Signature(), hashFuncFor(ms.Algorithm)); err != nil {
		return wrapf(SignatureError, err, "message signature verification failed")
	}
	return nil
}

// VerifySignatureWithArtifactDigest is VerifySignatureWithArtifact, but
// given a precomputed artifact digest instead of the artifact bytes. Only
// valid for message signatures whose key algorithm can sign a digest
// directly (not Ed25519, spec's WithArtifactDigest doc comment in the
// reference verifier).
func VerifySignatureWithArtifactDigest(content bundle.SignatureContent, vc bundle.VerificationContent, trustedMaterial root.TrustedMaterial, artifactDigest []byte, algorithm string) error {
	ms := content.MessageSignatureContent()
	if ms == nil {
		return newError(SignatureError, "no data for message signature", nil)
	}
	if !constantTimeEqual(artifactDigest, ms.Digest) {
		return newError(SignatureError, "artifact digest does not match message signature digest", nil)
	}

	key, err := resolveVerificationKey(vc, trustedMaterial)
	if err != nil {
		return err
	}
	verifier, err := signature.LoadVerifier(key, hashFuncFor(algorithm))
	if err != nil {
		return wrapf(SignatureError, err, "loading verifier")
	}
	if err := verifier.VerifySignature(bytesReader(content.Signature()), nil, sigoptions.WithDigest(artifactDigest)); err != nil {
		return wrapf(SignatureError, err, "message signature verification failed")
	}
	return nil
}

// verifyStatementSubjectDigest checks that artifact's digest appears among
// a DSSE envelope's in-toto statement subjects under the given algorithm
// name.
func verifyStatementSubjectDigest(env *bundle.DSSEEnvelope, artifact []byte, algorithm string) error {
	stmt, err := statementFromEnvelope(env)
	if err != nil {
		return wrapf(SignatureError, err, "parsing dsse statement")
	}

	sum, err := digest(algoNameToBundleName(algorithm), artifact)
	if err != nil {
		return wrapf(SignatureError, err, "computing artifact digest")
	}

	for _, subj := range stmt.Subject {
		if hexDigest, ok := subj.Digest[algorithm]; ok {
			want, err := hexDecode(hexDigest)
			if err == nil && constantTimeEqual(sum, want) {
				return nil
			}
		}
	}
	return newError(SignatureError, "artifact does not match any subject digest in the dsse statement", nil)
}

func algoNameToBundleName(algorithm string) string {
	switch algorithm {
	case "sha384":
		return string(algSHA384)
	default:
		return string(algSHA256)
	}
}
