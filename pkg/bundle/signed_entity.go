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

package bundle

import (
	"crypto/x509"
	"fmt"
)

// SignedEntity is the normalized view a bundle exposes to the verify
// package (spec §3). All entities are immutable once constructed.
type SignedEntity interface {
	VerificationContent() (VerificationContent, error)
	SignatureContent() (SignatureContent, error)
	TlogEntries() ([]TransparencyLogEntry, error)
	Timestamps() ([][]byte, error) // raw DER RFC3161 TimeStampResp tokens

	// RequiresInclusionPromise and RequiresInclusionProof report which kind
	// of transparency-log evidence this entity's bundle version makes
	// mandatory (spec §3): the SET for v0.1, the inclusion proof for v0.2+.
	RequiresInclusionPromise() bool
	RequiresInclusionProof() bool
}

// VerificationContent exposes the key material a bundle was signed with:
// either a certificate or a bare public-key hint, never both.
type VerificationContent interface {
	GetCertificate() *x509.Certificate
	GetPublicKeyHint() string
}

// SignatureContent exposes the bytes a bundle's signature covers, and lets
// a caller drill into whichever content kind is actually present.
type SignatureContent interface {
	// Signature is the raw signature bytes to verify.
	Signature() []byte
	// EnvelopeContent returns non-nil if this is a DSSE-signed entity.
	EnvelopeContent() *DSSEEnvelope
	// MessageSignatureContent returns non-nil if this is a message-signature entity.
	MessageSignatureContent() *MessageSignature
}

type verificationContent struct {
	cert *x509.Certificate
	hint string
}

func (v verificationContent) GetCertificate() *x509.Certificate { return v.cert }
func (v verificationContent) GetPublicKeyHint() string          { return v.hint }

type signatureContent struct {
	sig      []byte
	envelope *DSSEEnvelope
	message  *MessageSignature
}

func (s signatureContent) Signature() []byte                       { return s.sig }
func (s signatureContent) EnvelopeContent() *DSSEEnvelope           { return s.envelope }
func (s signatureContent) MessageSignatureContent() *MessageSignature { return s.message }

var _ SignedEntity = (*Bundle)(nil)

// VerificationContent implements SignedEntity by parsing whichever key
// variant this bundle's verification_material carries.
func (b *Bundle) VerificationContent() (VerificationContent, error) {
	switch b.VerificationMaterial.Kind {
	case KindCertificate:
		cert, err := x509.ParseCertificate(b.VerificationMaterial.Certificate)
		if err != nil {
			return nil, fmt.Errorf("parsing leaf certificate: %w", err)
		}
		return verificationContent{cert: cert}, nil
	case KindX509CertificateChain:
		if len(b.VerificationMaterial.X509CertificateChain) == 0 {
			return nil, fmt.Errorf("x509 certificate chain is empty")
		}
		cert, err := x509.ParseCertificate(b.VerificationMaterial.X509CertificateChain[0])
		if err != nil {
			return nil, fmt.Errorf("parsing leaf certificate: %w", err)
		}
		return verificationContent{cert: cert}, nil
	case KindPublicKey:
		return verificationContent{hint: b.VerificationMaterial.PublicKeyHint}, nil
	default:
		return nil, fmt.Errorf("bundle has no verification material")
	}
}

// CertificateChain returns the full leaf-first chain of parsed certificates
// when the bundle carries one (v0.1/v0.2 bundles). v0.3 bundles carrying
// only a single leaf certificate return just that certificate; the
// remainder of the chain is expected to come from trust material.
func (b *Bundle) CertificateChain() ([]*x509.Certificate, error) {
	var ders [][]byte
	switch b.VerificationMaterial.Kind {
	case KindX509CertificateChain:
		ders = b.VerificationMaterial.X509CertificateChain
	case KindCertificate:
		ders = [][]byte{b.VerificationMaterial.Certificate}
	default:
		return nil, fmt.Errorf("bundle was not signed with a certificate")
	}

	certs := make([]*x509.Certificate, 0, len(ders))
	for _, der := range ders {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// SignatureContent implements SignedEntity, computing the "signature
// content" per spec §4.3: for message-signature, that's just a pointer to
// the bundle's own fields; for DSSE, it's the first signature (additional
// signatures are ignored at this stage per spec §4.3).
func (b *Bundle) SignatureContent() (SignatureContent, error) {
	switch b.Content.Kind {
	case ContentMessageSignature:
		return signatureContent{sig: b.Content.MessageSignature.Signature, message: b.Content.MessageSignature}, nil
	case ContentDSSEEnvelope:
		if len(b.Content.DSSEEnvelope.Signatures) == 0 {
			return nil, fmt.Errorf("dsse envelope has no signatures")
		}
		return signatureContent{sig: b.Content.DSSEEnvelope.Signatures[0].Sig, envelope: b.Content.DSSEEnvelope}, nil
	default:
		return nil, fmt.Errorf("bundle has no content")
	}
}

// TlogEntries implements SignedEntity.
func (b *Bundle) TlogEntries() ([]TransparencyLogEntry, error) {
	return b.VerificationMaterial.TlogEntries, nil
}

// Timestamps implements SignedEntity, returning the raw RFC3161 tokens.
func (b *Bundle) Timestamps() ([][]byte, error) {
	return b.VerificationMaterial.RFC3161Timestamps, nil
}

// RequiresInclusionPromise reports whether spec §3's "for v0.1 bundles the
// SET is mandatory" rule applies to this bundle's media type.
func (b *Bundle) RequiresInclusionPromise() bool {
	return b.MediaType == MediaTypeV01
}

// RequiresInclusionProof reports whether spec §3's "for v0.2+ bundles the
// inclusion proof is mandatory" rule applies to this bundle's media type.
func (b *Bundle) RequiresInclusionProof() bool {
	return b.MediaType == MediaTypeV02 || b.MediaType == MediaTypeV03
}
