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

// Package root holds the trust material a SignedEntityVerifier checks a
// bundle against: Fulcio-style certificate authorities, transparency and
// certificate-transparency logs, and timestamp authorities.
package root

import (
	"crypto"
	"crypto/x509"
	"time"
)

// CertificateAuthority is an ordered certificate chain (leaf-less; the leaf
// travels with the bundle, not the trust root) together with the window
// during which it is considered trusted.
type CertificateAuthority struct {
	Root                 *x509.Certificate
	Intermediates         []*x509.Certificate
	ValidityPeriodStart   time.Time
	ValidityPeriodEnd     time.Time
}

// ValidAt reports whether t falls within the authority's validity window.
// A zero start or end means "unbounded" on that side.
func (ca CertificateAuthority) ValidAt(t time.Time) bool {
	if !ca.ValidityPeriodStart.IsZero() && t.Before(ca.ValidityPeriodStart) {
		return false
	}
	if !ca.ValidityPeriodEnd.IsZero() && !t.Before(ca.ValidityPeriodEnd) {
		return false
	}
	return true
}

// RootPool builds an x509.CertPool containing just this authority's root, for
// use as the trust anchor in a chain-validation call.
func (ca CertificateAuthority) RootPool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(ca.Root)
	return pool
}

// IntermediatePool builds an x509.CertPool of this authority's intermediates.
func (ca CertificateAuthority) IntermediatePool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, cert := range ca.Intermediates {
		pool.AddCert(cert)
	}
	return pool
}

// TransparencyLogInstance is a single trusted log or CT log: its identity,
// its verification key, and the window during which that key is trusted.
type TransparencyLogInstance struct {
	// LogID is the raw (non-hex) log identifier, normally SHA-256 of the
	// log's DER-encoded SubjectPublicKeyInfo.
	LogID []byte

	PublicKey crypto.PublicKey

	// SignatureHashFunc is the hash algorithm the log's key_details imply,
	// e.g. crypto.SHA256 for ECDSA-P256-SHA256.
	SignatureHashFunc crypto.Hash

	ValidityPeriodStart time.Time
	ValidityPeriodEnd   time.Time
}

// ValidAt reports whether t falls within the log's validity window.
func (t TransparencyLogInstance) ValidAt(when time.Time) bool {
	if !t.ValidityPeriodStart.IsZero() && when.Before(t.ValidityPeriodStart) {
		return false
	}
	if !t.ValidityPeriodEnd.IsZero() && !when.Before(t.ValidityPeriodEnd) {
		return false
	}
	return true
}

// PublicKeyEntry describes a trust-root-indexed bare public key, reachable
// by the bundle's verification_material.public_key hint.
type PublicKeyEntry struct {
	Key                 crypto.PublicKey
	KeyDetails          string
	ValidityPeriodStart time.Time
	ValidityPeriodEnd   time.Time
}

// ValidAt reports whether t falls within the key's validity window.
func (p PublicKeyEntry) ValidAt(when time.Time) bool {
	if !p.ValidityPeriodStart.IsZero() && when.Before(p.ValidityPeriodStart) {
		return false
	}
	if !p.ValidityPeriodEnd.IsZero() && !when.Before(p.ValidityPeriodEnd) {
		return false
	}
	return true
}

// TrustedMaterial is the indexed view of trust anchors a SignedEntityVerifier
// is built from. Implementations are immutable and safe for concurrent use.
type TrustedMaterial interface {
	// FulcioCertificateAuthorities returns every known signing-certificate
	// authority chain, in no particular order. Chain validation tries each
	// in turn and accepts the first whose validity window and signatures
	// check out.
	FulcioCertificateAuthorities() []CertificateAuthority

	// TimestampingAuthorities returns every known RFC3161 TSA chain.
	TimestampingAuthorities() []CertificateAuthority

	// TlogAuthorities returns trusted transparency logs keyed by the
	// lowercase hex encoding of their LogID.
	TlogAuthorities() map[string]*TransparencyLogInstance

	// CTLogAuthorities returns trusted certificate-transparency logs keyed
	// by the lowercase hex encoding of their LogID.
	CTLogAuthorities() map[string]*TransparencyLogInstance

	// PublicKeyVerifier resolves a bundle's public-key hint to a trusted
	// key entry. Returns an error if the hint is unknown.
	PublicKeyVerifier(hint string) (*PublicKeyEntry, error)
}
