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

// Package certificate extracts the Fulcio-issued identity information
// (SANs, issuer, workflow OID extensions, SCTs) out of a leaf certificate,
// per spec §4.2.
package certificate

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

// Fulcio OID extensions, spec §4.2.
var (
	OIDIssuerV1 = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 1}
	OIDSCT      = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 11129, 2, 4, 2}

	// OIDIssuerV2 and the rest of the v2 extension family, 57264.1.8-.22.
	OIDIssuerV2                   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 8}
	OIDBuildSignerURI             = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 9}
	OIDBuildSignerDigest          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 10}
	OIDRunnerEnvironment          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 11}
	OIDSourceRepositoryURI        = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 12}
	OIDSourceRepositoryDigest     = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 13}
	OIDSourceRepositoryRef        = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 14}
	OIDSourceRepositoryIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 15}
	OIDSourceRepositoryOwnerURI   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 16}
	OIDSourceRepositoryOwnerID    = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 17}
	OIDBuildConfigURI             = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 18}
	OIDBuildConfigDigest          = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 19}
	OIDBuildTrigger               = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 20}
	OIDRunInvocationURI           = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 21}
	OIDSourceRepositoryVisibility = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 57264, 1, 22}
)

// Summary is the caller-facing view of a Fulcio leaf certificate's
// identity, safe to hand to a policy check without exposing the whole
// x509.Certificate.
type Summary struct {
	SubjectAlternativeName string
	Issuer                 string
	Extensions             map[string]string
}

// SummarizeCertificate extracts the SAN and every recognized Fulcio OID
// extension from a leaf certificate.
func SummarizeCertificate(cert *x509.Certificate) (Summary, error) {
	san, err := subjectAlternativeName(cert)
	if err != nil {
		return Summary{}, fmt.Errorf("extracting subject alternative name: %w", err)
	}

	summary := Summary{
		SubjectAlternativeName: san,
		Extensions:             map[string]string{},
	}

	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(OIDIssuerV1), ext.Id.Equal(OIDIssuerV2):
			summary.Issuer = string(ext.Value)
			summary.Extensions["Issuer"] = summary.Issuer
		case ext.Id.Equal(OIDBuildSignerURI):
			summary.Extensions["BuildSignerURI"] = string(ext.Value)
		case ext.Id.Equal(OIDBuildSignerDigest):
			summary.Extensions["BuildSignerDigest"] = string(ext.Value)
		case ext.Id.Equal(OIDRunnerEnvironment):
			summary.Extensions["RunnerEnvironment"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryURI):
			summary.Extensions["SourceRepositoryURI"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryDigest):
			summary.Extensions["SourceRepositoryDigest"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryRef):
			summary.Extensions["SourceRepositoryRef"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryIdentifier):
			summary.Extensions["SourceRepositoryIdentifier"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryOwnerURI):
			summary.Extensions["SourceRepositoryOwnerURI"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryOwnerID):
			summary.Extensions["SourceRepositoryOwnerID"] = string(ext.Value)
		case ext.Id.Equal(OIDBuildConfigURI):
			summary.Extensions["BuildConfigURI"] = string(ext.Value)
		case ext.Id.Equal(OIDBuildConfigDigest):
			summary.Extensions["BuildConfigDigest"] = string(ext.Value)
		case ext.Id.Equal(OIDBuildTrigger):
			summary.Extensions["BuildTrigger"] = string(ext.Value)
		case ext.Id.Equal(OIDRunInvocationURI):
			summary.Extensions["RunInvocationURI"] = string(ext.Value)
		case ext.Id.Equal(OIDSourceRepositoryVisibility):
			summary.Extensions["SourceRepositoryVisibility"] = string(ext.Value)
		}
	}

	return summary, nil
}

// subjectAlternativeName returns the certificate's SAN as a single string:
// the first of the RFC822, URI, DNS, or OtherName (RFC822-typed, Fulcio's
// convention for OIDC email/SPIFFE identities) names present.
func subjectAlternativeName(cert *x509.Certificate) (string, error) {
	if len(cert.EmailAddresses) > 0 {
		return cert.EmailAddresses[0], nil
	}
	if len(cert.URIs) > 0 {
		return cert.URIs[0].String(), nil
	}
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0], nil
	}

	// Go's x509 does not parse the OtherName GeneralName variant Fulcio
	// uses for some OIDC issuers; fall back to a raw scan of the SAN
	// extension for an OtherName value.
	for _, ext := range cert.Extensions {
		if ext.Id.Equal(oidSubjectAltName) {
			name, err := otherNameFromSANExtension(ext.Value)
			if err == nil && name != "" {
				return name, nil
			}
		}
	}

	return "", fmt.Errorf("certificate has no usable subject alternative name")
}

var oidSubjectAltName = asn1.ObjectIdentifier{2, 5, 29, 17}

// otherNameGeneralName mirrors the ASN.1 shape of an OtherName GeneralName:
// [0] { type-id OID, [0] EXPLICIT value ANY }.
type otherNameGeneralName struct {
	OID   asn1.ObjectIdentifier
	Value asn1.RawValue `asn1:"tag:0"`
}

func otherNameFromSANExtension(der []byte) (string, error) {
	var seq asn1.RawValue
	if _, err := asn1.Unmarshal(der, &seq); err != nil {
		return "", err
	}

	rest := seq.Bytes
	for len(rest) > 0 {
		var raw asn1.RawValue
		var err error
		rest, err = asn1.Unmarshal(rest, &raw)
		if err != nil {
			return "", err
		}
		// GeneralName context tag 0 is OtherName.
		if raw.Class == asn1.ClassContextSpecific && raw.Tag == 0 {
			var other otherNameGeneralName
			if _, err := asn1.UnmarshalWithParams(raw.FullBytes, &other, "tag:0"); err != nil {
				continue
			}
			var value string
			if _, err := asn1.Unmarshal(other.Value.Bytes, &value); err == nil {
				return value, nil
			}
		}
	}
	return "", fmt.Errorf("no OtherName SAN found")
}

// RequireExtension returns nil if summary carries the extension called name
// with exactly the value want, and an error if it is absent or differs --
// used by identity policy checks that require a specific Fulcio extension
// and value (spec §4.9 step 7).
func RequireExtension(summary Summary, name, want string) error {
	got, ok := summary.Extensions[name]
	if !ok {
		return fmt.Errorf("certificate is missing required extension %q", name)
	}
	if got != want {
		return fmt.Errorf("certificate extension %q: got %q, want %q", name, got, want)
	}
	return nil
}
