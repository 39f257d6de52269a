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
	"bytes"
	"crypto/x509"
	"time"

	tsaverification "github.com/sigstore/timestamp-authority/v2/pkg/verification"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerifyRFC3161Timestamp checks a single RFC3161 TimeStampToken against the
// signed content it covers and the trusted timestamping authorities, per
// spec §4.7: signer chain validates against a trusted TSA, the
// messageImprint matches signedContent, and the resulting time falls inside
// the TSA's validity window.
func VerifyRFC3161Timestamp(token []byte, signedContent []byte, trustedMaterial root.TrustedMaterial) (time.Time, error) {
	var lastErr error

	for _, tsa := range trustedMaterial.TimestampingAuthorities() {
		opts := tsaverification.VerifyOpts{
			Roots:          []*x509.Certificate{tsa.Root},
			Intermediates:  tsa.Intermediates,
			TSACertificate: tsaLeafCertificate(tsa),
		}

		ts, err := tsaverification.VerifyTimestampResponse(token, bytes.NewReader(signedContent), opts)
		if err != nil {
			lastErr = err
			continue
		}

		if !tsa.ValidityPeriodStart.IsZero() && ts.Time.Before(tsa.ValidityPeriodStart) {
			lastErr = newError(TimestampError, "timestamp predates the timestamping authority's validity period", nil)
			continue
		}
		if !tsa.ValidityPeriodEnd.IsZero() && ts.Time.After(tsa.ValidityPeriodEnd) {
			lastErr = newError(TimestampError, "timestamp postdates the timestamping authority's validity period", nil)
			continue
		}

		return ts.Time, nil
	}

	return time.Time{}, wrapf(TimestampError, lastErr, "no trusted timestamping authority verified this token")
}

// tsaLeafCertificate picks the TSA signing certificate out of a
// CertificateAuthority: the first intermediate if present, otherwise the
// root itself is treated as the direct signer.
func tsaLeafCertificate(ca root.CertificateAuthority) *x509.Certificate {
	if len(ca.Intermediates) > 0 {
		return ca.Intermediates[0]
	}
	return ca.Root
}
