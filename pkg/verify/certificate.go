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
	"crypto/x509"
	"time"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerifyLeafCertificate builds a path from leafCert to any trusted Fulcio
// certificate authority whose validity window contains observerTimestamp,
// per spec §4.2's check_time rule and the "hybrid model" of Braun et al.
// (2013): a signature is valid if there is a timestamp at which the whole
// chain, leaf included, was valid.
func VerifyLeafCertificate(observerTimestamp time.Time, leafCert *x509.Certificate, trustedMaterial root.TrustedMaterial) error {
	var lastErr error

	for _, ca := range trustedMaterial.FulcioCertificateAuthorities() {
		if !ca.ValidAt(observerTimestamp) {
			continue
		}

		opts := x509.VerifyOptions{
			CurrentTime:   observerTimestamp,
			Roots:         ca.RootPool(),
			Intermediates: ca.IntermediatePool(),
			KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
		}

		if _, err := leafCert.Verify(opts); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return wrapf(CertificateError, lastErr, "leaf certificate verification failed at time %s", observerTimestamp)
}

// EarliestObserverTimestamp selects check_time per spec §4.2: "the earliest
// successfully-verified timestamp among the entity's timestamps list."
func EarliestObserverTimestamp(timestamps []TimestampVerificationResult) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, ts := range timestamps {
		if !found || ts.Timestamp.Before(earliest) {
			earliest = ts.Timestamp
			found = true
		}
	}
	return earliest, found
}
