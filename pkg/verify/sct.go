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
	"encoding/hex"

	"github.com/google/certificate-transparency-go/ctutil"
	ctx509 "github.com/google/certificate-transparency-go/x509"
	"github.com/google/certificate-transparency-go/x509util"
	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerifySignedCertificateTimestamp extracts the embedded SCTs from
// leafCert's SCT extension (OID 1.3.6.1.4.1.11129.2.4.2) and verifies each
// against a trusted CT log whose key_id matches, requiring at least
// threshold valid SCTs, per spec §4.2.
func VerifySignedCertificateTimestamp(leafCert *x509.Certificate, threshold int, trustedMaterial root.TrustedMaterial) error {
	ctlogs := trustedMaterial.CTLogAuthorities()

	scts, err := x509util.ParseSCTsFromCertificate(leafCert.Raw)
	if err != nil {
		return wrapf(CertificateError, err, "parsing embedded SCTs")
	}

	leafCTCert, err := ctx509.ParseCertificates(leafCert.Raw)
	if err != nil {
		return wrapf(CertificateError, err, "re-parsing leaf certificate for SCT verification")
	}

	verified := 0
	for _, sct := range scts {
		encodedKeyID := hex.EncodeToString(sct.LogID.KeyID[:])
		log, ok := ctlogs[encodedKeyID]
		if !ok {
			continue // skip entries the trust root cannot verify, spec §4.2
		}

		for _, ca := range trustedMaterial.FulcioCertificateAuthorities() {
			chain := make([]*ctx509.Certificate, len(leafCTCert))
			copy(chain, leafCTCert)

			var parentDER []byte
			if len(ca.Intermediates) > 0 {
				parentDER = ca.Intermediates[0].Raw
			} else {
				parentDER = ca.Root.Raw
			}

			issuer, err := ctx509.ParseCertificates(parentDER)
			if err != nil {
				continue
			}
			chain = append(chain, issuer...)

			if err := ctutil.VerifySCT(log.PublicKey, chain, sct, true); err == nil {
				verified++
				break
			}
		}
	}

	if verified < threshold {
		return wrapf(CertificateError, nil, "only able to verify %d SCT entries; unable to meet threshold of %d", verified, threshold)
	}
	return nil
}
