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
	"fmt"
	"regexp"

	"github.com/sigstore/bundle-verifier/pkg/fulcio/certificate"
)

// CertificateIdentity is a "sufficient" identity to trust a Fulcio
// certificate under, per spec §4.9 step 7: an exact or regexp match on the
// SubjectAlternativeName, plus exact matches on any number of Fulcio OID
// extensions (most importantly the Issuer, OID 1.3.6.1.4.1.57264.1.1/.1.8).
type CertificateIdentity struct {
	SubjectAlternativeName       string
	SubjectAlternativeNameRegexp *regexp.Regexp
	Extensions                   map[string]string
}

// NewShortCertificateIdentity builds the common case: a single SAN value or
// regexp, paired with an exact Issuer match.
func NewShortCertificateIdentity(issuer, san string, sanRegexp *regexp.Regexp) (CertificateIdentity, error) {
	if san == "" && sanRegexp == nil {
		return CertificateIdentity{}, fmt.Errorf("either san or sanRegexp must be provided")
	}
	return CertificateIdentity{
		SubjectAlternativeName:       san,
		SubjectAlternativeNameRegexp: sanRegexp,
		Extensions:                   map[string]string{"Issuer": issuer},
	}, nil
}

// Matches reports whether summary satisfies this identity.
func (c CertificateIdentity) Matches(summary certificate.Summary) bool {
	if c.SubjectAlternativeNameRegexp != nil {
		if !c.SubjectAlternativeNameRegexp.MatchString(summary.SubjectAlternativeName) {
			return false
		}
	} else if c.SubjectAlternativeName != "" {
		if summary.SubjectAlternativeName != c.SubjectAlternativeName {
			return false
		}
	}

	for name, want := range c.Extensions {
		got, ok := summary.Extensions[name]
		if !ok || got != want {
			return false
		}
	}

	return true
}

// CertificateIdentities is a list of sufficient identities; a certificate
// matches if any one of them matches.
type CertificateIdentities []CertificateIdentity

// Verify returns the first CertificateIdentity satisfied by summary, or an
// error if none match.
func (ids CertificateIdentities) Verify(summary certificate.Summary) (*CertificateIdentity, error) {
	for _, id := range ids {
		if id.Matches(summary) {
			match := id
			return &match, nil
		}
	}
	return nil, fmt.Errorf("certificate identity %q/%v does not match any trusted identity", summary.SubjectAlternativeName, summary.Extensions)
}
