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

	"github.com/sigstore/bundle-verifier/pkg/root"
)

// fakeEmptyTrustedMaterial satisfies root.TrustedMaterial with nothing
// trusted; it's enough for tests that never need to look a log or CA up.
type fakeEmptyTrustedMaterial struct{}

func (fakeEmptyTrustedMaterial) FulcioCertificateAuthorities() []root.CertificateAuthority {
	return nil
}
func (fakeEmptyTrustedMaterial) TimestampingAuthorities() []root.CertificateAuthority { return nil }
func (fakeEmptyTrustedMaterial) TlogAuthorities() map[string]*root.TransparencyLogInstance {
	return nil
}
func (fakeEmptyTrustedMaterial) CTLogAuthorities() map[string]*root.TransparencyLogInstance {
	return nil
}
func (fakeEmptyTrustedMaterial) PublicKeyVerifier(hint string) (*root.PublicKeyEntry, error) {
	return nil, fmt.Errorf("no public key trusted for hint %q", hint)
}

// fakeTrustedMaterial lets tests register a single trusted tlog instance.
type fakeTrustedMaterial struct {
	tlogs map[string]*root.TransparencyLogInstance
}

func (f fakeTrustedMaterial) FulcioCertificateAuthorities() []root.CertificateAuthority { return nil }
func (f fakeTrustedMaterial) TimestampingAuthorities() []root.CertificateAuthority      { return nil }
func (f fakeTrustedMaterial) TlogAuthorities() map[string]*root.TransparencyLogInstance {
	return f.tlogs
}
func (f fakeTrustedMaterial) CTLogAuthorities() map[string]*root.TransparencyLogInstance {
	return nil
}
func (f fakeTrustedMaterial) PublicKeyVerifier(hint string) (*root.PublicKeyEntry, error) {
	return nil, fmt.Errorf("no public key trusted for hint %q", hint)
}
