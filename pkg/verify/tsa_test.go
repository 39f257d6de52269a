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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/root"
)

type fakeTSATrustedMaterial struct {
	fakeEmptyTrustedMaterial
	tsas []root.CertificateAuthority
}

func (f fakeTSATrustedMaterial) TimestampingAuthorities() []root.CertificateAuthority { return f.tsas }

func TestVerifyRFC3161TimestampNoTrustedAuthorities(t *testing.T) {
	_, err := VerifyRFC3161Timestamp([]byte("not-a-real-token"), []byte("sig"), fakeEmptyTrustedMaterial{})
	require.Error(t, err)
}

func TestVerifyRFC3161TimestampRejectsMalformedToken(t *testing.T) {
	now := time.Now()
	_, ca := generateTestChain(t, now.Add(-time.Hour), now.Add(time.Hour))
	tm := fakeTSATrustedMaterial{tsas: []root.CertificateAuthority{ca}}

	_, err := VerifyRFC3161Timestamp([]byte("garbage"), []byte("sig"), tm)
	require.Error(t, err)
}
