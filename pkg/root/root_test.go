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

package root

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCA(t *testing.T) *x509.Certificate {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestCertificateAuthorityValidAtUnboundedWindow(t *testing.T) {
	ca := CertificateAuthority{Root: selfSignedCA(t)}
	require.True(t, ca.ValidAt(time.Now()))
}

func TestCertificateAuthorityValidAtBoundedWindow(t *testing.T) {
	now := time.Now()
	ca := CertificateAuthority{
		Root:                selfSignedCA(t),
		ValidityPeriodStart: now.Add(-time.Hour),
		ValidityPeriodEnd:   now.Add(time.Hour),
	}
	require.True(t, ca.ValidAt(now))
	require.False(t, ca.ValidAt(now.Add(-2*time.Hour)))
	require.False(t, ca.ValidAt(now.Add(2*time.Hour)))
	require.False(t, ca.ValidAt(now.Add(time.Hour))) // end boundary is exclusive
}

func TestCertificateAuthorityRootPoolContainsRoot(t *testing.T) {
	root := selfSignedCA(t)
	ca := CertificateAuthority{Root: root}
	pool := ca.RootPool()
	require.NotNil(t, pool)
	require.Len(t, pool.Subjects(), 1) //nolint:staticcheck // Subjects is deprecated but adequate for a membership check here
}

func TestTransparencyLogInstanceValidAt(t *testing.T) {
	now := time.Now()
	tlog := TransparencyLogInstance{
		ValidityPeriodStart: now.Add(-time.Hour),
		ValidityPeriodEnd:   now.Add(time.Hour),
	}
	require.True(t, tlog.ValidAt(now))
	require.False(t, tlog.ValidAt(now.Add(-2*time.Hour)))
}

func TestPublicKeyEntryValidAt(t *testing.T) {
	now := time.Now()
	entry := PublicKeyEntry{ValidityPeriodStart: now.Add(-time.Hour), ValidityPeriodEnd: now.Add(time.Hour)}
	require.True(t, entry.ValidAt(now))
	require.False(t, entry.ValidAt(now.Add(2*time.Hour)))
}
