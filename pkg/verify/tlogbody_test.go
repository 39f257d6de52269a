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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

type fakeVerificationContent struct {
	cert *x509.Certificate
	hint string
}

func (f fakeVerificationContent) GetCertificate() *x509.Certificate { return f.cert }
func (f fakeVerificationContent) GetPublicKeyHint() string          { return f.hint }

type fakeSignatureContent struct {
	sig     []byte
	message *bundle.MessageSignature
	env     *bundle.DSSEEnvelope
}

func (f fakeSignatureContent) Signature() []byte                       { return f.sig }
func (f fakeSignatureContent) EnvelopeContent() *bundle.DSSEEnvelope    { return f.env }
func (f fakeSignatureContent) MessageSignatureContent() *bundle.MessageSignature {
	return f.message
}

func TestVerifyTlogBodyHashedrekord(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pemKey, err := cryptoutils.MarshalPublicKeyToPEM(priv.Public())
	require.NoError(t, err)

	message := []byte("artifact bytes")
	digest := sha256.Sum256(message)
	sig := []byte("fake-signature-bytes")

	specJSON, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"hash": map[string]any{"algorithm": "sha256", "value": hex.EncodeToString(digest[:])},
		},
		"signature": map[string]any{
			"content":   base64.StdEncoding.EncodeToString(sig),
			"publicKey": map[string]any{"content": base64.StdEncoding.EncodeToString(pemKey)},
		},
	})
	require.NoError(t, err)

	bodyJSON, err := json.Marshal(map[string]any{
		"kind":       "hashedrekord",
		"apiVersion": "0.0.1",
		"spec":       json.RawMessage(specJSON),
	})
	require.NoError(t, err)

	entry := bundle.TransparencyLogEntry{
		KindVersion:       bundle.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: bodyJSON,
	}

	content := fakeSignatureContent{sig: sig, message: &bundle.MessageSignature{Digest: digest[:]}}
	vc := fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)}

	require.NoError(t, VerifyTlogBody(entry, content, vc))
}

func TestVerifyTlogBodyHashedrekordSignatureMismatch(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	pemKey, err := cryptoutils.MarshalPublicKeyToPEM(priv.Public())
	require.NoError(t, err)

	digest := sha256.Sum256([]byte("artifact bytes"))

	specJSON, err := json.Marshal(map[string]any{
		"data": map[string]any{
			"hash": map[string]any{"algorithm": "sha256", "value": hex.EncodeToString(digest[:])},
		},
		"signature": map[string]any{
			"content":   base64.StdEncoding.EncodeToString([]byte("body-sig")),
			"publicKey": map[string]any{"content": base64.StdEncoding.EncodeToString(pemKey)},
		},
	})
	require.NoError(t, err)
	bodyJSON, err := json.Marshal(map[string]any{"kind": "hashedrekord", "apiVersion": "0.0.1", "spec": json.RawMessage(specJSON)})
	require.NoError(t, err)

	entry := bundle.TransparencyLogEntry{
		KindVersion:       bundle.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: bodyJSON,
	}
	content := fakeSignatureContent{sig: []byte("different-bundle-sig"), message: &bundle.MessageSignature{Digest: digest[:]}}
	vc := fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)}

	err = VerifyTlogBody(entry, content, vc)
	require.Error(t, err)
}

func TestVerifyTlogBodyKindVersionMismatch(t *testing.T) {
	bodyJSON, err := json.Marshal(map[string]any{"kind": "hashedrekord", "apiVersion": "0.0.1", "spec": json.RawMessage(`{}`)})
	require.NoError(t, err)
	entry := bundle.TransparencyLogEntry{
		KindVersion:       bundle.KindVersion{Kind: "intoto", Version: "0.0.2"},
		CanonicalizedBody: bodyJSON,
	}
	err = VerifyTlogBody(entry, fakeSignatureContent{}, fakeVerificationContent{})
	require.Error(t, err)
}

func TestVerifyTlogBodyUnsupportedKind(t *testing.T) {
	bodyJSON, err := json.Marshal(map[string]any{"kind": "rekord", "apiVersion": "0.0.1", "spec": json.RawMessage(`{}`)})
	require.NoError(t, err)
	entry := bundle.TransparencyLogEntry{
		KindVersion:       bundle.KindVersion{Kind: "rekord", Version: "0.0.1"},
		CanonicalizedBody: bodyJSON,
	}
	err = VerifyTlogBody(entry, fakeSignatureContent{}, fakeVerificationContent{})
	require.Error(t, err)
}

func selfSignedCertWithKey(t *testing.T, priv *ecdsa.PrivateKey) *x509.Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:        pkix.Name{CommonName: "test leaf"},
		EmailAddresses: []string{"signer@example.com"},
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, priv.Public(), priv)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}
