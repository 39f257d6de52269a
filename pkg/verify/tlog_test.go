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
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/root"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

func hashedrekordEntry(t *testing.T, priv *ecdsa.PrivateKey, message, sig []byte, logID []byte, logIndex int64, logIDHex string) bundle.TransparencyLogEntry {
	t.Helper()
	pemKey, err := cryptoutils.MarshalPublicKeyToPEM(priv.Public())
	require.NoError(t, err)
	digest := sha256.Sum256(message)

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
	bodyJSON, err := json.Marshal(map[string]any{"kind": "hashedrekord", "apiVersion": "0.0.1", "spec": json.RawMessage(specJSON)})
	require.NoError(t, err)

	entry := bundle.TransparencyLogEntry{
		KindVersion:       bundle.KindVersion{Kind: "hashedrekord", Version: "0.0.1"},
		CanonicalizedBody: bodyJSON,
		LogID:             logID,
		LogIndex:          logIndex,
		IntegratedTime:    1700000000,
	}
	entry.InclusionPromise = &bundle.InclusionPromise{SignedEntryTimestamp: signSET(t, priv, entry, logIDHex)}
	return entry
}

func TestVerifyArtifactTransparencyLogMeetsThreshold(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	message := []byte("artifact bytes")
	sig := []byte("fake-signature-bytes")
	logID := []byte("test-log-id-0000")
	logIDHex := hex.EncodeToString(logID)

	entry := hashedrekordEntry(t, priv, message, sig, logID, 1, logIDHex)
	digest := sha256.Sum256(message)

	entity := fakeSignedEntity{
		vc:  fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)},
		sc:  fakeSignatureContent{sig: sig, message: &bundle.MessageSignature{Digest: digest[:]}},
		tlg: []bundle.TransparencyLogEntry{entry},
	}
	tm := fakeTrustedMaterial{tlogs: map[string]*root.TransparencyLogInstance{
		logIDHex: {LogID: logID, PublicKey: priv.Public(), SignatureHashFunc: crypto.SHA256},
	}}

	times, err := VerifyArtifactTransparencyLog(entity, tm, 1, true)
	require.NoError(t, err)
	require.Len(t, times, 1)
}

func TestVerifyArtifactTransparencyLogThresholdNotMet(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	message := []byte("artifact bytes")
	sig := []byte("fake-signature-bytes")
	logID := []byte("test-log-id-0000")
	logIDHex := hex.EncodeToString(logID)

	entry := hashedrekordEntry(t, priv, message, sig, logID, 1, logIDHex)
	digest := sha256.Sum256(message)
	// a single verifiable entry cannot meet a threshold of 2.
	entity := fakeSignedEntity{
		vc:  fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)},
		sc:  fakeSignatureContent{sig: sig, message: &bundle.MessageSignature{Digest: digest[:]}},
		tlg: []bundle.TransparencyLogEntry{entry},
	}
	tm := fakeTrustedMaterial{tlogs: map[string]*root.TransparencyLogInstance{
		logIDHex: {LogID: logID, PublicKey: priv.Public(), SignatureHashFunc: crypto.SHA256},
	}}

	_, err = VerifyArtifactTransparencyLog(entity, tm, 2, true)
	require.Error(t, err)
	verr, ok := err.(*VerificationError)
	require.True(t, ok)
	require.Equal(t, TimestampError, verr.Code)
}

func TestVerifyArtifactTransparencyLogRejectsDuplicateEntry(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	message := []byte("artifact bytes")
	sig := []byte("fake-signature-bytes")
	logID := []byte("test-log-id-0000")
	logIDHex := hex.EncodeToString(logID)

	entry := hashedrekordEntry(t, priv, message, sig, logID, 1, logIDHex)
	digest := sha256.Sum256(message)
	// the only entry, duplicated: must be rejected outright, not silently
	// deduplicated down to a single count.
	entity := fakeSignedEntity{
		vc:  fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)},
		sc:  fakeSignatureContent{sig: sig, message: &bundle.MessageSignature{Digest: digest[:]}},
		tlg: []bundle.TransparencyLogEntry{entry, entry},
	}
	tm := fakeTrustedMaterial{tlogs: map[string]*root.TransparencyLogInstance{
		logIDHex: {LogID: logID, PublicKey: priv.Public(), SignatureHashFunc: crypto.SHA256},
	}}

	_, err = VerifyArtifactTransparencyLog(entity, tm, 1, true)
	require.Error(t, err)
	verr, ok := err.(*VerificationError)
	require.True(t, ok)
	require.Equal(t, TimestampError, verr.Code)
}

func TestVerifyArtifactTransparencyLogRequiresInclusionProofWhenMandatory(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	message := []byte("artifact bytes")
	sig := []byte("fake-signature-bytes")
	logID := []byte("test-log-id-0000")
	logIDHex := hex.EncodeToString(logID)

	// carries only an inclusion promise (SET), no inclusion proof.
	entry := hashedrekordEntry(t, priv, message, sig, logID, 1, logIDHex)
	digest := sha256.Sum256(message)

	entity := fakeSignedEntity{
		vc:            fakeVerificationContent{cert: selfSignedCertWithKey(t, priv)},
		sc:            fakeSignatureContent{sig: sig, message: &bundle.MessageSignature{Digest: digest[:]}},
		tlg:           []bundle.TransparencyLogEntry{entry},
		requiresProof: true,
	}
	tm := fakeTrustedMaterial{tlogs: map[string]*root.TransparencyLogInstance{
		logIDHex: {LogID: logID, PublicKey: priv.Public(), SignatureHashFunc: crypto.SHA256},
	}}

	_, err = VerifyArtifactTransparencyLog(entity, tm, 1, true)
	require.Error(t, err)
	verr, ok := err.(*VerificationError)
	require.True(t, ok)
	require.Equal(t, TlogInclusionProofError, verr.Code)
}

func TestVerifyTimestampAuthorityNoTokens(t *testing.T) {
	entity := fakeSignedEntity{sc: fakeSignatureContent{sig: []byte("sig")}}
	times, err := VerifyTimestampAuthority(entity, fakeEmptyTrustedMaterial{})
	require.NoError(t, err)
	require.Empty(t, times)
}

func TestVerifyTimestampAuthorityWithThresholdFailsWhenNoneVerify(t *testing.T) {
	entity := fakeSignedEntity{sc: fakeSignatureContent{sig: []byte("sig")}, ts: [][]byte{[]byte("not-a-real-token")}}
	_, err := VerifyTimestampAuthorityWithThreshold(entity, fakeEmptyTrustedMaterial{}, 1)
	require.Error(t, err)
}
