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
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/transparency-dev/merkle/rfc6962"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

func TestParseSignedCheckpoint(t *testing.T) {
	sigLine := "— rekor.example 0123QWJjZGVmZ2hpams=" // 3 bytes from "0123" then "Abcdefghijk": a 4-byte key hint plus 10 signature bytes, just for shape
	raw := "rekor.example\n10\n" + base64.StdEncoding.EncodeToString([]byte("root-hash-bytes")) + "\n\n" + sigLine + "\n"

	cp, body, err := parseSignedCheckpoint(raw)
	require.NoError(t, err)
	require.Equal(t, "rekor.example", cp.Origin)
	require.Equal(t, uint64(10), cp.Size)
	require.Equal(t, []byte("root-hash-bytes"), cp.RootHash)
	require.Len(t, cp.sigs, 1)
	require.Equal(t, []byte("rekor.example\n10\n"+base64.StdEncoding.EncodeToString([]byte("root-hash-bytes"))+"\n"), body)
}

func TestParseSignedCheckpointMissingSeparator(t *testing.T) {
	_, _, err := parseSignedCheckpoint("rekor.example\n10\nroothash")
	require.Error(t, err)
}

func TestParseSignedCheckpointTooFewLines(t *testing.T) {
	_, _, err := parseSignedCheckpoint("rekor.example\n\n— x sig")
	require.Error(t, err)
}

// TestVerifyInclusionProofSingleLeaf exercises the trivial single-leaf tree
// case: with TreeSize 1, the inclusion path is empty and the root hash must
// equal the RFC 6962 leaf hash of the canonicalized body.
func TestVerifyInclusionProofSingleLeaf(t *testing.T) {
	body := []byte(`{"kind":"hashedrekord","apiVersion":"0.0.1"}`)
	leafHash := rfc6962.DefaultHasher.HashLeaf(body)

	entry := bundle.TransparencyLogEntry{
		LogIndex:          0,
		CanonicalizedBody: body,
		InclusionProof: &bundle.InclusionProof{
			LogIndex: 0,
			TreeSize: 1,
			RootHash: leafHash,
		},
	}

	err := VerifyInclusionProof(entry, fakeEmptyTrustedMaterial{})
	require.NoError(t, err)
}

func TestVerifyInclusionProofWrongRoot(t *testing.T) {
	body := []byte(`{"kind":"hashedrekord","apiVersion":"0.0.1"}`)

	entry := bundle.TransparencyLogEntry{
		LogIndex:          0,
		CanonicalizedBody: body,
		InclusionProof: &bundle.InclusionProof{
			LogIndex: 0,
			TreeSize: 1,
			RootHash: []byte("not-the-right-root-hash-len-32!!"),
		},
	}

	err := VerifyInclusionProof(entry, fakeEmptyTrustedMaterial{})
	require.Error(t, err)
}

func TestVerifyInclusionProofMissing(t *testing.T) {
	entry := bundle.TransparencyLogEntry{}
	err := VerifyInclusionProof(entry, fakeEmptyTrustedMaterial{})
	require.Error(t, err)
}
