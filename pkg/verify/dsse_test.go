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

	"github.com/stretchr/testify/require"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

// TestPreAuthEncodingVector checks the PAE test vector from the DSSE spec:
// PAE("http://example.com/HelloWorld", "hello world") is a fixed byte string.
func TestPreAuthEncodingVector(t *testing.T) {
	got := preAuthEncoding("http://example.com/HelloWorld", []byte("hello world"))
	want := "DSSEv1 29 http://example.com/HelloWorld 11 hello world"
	require.Equal(t, want, string(got))
}

func TestPreAuthEncodingEmptyPayload(t *testing.T) {
	got := preAuthEncoding("application/vnd.in-toto+json", nil)
	want := "DSSEv1 28 application/vnd.in-toto+json 0 "
	require.Equal(t, want, string(got))
}

func TestSignatureContentBytesEnvelope(t *testing.T) {
	env := &bundle.DSSEEnvelope{PayloadType: "application/vnd.in-toto+json", Payload: []byte(`{"a":1}`)}
	content := fakeSignatureContent{env: env}

	got := signatureContentBytes(content)
	want := preAuthEncoding(env.PayloadType, env.Payload)
	require.Equal(t, want, got)
}

func TestSignatureContentBytesMessageSignature(t *testing.T) {
	content := fakeSignatureContent{message: &bundle.MessageSignature{}}
	require.Nil(t, signatureContentBytes(content))
}

func TestStatementFromEnvelope(t *testing.T) {
	env := &bundle.DSSEEnvelope{
		Payload: []byte(`{"_type":"https://in-toto.io/Statement/v0.1","subject":[{"name":"foo","digest":{"sha256":"abc"}}],"predicateType":"cosign.sigstore.dev/attestation/v1"}`),
	}
	stmt, err := statementFromEnvelope(env)
	require.NoError(t, err)
	require.Equal(t, "https://in-toto.io/Statement/v0.1", stmt.Type)
	require.Len(t, stmt.Subject, 1)
	require.Equal(t, "foo", stmt.Subject[0].Name)
}

func TestStatementFromEnvelopeInvalidJSON(t *testing.T) {
	env := &bundle.DSSEEnvelope{Payload: []byte("not json")}
	_, err := statementFromEnvelope(env)
	require.Error(t, err)
}
