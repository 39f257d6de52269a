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
	"encoding/json"
	"fmt"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
)

// rekorEntryBody is the parsed shape common to every (kind, version) pair
// spec §4.4 supports.
type rekorEntryBody struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Spec       json.RawMessage `json:"spec"`
}

type hashedrekordSpecV001 struct {
	Data struct {
		Hash struct {
			Algorithm string `json:"algorithm"`
			Value     string `json:"value"`
		} `json:"hash"`
	} `json:"data"`
	Signature struct {
		Content   string `json:"content"`
		PublicKey struct {
			Content string `json:"content"`
		} `json:"publicKey"`
	} `json:"signature"`
}

type intotoSpecV002 struct {
	Content struct {
		Envelope struct {
			PayloadType string `json:"payloadType"`
			Payload     string `json:"payload,omitempty"`
			Signatures  []struct {
				Sig       string `json:"sig"`
				PublicKey string `json:"publicKey"`
			} `json:"signatures"`
		} `json:"envelope"`
		PayloadHash struct {
			Algorithm string `json:"algorithm"`
			Value     string `json:"value"`
		} `json:"payloadHash"`
	} `json:"content"`
}

type dsseSpecV001 struct {
	PayloadHash struct {
		Algorithm string `json:"algorithm"`
		Value     string `json:"value"`
	} `json:"payloadHash"`
	EnvelopeHash struct {
		Algorithm string `json:"algorithm"`
		Value     string `json:"value"`
	} `json:"envelopeHash"`
	Signatures []struct {
		Signature string `json:"signature"`
		Verifier  string `json:"verifier"`
	} `json:"signatures"`
}

// VerifyTlogBody checks a transparency-log entry's canonicalized body
// against the bundle's own signature content, per spec §4.4. Any
// disagreement is a TLOG_BODY_ERROR.
func VerifyTlogBody(entry bundle.TransparencyLogEntry, content bundle.SignatureContent, vc bundle.VerificationContent) error {
	var body rekorEntryBody
	if err := json.Unmarshal(entry.CanonicalizedBody, &body); err != nil {
		return wrapf(TlogBodyError, err, "parsing canonicalized body")
	}

	if body.Kind != entry.KindVersion.Kind || body.APIVersion != entry.KindVersion.Version {
		return newError(TlogBodyError, fmt.Sprintf("body kindVersion (%s/%s) does not match entry kindVersion (%s/%s)",
			body.Kind, body.APIVersion, entry.KindVersion.Kind, entry.KindVersion.Version), nil)
	}

	switch {
	case body.Kind == "hashedrekord" && body.APIVersion == "0.0.1":
		return verifyHashedrekordBody(body.Spec, content, vc)
	case body.Kind == "intoto" && body.APIVersion == "0.0.2":
		return verifyIntotoBody(body.Spec, content, vc)
	case body.Kind == "dsse" && body.APIVersion == "0.0.1":
		return verifyDSSEBody(body.Spec, content, vc)
	default:
		return newError(TlogBodyError, fmt.Sprintf("unsupported tlog body kind/version %s/%s", body.Kind, body.APIVersion), nil)
	}
}

func verifyHashedrekordBody(raw json.RawMessage, content bundle.SignatureContent, vc bundle.VerificationContent) error {
	var spec hashedrekordSpecV001
	if err := json.Unmarshal(raw, &spec); err != nil {
		return wrapf(TlogBodyError, err, "parsing hashedrekord spec")
	}

	ms := content.MessageSignatureContent()
	if ms == nil {
		return newError(TlogBodyError, "hashedrekord body requires a message-signature bundle", nil)
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Signature.Content)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body signature")
	}
	if !constantTimeEqual(bodySig, content.Signature()) {
		return newError(TlogBodyError, "body signature does not match bundle signature", nil)
	}

	if err := verifyBodyKeyMatchesBundle(spec.Signature.PublicKey.Content, vc); err != nil {
		return err
	}

	bodyDigest, err := hexOrBase64Decode(spec.Data.Hash.Value)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body digest")
	}
	if !constantTimeEqual(bodyDigest, ms.Digest) {
		return newError(TlogBodyError, "body hash does not match bundle message digest", nil)
	}

	return nil
}

func verifyIntotoBody(raw json.RawMessage, content bundle.SignatureContent, vc bundle.VerificationContent) error {
	var spec intotoSpecV002
	if err := json.Unmarshal(raw, &spec); err != nil {
		return wrapf(TlogBodyError, err, "parsing intoto spec")
	}

	env := content.EnvelopeContent()
	if env == nil {
		return newError(TlogBodyError, "intoto body requires a dsse-envelope bundle", nil)
	}

	if len(spec.Content.Envelope.Signatures) != len(env.Signatures) {
		return newError(TlogBodyError, "body signature count does not match envelope signature count", nil)
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Content.Envelope.Signatures[0].Sig)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body signature")
	}
	if !constantTimeEqual(bodySig, content.Signature()) {
		return newError(TlogBodyError, "body signature does not match bundle signature", nil)
	}

	if err := verifyBodyKeyMatchesBundle(spec.Content.Envelope.Signatures[0].PublicKey, vc); err != nil {
		return err
	}

	sum, err := digest(algNameToCanonical(spec.Content.PayloadHash.Algorithm), env.Payload)
	if err != nil {
		return wrapf(TlogBodyError, err, "computing dsse payload digest")
	}
	bodyDigest, err := hexOrBase64Decode(spec.Content.PayloadHash.Value)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body payload hash")
	}
	if !constantTimeEqual(sum, bodyDigest) {
		return newError(TlogBodyError, "body payload hash does not match dsse payload", nil)
	}

	return nil
}

func verifyDSSEBody(raw json.RawMessage, content bundle.SignatureContent, vc bundle.VerificationContent) error {
	var spec dsseSpecV001
	if err := json.Unmarshal(raw, &spec); err != nil {
		return wrapf(TlogBodyError, err, "parsing dsse spec")
	}

	env := content.EnvelopeContent()
	if env == nil {
		return newError(TlogBodyError, "dsse body requires a dsse-envelope bundle", nil)
	}

	if len(spec.Signatures) != len(env.Signatures) {
		return newError(TlogBodyError, "body signature count does not match envelope signature count", nil)
	}

	bodySig, err := base64.StdEncoding.DecodeString(spec.Signatures[0].Signature)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body signature")
	}
	if !constantTimeEqual(bodySig, content.Signature()) {
		return newError(TlogBodyError, "body signature does not match bundle signature", nil)
	}

	if err := verifyBodyKeyMatchesBundle(spec.Signatures[0].Verifier, vc); err != nil {
		return err
	}

	payloadSum, err := digest(algNameToCanonical(spec.PayloadHash.Algorithm), env.Payload)
	if err != nil {
		return wrapf(TlogBodyError, err, "computing dsse payload digest")
	}
	bodyPayloadDigest, err := hexOrBase64Decode(spec.PayloadHash.Value)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body payload hash")
	}
	if !constantTimeEqual(payloadSum, bodyPayloadDigest) {
		return newError(TlogBodyError, "body payload hash does not match dsse payload", nil)
	}

	envelopeJSON, err := json.Marshal(struct {
		PayloadType string                  `json:"payloadType"`
		Payload     string                  `json:"payload"`
		Signatures  []bundle.DSSESignature  `json:"signatures"`
	}{
		PayloadType: env.PayloadType,
		Payload:     base64.StdEncoding.EncodeToString(env.Payload),
		Signatures:  env.Signatures,
	})
	if err != nil {
		return wrapf(TlogBodyError, err, "re-encoding dsse envelope")
	}
	envelopeSum, err := digest(algNameToCanonical(spec.EnvelopeHash.Algorithm), envelopeJSON)
	if err != nil {
		return wrapf(TlogBodyError, err, "computing dsse envelope digest")
	}
	bodyEnvelopeDigest, err := hexOrBase64Decode(spec.EnvelopeHash.Value)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body envelope hash")
	}
	if !constantTimeEqual(envelopeSum, bodyEnvelopeDigest) {
		return newError(TlogBodyError, "body envelope hash does not match dsse envelope", nil)
	}

	return nil
}

// verifyBodyKeyMatchesBundle compares the body's embedded public key or
// certificate against the bundle's own signing key, after normalizing both
// to SPKI DER, per spec §4.4/§9.
func verifyBodyKeyMatchesBundle(bodyKeyB64 string, vc bundle.VerificationContent) error {
	bodyKeyBytes, err := base64.StdEncoding.DecodeString(bodyKeyB64)
	if err != nil {
		return wrapf(TlogBodyError, err, "decoding body public key/certificate")
	}

	var bodyDER []byte
	if cert, err := certificateFromPEMOrDER(bodyKeyBytes); err == nil {
		bodyDER, err = publicKeyToDER(cert.PublicKey)
		if err != nil {
			return wrapf(TlogBodyError, err, "marshaling body certificate public key")
		}
	} else {
		der, err := pemToDER(bodyKeyBytes)
		if err != nil {
			return wrapf(TlogBodyError, err, "decoding body public key")
		}
		bodyDER = der
	}

	var bundleDER []byte
	if cert := vc.GetCertificate(); cert != nil {
		bundleDER, err = publicKeyToDER(cert.PublicKey)
	} else {
		return newError(TlogBodyError, "cannot compare body key against a public-key-hint bundle without trust material", nil)
	}
	if err != nil {
		return wrapf(TlogBodyError, err, "marshaling bundle public key")
	}

	if !constantTimeEqual(bodyDER, bundleDER) {
		return newError(TlogBodyError, "body public key/certificate does not match bundle signing key", nil)
	}
	return nil
}

func algNameToCanonical(alg string) string {
	switch alg {
	case "sha256", "SHA2_256", "":
		return string(algSHA256)
	case "sha384", "SHA2_384":
		return string(algSHA384)
	default:
		return string(algSHA256)
	}
}

// hexOrBase64Decode decodes a Rekor body digest value, which is
// conventionally hex but tolerantly accepted as base64 too.
func hexOrBase64Decode(s string) ([]byte, error) {
	if b, err := hexDecode(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
