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

// Package bundle models the Sigstore Bundle wire format (spec §3, §6.1) and
// normalizes it into the internal SignedEntity shape the verify package
// consumes.
package bundle

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Media types recognized by this package, spec §6.1.
const (
	MediaTypeV01 = "application/vnd.dev.sigstore.bundle+json;version=0.1"
	MediaTypeV02 = "application/vnd.dev.sigstore.bundle+json;version=0.2"
	MediaTypeV03 = "application/vnd.dev.sigstore.bundle+json;version=0.3"
)

// Bundle is the parsed, version-tagged sigstore bundle described in spec §3.
type Bundle struct {
	MediaType            string
	VerificationMaterial VerificationMaterial
	Content              Content
}

// VerificationMaterial carries exactly one of a full X.509 chain, a single
// leaf certificate, or a public key hint, plus the transparency-log and
// timestamp evidence (spec §3).
type VerificationMaterial struct {
	// exactly one of the following three is set; Kind reports which.
	Kind CertificateKind

	X509CertificateChain [][]byte // leaf-first DER certificates (v0.1/v0.2)
	Certificate          []byte   // single leaf DER certificate (v0.3)
	PublicKeyHint        string   // opaque key id hint

	TlogEntries        []TransparencyLogEntry
	RFC3161Timestamps  [][]byte // DER-encoded TimeStampResp tokens
}

// CertificateKind discriminates VerificationMaterial's key variant.
type CertificateKind int

const (
	KindUnknown CertificateKind = iota
	KindX509CertificateChain
	KindCertificate
	KindPublicKey
)

// Content carries exactly one of a message signature or a DSSE envelope
// (spec §3).
type Content struct {
	Kind ContentKind

	MessageSignature *MessageSignature
	DSSEEnvelope     *DSSEEnvelope
}

// ContentKind discriminates Content's variant.
type ContentKind int

const (
	ContentUnknown ContentKind = iota
	ContentMessageSignature
	ContentDSSEEnvelope
)

// MessageSignature is the non-attestation signing mode: a signature over an
// externally supplied artifact, whose digest is recorded in the bundle.
type MessageSignature struct {
	Digest       []byte
	Algorithm    string // e.g. "SHA2_256"
	Signature    []byte
}

// DSSEEnvelope is the attestation signing mode.
type DSSEEnvelope struct {
	Payload     []byte
	PayloadType string
	Signatures  []DSSESignature
}

// DSSESignature is one signature entry within a DSSEEnvelope.
type DSSESignature struct {
	Sig   []byte
	KeyID string
}

// TransparencyLogEntry mirrors spec §3's TransparencyLogEntry.
type TransparencyLogEntry struct {
	LogIndex          int64
	LogID             []byte
	KindVersion       KindVersion
	IntegratedTime    int64 // unix seconds; zero means absent (Rekor v2 style)
	CanonicalizedBody []byte

	InclusionPromise *InclusionPromise
	InclusionProof   *InclusionProof
}

// KindVersion names the Rekor entry type this log entry's body was recorded
// as: (hashedrekord|intoto|dsse, 0.0.1|0.0.2|0.0.3).
type KindVersion struct {
	Kind    string
	Version string
}

// InclusionPromise is the log's Signed Entry Timestamp (spec §4.5).
type InclusionPromise struct {
	SignedEntryTimestamp []byte
}

// InclusionProof is the Merkle audit path plus checkpoint (spec §4.6).
type InclusionProof struct {
	LogIndex   int64
	RootHash   []byte
	TreeSize   int64
	Hashes     [][]byte
	Checkpoint string // the raw signed-note envelope text
}

// wire types for JSON (de)serialization. Field names mirror the Sigstore
// bundle schema; 64-bit fields that may exceed 2^53 are strings on the
// wire, per spec §6.1/§9.

type wireBundle struct {
	MediaType            string               `json:"mediaType"`
	VerificationMaterial wireVerificationMaterial `json:"verificationMaterial"`
	MessageSignature     *wireMessageSignature    `json:"messageSignature,omitempty"`
	DSSEEnvelope         *wireDSSEEnvelope        `json:"dsseEnvelope,omitempty"`
}

type wireVerificationMaterial struct {
	X509CertificateChain *wireX509CertificateChain `json:"x509CertificateChain,omitempty"`
	Certificate          *wireCertificate          `json:"certificate,omitempty"`
	PublicKey            *wirePublicKeyIdentifier  `json:"publicKey,omitempty"`
	TlogEntries          []wireTlogEntry           `json:"tlogEntries,omitempty"`
	TimestampVerificationData *wireTimestamps      `json:"timestampVerificationData,omitempty"`
}

type wireX509CertificateChain struct {
	Certificates []wireCertificate `json:"certificates"`
}

type wireCertificate struct {
	RawBytes string `json:"rawBytes"`
}

type wirePublicKeyIdentifier struct {
	Hint string `json:"hint"`
}

type wireTimestamps struct {
	Rfc3161Timestamps []wireRFC3161Timestamp `json:"rfc3161Timestamps,omitempty"`
}

type wireRFC3161Timestamp struct {
	SignedTimestamp string `json:"signedTimestamp"`
}

type wireTlogEntry struct {
	LogIndex          string                `json:"logIndex"`
	LogID             wireLogID             `json:"logId"`
	KindVersion       wireKindVersion       `json:"kindVersion"`
	IntegratedTime    string                `json:"integratedTime"`
	InclusionPromise  *wireInclusionPromise `json:"inclusionPromise,omitempty"`
	InclusionProof    *wireInclusionProof   `json:"inclusionProof,omitempty"`
	CanonicalizedBody string                `json:"canonicalizedBody"`
}

type wireLogID struct {
	KeyID string `json:"keyId"`
}

type wireKindVersion struct {
	Kind    string `json:"kind"`
	Version string `json:"version"`
}

type wireInclusionPromise struct {
	SignedEntryTimestamp string `json:"signedEntryTimestamp"`
}

type wireInclusionProof struct {
	LogIndex   string             `json:"logIndex"`
	RootHash   string             `json:"rootHash"`
	TreeSize   string             `json:"treeSize"`
	Hashes     []string           `json:"hashes"`
	Checkpoint wireCheckpoint     `json:"checkpoint"`
}

type wireCheckpoint struct {
	Envelope string `json:"envelope"`
}

type wireMessageSignature struct {
	MessageDigest wireMessageDigest `json:"messageDigest"`
	Signature     string            `json:"signature"`
}

type wireMessageDigest struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

type wireDSSEEnvelope struct {
	Payload     string             `json:"payload"`
	PayloadType string             `json:"payloadType"`
	Signatures  []wireDSSESignature `json:"signatures"`
}

type wireDSSESignature struct {
	Sig   string `json:"sig"`
	Keyid string `json:"keyid,omitempty"`
}

const maxInclusionHashes = 64
const maxCertChain = 10

// ParseJSON parses a wire-format bundle document into a Bundle, enforcing
// the "exactly one variant" invariants of spec §3.
func ParseJSON(data []byte) (*Bundle, error) {
	var wire wireBundle
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing bundle JSON: %w", err)
	}

	b := &Bundle{MediaType: wire.MediaType}
	switch wire.MediaType {
	case MediaTypeV01, MediaTypeV02, MediaTypeV03:
	default:
		return nil, fmt.Errorf("unsupported bundle media type %q", wire.MediaType)
	}

	vm, err := parseVerificationMaterial(wire.VerificationMaterial)
	if err != nil {
		return nil, err
	}
	b.VerificationMaterial = vm

	content, err := parseContent(wire)
	if err != nil {
		return nil, err
	}
	b.Content = content

	return b, nil
}

func parseVerificationMaterial(wire wireVerificationMaterial) (VerificationMaterial, error) {
	var vm VerificationMaterial

	variants := 0
	if wire.X509CertificateChain != nil {
		variants++
	}
	if wire.Certificate != nil {
		variants++
	}
	if wire.PublicKey != nil {
		variants++
	}
	if variants != 1 {
		return vm, fmt.Errorf("verification_material must have exactly one of x509_certificate_chain, certificate, public_key; got %d", variants)
	}

	switch {
	case wire.X509CertificateChain != nil:
		if len(wire.X509CertificateChain.Certificates) == 0 {
			return vm, fmt.Errorf("x509CertificateChain has no certificates")
		}
		if len(wire.X509CertificateChain.Certificates) > maxCertChain {
			return vm, fmt.Errorf("x509CertificateChain exceeds %d certificates", maxCertChain)
		}
		vm.Kind = KindX509CertificateChain
		for _, c := range wire.X509CertificateChain.Certificates {
			der, err := base64.StdEncoding.DecodeString(c.RawBytes)
			if err != nil {
				return vm, fmt.Errorf("decoding certificate: %w", err)
			}
			vm.X509CertificateChain = append(vm.X509CertificateChain, der)
		}
	case wire.Certificate != nil:
		der, err := base64.StdEncoding.DecodeString(wire.Certificate.RawBytes)
		if err != nil {
			return vm, fmt.Errorf("decoding certificate: %w", err)
		}
		vm.Kind = KindCertificate
		vm.Certificate = der
	case wire.PublicKey != nil:
		vm.Kind = KindPublicKey
		vm.PublicKeyHint = wire.PublicKey.Hint
	}

	for _, e := range wire.TlogEntries {
		entry, err := parseTlogEntry(e)
		if err != nil {
			return vm, err
		}
		vm.TlogEntries = append(vm.TlogEntries, entry)
	}

	if wire.TimestampVerificationData != nil {
		for _, ts := range wire.TimestampVerificationData.Rfc3161Timestamps {
			der, err := base64.StdEncoding.DecodeString(ts.SignedTimestamp)
			if err != nil {
				return vm, fmt.Errorf("decoding rfc3161 timestamp: %w", err)
			}
			vm.RFC3161Timestamps = append(vm.RFC3161Timestamps, der)
		}
	}

	return vm, nil
}

func parseTlogEntry(wire wireTlogEntry) (TransparencyLogEntry, error) {
	var entry TransparencyLogEntry

	logIndex, err := strconv.ParseInt(wire.LogIndex, 10, 64)
	if err != nil {
		return entry, fmt.Errorf("parsing logIndex: %w", err)
	}
	entry.LogIndex = logIndex

	logID, err := base64.StdEncoding.DecodeString(wire.LogID.KeyID)
	if err != nil {
		return entry, fmt.Errorf("decoding logId: %w", err)
	}
	entry.LogID = logID
	entry.KindVersion = KindVersion{Kind: wire.KindVersion.Kind, Version: wire.KindVersion.Version}

	if wire.IntegratedTime != "" {
		it, err := strconv.ParseInt(wire.IntegratedTime, 10, 64)
		if err != nil {
			return entry, fmt.Errorf("parsing integratedTime: %w", err)
		}
		entry.IntegratedTime = it
	}

	body, err := base64.StdEncoding.DecodeString(wire.CanonicalizedBody)
	if err != nil {
		return entry, fmt.Errorf("decoding canonicalizedBody: %w", err)
	}
	entry.CanonicalizedBody = body

	if wire.InclusionPromise != nil {
		set, err := base64.StdEncoding.DecodeString(wire.InclusionPromise.SignedEntryTimestamp)
		if err != nil {
			return entry, fmt.Errorf("decoding signedEntryTimestamp: %w", err)
		}
		entry.InclusionPromise = &InclusionPromise{SignedEntryTimestamp: set}
	}

	if wire.InclusionProof != nil {
		proof, err := parseInclusionProof(*wire.InclusionProof)
		if err != nil {
			return entry, err
		}
		entry.InclusionProof = proof
	}

	return entry, nil
}

func parseInclusionProof(wire wireInclusionProof) (*InclusionProof, error) {
	if len(wire.Hashes) > maxInclusionHashes {
		return nil, fmt.Errorf("inclusion proof exceeds %d hashes", maxInclusionHashes)
	}

	logIndex, err := strconv.ParseInt(wire.LogIndex, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing inclusion proof logIndex: %w", err)
	}
	treeSize, err := strconv.ParseInt(wire.TreeSize, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing inclusion proof treeSize: %w", err)
	}
	rootHash, err := base64.StdEncoding.DecodeString(wire.RootHash)
	if err != nil {
		return nil, fmt.Errorf("decoding rootHash: %w", err)
	}

	proof := &InclusionProof{
		LogIndex:   logIndex,
		TreeSize:   treeSize,
		RootHash:   rootHash,
		Checkpoint: wire.Checkpoint.Envelope,
	}
	for _, h := range wire.Hashes {
		hb, err := base64.StdEncoding.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("decoding inclusion proof hash: %w", err)
		}
		proof.Hashes = append(proof.Hashes, hb)
	}
	return proof, nil
}

func parseContent(wire wireBundle) (Content, error) {
	var content Content

	variants := 0
	if wire.MessageSignature != nil {
		variants++
	}
	if wire.DSSEEnvelope != nil {
		variants++
	}
	if variants != 1 {
		return content, fmt.Errorf("bundle content must have exactly one of messageSignature, dsseEnvelope; got %d", variants)
	}

	if wire.MessageSignature != nil {
		digest, err := base64.StdEncoding.DecodeString(wire.MessageSignature.MessageDigest.Digest)
		if err != nil {
			return content, fmt.Errorf("decoding message digest: %w", err)
		}
		sig, err := base64.StdEncoding.DecodeString(wire.MessageSignature.Signature)
		if err != nil {
			return content, fmt.Errorf("decoding message signature: %w", err)
		}
		content.Kind = ContentMessageSignature
		content.MessageSignature = &MessageSignature{
			Digest:    digest,
			Algorithm: wire.MessageSignature.MessageDigest.Algorithm,
			Signature: sig,
		}
		return content, nil
	}

	env := wire.DSSEEnvelope
	if len(env.Signatures) == 0 {
		return content, fmt.Errorf("dsse envelope must carry at least one signature")
	}
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return content, fmt.Errorf("decoding dsse payload: %w", err)
	}
	envelope := &DSSEEnvelope{Payload: payload, PayloadType: env.PayloadType}
	for _, s := range env.Signatures {
		sig, err := base64.StdEncoding.DecodeString(s.Sig)
		if err != nil {
			return content, fmt.Errorf("decoding dsse signature: %w", err)
		}
		envelope.Signatures = append(envelope.Signatures, DSSESignature{Sig: sig, KeyID: s.Keyid})
	}
	content.Kind = ContentDSSEEnvelope
	content.DSSEEnvelope = envelope
	return content, nil
}

// ToJSON serializes the Bundle back to the wire format. Round-tripping
// ParseJSON∘ToJSON must be the identity, per spec §8.
func (b *Bundle) ToJSON() ([]byte, error) {
	wire := wireBundle{MediaType: b.MediaType}

	vm := wireVerificationMaterial{}
	switch b.VerificationMaterial.Kind {
	case KindX509CertificateChain:
		chain := &wireX509CertificateChain{}
		for _, der := range b.VerificationMaterial.X509CertificateChain {
			chain.Certificates = append(chain.Certificates, wireCertificate{RawBytes: base64.StdEncoding.EncodeToString(der)})
		}
		vm.X509CertificateChain = chain
	case KindCertificate:
		vm.Certificate = &wireCertificate{RawBytes: base64.StdEncoding.EncodeToString(b.VerificationMaterial.Certificate)}
	case KindPublicKey:
		vm.PublicKey = &wirePublicKeyIdentifier{Hint: b.VerificationMaterial.PublicKeyHint}
	default:
		return nil, fmt.Errorf("bundle has no verification material key variant set")
	}

	for _, e := range b.VerificationMaterial.TlogEntries {
		vm.TlogEntries = append(vm.TlogEntries, toWireTlogEntry(e))
	}

	if len(b.VerificationMaterial.RFC3161Timestamps) > 0 {
		ts := &wireTimestamps{}
		for _, tok := range b.VerificationMaterial.RFC3161Timestamps {
			ts.Rfc3161Timestamps = append(ts.Rfc3161Timestamps, wireRFC3161Timestamp{SignedTimestamp: base64.StdEncoding.EncodeToString(tok)})
		}
		vm.TimestampVerificationData = ts
	}

	wire.VerificationMaterial = vm

	switch b.Content.Kind {
	case ContentMessageSignature:
		ms := b.Content.MessageSignature
		wire.MessageSignature = &wireMessageSignature{
			MessageDigest: wireMessageDigest{Algorithm: ms.Algorithm, Digest: base64.StdEncoding.EncodeToString(ms.Digest)},
			Signature:     base64.StdEncoding.EncodeToString(ms.Signature),
		}
	case ContentDSSEEnvelope:
		env := b.Content.DSSEEnvelope
		wireEnv := &wireDSSEEnvelope{Payload: base64.StdEncoding.EncodeToString(env.Payload), PayloadType: env.PayloadType}
		for _, s := range env.Signatures {
			wireEnv.Signatures = append(wireEnv.Signatures, wireDSSESignature{Sig: base64.StdEncoding.EncodeToString(s.Sig), Keyid: s.KeyID})
		}
		wire.DSSEEnvelope = wireEnv
	default:
		return nil, fmt.Errorf("bundle has no content variant set")
	}

	return json.Marshal(wire)
}

func toWireTlogEntry(e TransparencyLogEntry) wireTlogEntry {
	wire := wireTlogEntry{
		LogIndex:          strconv.FormatInt(e.LogIndex, 10),
		LogID:             wireLogID{KeyID: base64.StdEncoding.EncodeToString(e.LogID)},
		KindVersion:       wireKindVersion{Kind: e.KindVersion.Kind, Version: e.KindVersion.Version},
		CanonicalizedBody: base64.StdEncoding.EncodeToString(e.CanonicalizedBody),
	}
	if e.IntegratedTime != 0 {
		wire.IntegratedTime = strconv.FormatInt(e.IntegratedTime, 10)
	}
	if e.InclusionPromise != nil {
		wire.InclusionPromise = &wireInclusionPromise{SignedEntryTimestamp: base64.StdEncoding.EncodeToString(e.InclusionPromise.SignedEntryTimestamp)}
	}
	if e.InclusionProof != nil {
		p := e.InclusionProof
		wp := &wireInclusionProof{
			LogIndex:   strconv.FormatInt(p.LogIndex, 10),
			RootHash:   base64.StdEncoding.EncodeToString(p.RootHash),
			TreeSize:   strconv.FormatInt(p.TreeSize, 10),
			Checkpoint: wireCheckpoint{Envelope: p.Checkpoint},
		}
		for _, h := range p.Hashes {
			wp.Hashes = append(wp.Hashes, base64.StdEncoding.EncodeToString(h))
		}
		wire.InclusionProof = wp
	}
	return wire
}

// IntegratedTimeAsTime converts a tlog entry's unix-seconds integrated time
// into a time.Time. Rekor v2 entries carry no integrated time; IsZero()
// reports that case.
func (e TransparencyLogEntry) IntegratedTimeAsTime() time.Time {
	if e.IntegratedTime == 0 {
		return time.Time{}
	}
	return time.Unix(e.IntegratedTime, 0).UTC()
}
