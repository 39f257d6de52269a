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
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sigstore/sigstore/pkg/cryptoutils"
)

// TrustedRootMediaType01 is the media type this package accepts for the
// protobuf-JSON encoded trust root document described in spec §6.2.
const TrustedRootMediaType01 = "application/vnd.dev.sigstore.trustedroot+json;version=0.1"

// TrustedRoot is an in-memory, immutable TrustedMaterial parsed from the
// wire format described in spec §6.2 (already-parsed trust material; this
// module never fetches it itself -- TUF-based distribution is out of scope).
type TrustedRoot struct {
	mediaType string

	certAuthorities []CertificateAuthority
	tsaAuthorities  []CertificateAuthority
	tlogs           map[string]*TransparencyLogInstance
	ctlogs          map[string]*TransparencyLogInstance
	publicKeys      map[string]*PublicKeyEntry
}

var _ TrustedMaterial = (*TrustedRoot)(nil)

func (t *TrustedRoot) FulcioCertificateAuthorities() []CertificateAuthority { return t.certAuthorities }
func (t *TrustedRoot) TimestampingAuthorities() []CertificateAuthority     { return t.tsaAuthorities }
func (t *TrustedRoot) TlogAuthorities() map[string]*TransparencyLogInstance { return t.tlogs }
func (t *TrustedRoot) CTLogAuthorities() map[string]*TransparencyLogInstance { return t.ctlogs }

func (t *TrustedRoot) PublicKeyVerifier(hint string) (*PublicKeyEntry, error) {
	entry, ok := t.publicKeys[hint]
	if !ok {
		return nil, fmt.Errorf("no public key found for hint %q", hint)
	}
	return entry, nil
}

// wire shapes for the protobuf-JSON TrustedRoot document (spec §6.2). These
// are hand-modeled from the documented field names rather than generated
// protobuf bindings; see DESIGN.md for why.
type wireTimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type wirePublicKey struct {
	RawBytes   string `json:"raw_bytes"`
	KeyDetails string `json:"key_details"`
	ValidFor   *wireTimeRange `json:"valid_for,omitempty"`
}

type wireX509Certificate struct {
	RawBytes string `json:"raw_bytes"`
}

type wireCertChain struct {
	Certificates []wireX509Certificate `json:"certificates"`
}

type wireCertificateAuthority struct {
	Subject   json.RawMessage `json:"subject,omitempty"`
	URI       string          `json:"uri,omitempty"`
	CertChain wireCertChain   `json:"cert_chain"`
	ValidFor  *wireTimeRange  `json:"valid_for,omitempty"`
}

type wireTransparencyLogInstance struct {
	BaseURL   string         `json:"base_url,omitempty"`
	HashAlgorithm string     `json:"hash_algorithm,omitempty"`
	PublicKey wirePublicKey  `json:"public_key"`
	LogID     struct {
		KeyID string `json:"key_id"`
	} `json:"log_id"`
	CheckpointKeyID *struct {
		KeyID string `json:"key_id"`
	} `json:"checkpoint_key_id,omitempty"`
}

type wireTrustedRoot struct {
	MediaType              string                        `json:"mediaType"`
	Tlogs                  []wireTransparencyLogInstance `json:"tlogs"`
	CertificateAuthorities []wireCertificateAuthority    `json:"certificate_authorities"`
	Ctlogs                 []wireTransparencyLogInstance `json:"ctlogs"`
	TimestampAuthorities   []wireCertificateAuthority    `json:"timestamp_authorities"`
}

// NewTrustedRootFromJSON parses the protobuf-JSON TrustedRoot document
// (spec §6.2) into an immutable TrustedRoot.
func NewTrustedRootFromJSON(data []byte) (*TrustedRoot, error) {
	var wire wireTrustedRoot
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing trusted root: %w", err)
	}
	if wire.MediaType != "" && wire.MediaType != TrustedRootMediaType01 {
		return nil, fmt.Errorf("unsupported trusted root media type %q", wire.MediaType)
	}

	root := &TrustedRoot{
		mediaType:  TrustedRootMediaType01,
		tlogs:      map[string]*TransparencyLogInstance{},
		ctlogs:     map[string]*TransparencyLogInstance{},
		publicKeys: map[string]*PublicKeyEntry{},
	}

	for _, ca := range wire.CertificateAuthorities {
		parsed, err := parseCertificateAuthority(ca)
		if err != nil {
			return nil, fmt.Errorf("parsing certificate_authorities: %w", err)
		}
		root.certAuthorities = append(root.certAuthorities, parsed)
	}

	for _, tsa := range wire.TimestampAuthorities {
		parsed, err := parseCertificateAuthority(tsa)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp_authorities: %w", err)
		}
		root.tsaAuthorities = append(root.tsaAuthorities, parsed)
	}

	for _, tlog := range wire.Tlogs {
		instance, hexID, err := parseTransparencyLogInstance(tlog)
		if err != nil {
			return nil, fmt.Errorf("parsing tlogs: %w", err)
		}
		root.tlogs[hexID] = instance
	}

	for _, ctlog := range wire.Ctlogs {
		instance, hexID, err := parseTransparencyLogInstance(ctlog)
		if err != nil {
			return nil, fmt.Errorf("parsing ctlogs: %w", err)
		}
		root.ctlogs[hexID] = instance
	}

	return root, nil
}

func parseCertificateAuthority(wire wireCertificateAuthority) (CertificateAuthority, error) {
	if len(wire.CertChain.Certificates) == 0 {
		return CertificateAuthority{}, fmt.Errorf("certificate authority has no certificates")
	}
	if len(wire.CertChain.Certificates) > 10 {
		return CertificateAuthority{}, fmt.Errorf("certificate authority chain exceeds 10 certificates")
	}

	var certs []*x509.Certificate
	for _, c := range wire.CertChain.Certificates {
		der, err := base64.StdEncoding.DecodeString(c.RawBytes)
		if err != nil {
			return CertificateAuthority{}, fmt.Errorf("decoding certificate: %w", err)
		}
		parsed, err := x509.ParseCertificate(der)
		if err != nil {
			return CertificateAuthority{}, fmt.Errorf("parsing certificate: %w", err)
		}
		certs = append(certs, parsed)
	}

	// cert_chain is root-last per the wire format; the last entry is the
	// root, everything before it is an intermediate.
	ca := CertificateAuthority{
		Root:          certs[len(certs)-1],
		Intermediates: certs[:len(certs)-1],
	}
	if wire.ValidFor != nil {
		ca.ValidityPeriodStart = wire.ValidFor.Start
		ca.ValidityPeriodEnd = wire.ValidFor.End
	}
	return ca, nil
}

func parseTransparencyLogInstance(wire wireTransparencyLogInstance) (*TransparencyLogInstance, string, error) {
	logID, err := base64.StdEncoding.DecodeString(wire.LogID.KeyID)
	if err != nil {
		return nil, "", fmt.Errorf("decoding log id: %w", err)
	}

	spki, err := base64.StdEncoding.DecodeString(wire.PublicKey.RawBytes)
	if err != nil {
		return nil, "", fmt.Errorf("decoding public key: %w", err)
	}
	pub, err := cryptoutils.UnmarshalPEMToPublicKey(pemEncodeSPKI(spki))
	if err != nil {
		pub, err = x509ParsePKIXFallback(spki)
		if err != nil {
			return nil, "", fmt.Errorf("parsing public key: %w", err)
		}
	}

	instance := &TransparencyLogInstance{
		LogID:             logID,
		PublicKey:         pub,
		SignatureHashFunc: hashFuncFor(wire.PublicKey.KeyDetails),
	}
	if wire.PublicKey.ValidFor != nil {
		instance.ValidityPeriodStart = wire.PublicKey.ValidFor.Start
		instance.ValidityPeriodEnd = wire.PublicKey.ValidFor.End
	}

	return instance, hex.EncodeToString(logID), nil
}

// FilterTlogAuthorities returns the subset of logs whose validity window
// contains targetDate, matching spec §4.8's filter_by(target_date).
func FilterTlogAuthorities(logs map[string]*TransparencyLogInstance, targetDate time.Time) map[string]*TransparencyLogInstance {
	out := map[string]*TransparencyLogInstance{}
	for id, log := range logs {
		if log.ValidAt(targetDate) {
			out[id] = log
		}
	}
	return out
}
