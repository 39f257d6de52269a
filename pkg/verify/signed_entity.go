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
	"errors"
	"fmt"
	"io"
	"time"

	in_toto "github.com/in-toto/in-toto-golang/in_toto"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/fulcio/certificate"
	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerificationResultMediaType01 is the media type this package stamps on
// every VerificationResult it produces.
const VerificationResultMediaType01 = "application/vnd.dev.sigstore.verificationresult+json;version=0.1"

// SignedEntityVerifier is configured once with the trust material and
// expectations a given Sigstore deployment implies, then reused to verify
// any number of bundles (spec §1, §4.9).
type SignedEntityVerifier struct {
	trustedMaterial root.TrustedMaterial
	config          VerifierConfig
}

// VerifierConfig captures which observer-timestamp and transparency-log
// expectations apply to every Verify call made through a given
// SignedEntityVerifier.
type VerifierConfig struct {
	performOnlineVerification bool

	weExpectSignedTimestamps bool
	signedTimestampThreshold int

	requireIntegratedTimestamps bool
	integratedTimeThreshold     int

	requireObserverTimestamps  bool
	observerTimestampThreshold int

	weExpectTlogEntries  bool
	tlogEntriesThreshold int

	weExpectSCTs          bool
	ctlogEntriesThreshold int

	weDoNotExpectAnyObserverTimestamps bool
}

// VerifierOption configures a VerifierConfig.
type VerifierOption func(*VerifierConfig) error

// NewSignedEntityVerifier builds a SignedEntityVerifier over trustedMaterial,
// applying every option in order and then validating the result.
func NewSignedEntityVerifier(trustedMaterial root.TrustedMaterial, options ...VerifierOption) (*SignedEntityVerifier, error) {
	c := VerifierConfig{}
	for _, opt := range options {
		if err := opt(&c); err != nil {
			return nil, fmt.Errorf("failed to configure verifier: %w", err)
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &SignedEntityVerifier{trustedMaterial: trustedMaterial, config: c}, nil
}

// WithOnlineVerification is accepted for API parity with the reference
// verifier, but this module only performs offline verification (spec §1
// Non-goals); enabling it is rejected at Validate time.
func WithOnlineVerification() VerifierOption {
	return func(c *VerifierConfig) error {
		c.performOnlineVerification = true
		return nil
	}
}

// WithSignedTimestamps requires at least threshold verified RFC3161
// timestamps, used to verify short-lived Fulcio certificates.
func WithSignedTimestamps(threshold int) VerifierOption {
	return func(c *VerifierConfig) error {
		if threshold < 1 {
			return errors.New("signed timestamp threshold must be at least 1")
		}
		c.weExpectSignedTimestamps = true
		c.signedTimestampThreshold = threshold
		return nil
	}
}

// WithObserverTimestamps requires at least threshold verified timestamps,
// counting RFC3161 timestamps and transparency-log integrated times
// together.
func WithObserverTimestamps(threshold int) VerifierOption {
	return func(c *VerifierConfig) error {
		if threshold < 1 {
			return errors.New("observer timestamp threshold must be at least 1")
		}
		c.requireObserverTimestamps = true
		c.observerTimestampThreshold = threshold
		return nil
	}
}

// WithTransparencyLog requires at least threshold verified transparency log
// entries (inclusion promise and/or inclusion proof).
func WithTransparencyLog(threshold int) VerifierOption {
	return func(c *VerifierConfig) error {
		if threshold < 1 {
			return errors.New("transparency log entry threshold must be at least 1")
		}
		c.weExpectTlogEntries = true
		c.tlogEntriesThreshold = threshold
		return nil
	}
}

// WithIntegratedTimestamps requires at least threshold verified
// transparency-log integrated timestamps specifically.
func WithIntegratedTimestamps(threshold int) VerifierOption {
	return func(c *VerifierConfig) error {
		c.requireIntegratedTimestamps = true
		c.integratedTimeThreshold = threshold
		return nil
	}
}

// WithSignedCertificateTimestamps requires at least threshold verified
// embedded SCTs in the leaf certificate.
func WithSignedCertificateTimestamps(threshold int) VerifierOption {
	return func(c *VerifierConfig) error {
		if threshold < 1 {
			return errors.New("ctlog entry threshold must be at least 1")
		}
		c.weExpectSCTs = true
		c.ctlogEntriesThreshold = threshold
		return nil
	}
}

// WithoutAnyObserverTimestampsUnsafe disables the requirement for any
// observer timestamp, falling back to the leaf certificate's own NotBefore
// (or, for key-signed entities, the current time). This defeats most of
// the freshness guarantees spec §4.2 relies on and exists for testing only.
func WithoutAnyObserverTimestampsUnsafe() VerifierOption {
	return func(c *VerifierConfig) error {
		c.weDoNotExpectAnyObserverTimestamps = true
		return nil
	}
}

// Validate checks that the configured options are internally consistent.
func (c *VerifierConfig) Validate() error {
	if c.performOnlineVerification {
		return errors.New("online verification is not supported by this verifier")
	}
	if !c.requireObserverTimestamps && !c.weExpectSignedTimestamps && !c.requireIntegratedTimestamps && !c.weDoNotExpectAnyObserverTimestamps {
		return errors.New("when initializing a new SignedEntityVerifier, you must specify at least one of " +
			"WithObserverTimestamps(), WithSignedTimestamps(), WithIntegratedTimestamps(), or WithoutAnyObserverTimestampsUnsafe()")
	}
	return nil
}

// VerificationResult is the superset "return unit" of a successful Verify
// call: a proof of what was checked, not just a boolean.
type VerificationResult struct {
	MediaType          string                         `json:"mediaType"`
	Statement          *in_toto.Statement             `json:"statement,omitempty"`
	Signature          *SignatureVerificationResult   `json:"signature,omitempty"`
	VerifiedTimestamps []TimestampVerificationResult  `json:"verifiedTimestamps"`
	VerifiedIdentity   *CertificateIdentity            `json:"verifiedIdentity,omitempty"`
}

// SignatureVerificationResult records which key material verified the
// signature: either a raw public-key hint, or a Fulcio certificate summary.
type SignatureVerificationResult struct {
	PublicKeyHint string               `json:"publicKeyHint,omitempty"`
	Certificate   *certificate.Summary `json:"certificate,omitempty"`
}

// TimestampVerificationResult is one verified observer timestamp, tagged
// with the mechanism that produced it.
type TimestampVerificationResult struct {
	Type      string    `json:"type"`
	URI       string    `json:"uri"`
	Timestamp time.Time `json:"timestamp"`
}

func newVerificationResult() *VerificationResult {
	return &VerificationResult{MediaType: VerificationResultMediaType01}
}

// PolicyOption configures a PolicyConfig's non-artifact checks.
type PolicyOption func(*PolicyConfig) error

// ArtifactPolicyOption configures a PolicyConfig's artifact check; exactly
// one must be supplied per PolicyBuilder.
type ArtifactPolicyOption func(*PolicyConfig) error

// PolicyBuilder assembles a PolicyConfig from one artifact option and any
// number of other policy options.
type PolicyBuilder struct {
	artifactPolicy ArtifactPolicyOption
	policyOptions  []PolicyOption
}

// NewPolicy constructs a PolicyBuilder.
func NewPolicy(artifactOpt ArtifactPolicyOption, options ...PolicyOption) PolicyBuilder {
	return PolicyBuilder{artifactPolicy: artifactOpt, policyOptions: options}
}

// BuildConfig applies every option and validates the result.
func (pc PolicyBuilder) BuildConfig() (*PolicyConfig, error) {
	policy := &PolicyConfig{}
	if pc.artifactPolicy != nil {
		if err := pc.artifactPolicy(policy); err != nil {
			return nil, err
		}
	}
	for _, opt := range pc.policyOptions {
		if err := opt(policy); err != nil {
			return nil, err
		}
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return policy, nil
}

// PolicyConfig is the per-call set of checks layered on top of the
// cryptographic verification every Verify call performs.
type PolicyConfig struct {
	weDoNotExpectAnArtifact bool
	weDoNotExpectIdentities bool
	weExpectSigningKey      bool
	certificateIdentities   CertificateIdentities

	verifyArtifact bool
	artifact       io.Reader

	verifyArtifactDigest    bool
	artifactDigest          []byte
	artifactDigestAlgorithm string
}

// Validate rejects policy configurations spec §4.9 cannot act on.
func (p *PolicyConfig) Validate() error {
	if p.WeExpectIdentities() && len(p.certificateIdentities) == 0 {
		return errors.New("can't verify identities without providing at least one identity")
	}
	return nil
}

// WeExpectAnArtifact reports whether Verify must check the signature
// against a provided artifact or artifact digest.
func (p *PolicyConfig) WeExpectAnArtifact() bool { return !p.weDoNotExpectAnArtifact }

// WeExpectIdentities reports whether Verify must check the certificate
// against the configured CertificateIdentities.
func (p *PolicyConfig) WeExpectIdentities() bool { return !p.weDoNotExpectIdentities }

// WeExpectSigningKey reports whether the entity is expected to carry a
// raw public key rather than a Fulcio certificate.
func (p *PolicyConfig) WeExpectSigningKey() bool { return p.weExpectSigningKey }

// WithoutIdentitiesUnsafe skips the certificate-identity policy check.
func WithoutIdentitiesUnsafe() PolicyOption {
	return func(p *PolicyConfig) error {
		if len(p.certificateIdentities) > 0 {
			return errors.New("can't use WithoutIdentitiesUnsafe while specifying CertificateIdentities")
		}
		p.weDoNotExpectIdentities = true
		return nil
	}
}

// WithCertificateIdentity adds a trusted identity to check the leaf
// certificate against.
func WithCertificateIdentity(identity CertificateIdentity) PolicyOption {
	return func(p *PolicyConfig) error {
		if p.weDoNotExpectIdentities {
			return errors.New("can't use WithCertificateIdentity while using WithoutIdentitiesUnsafe")
		}
		if p.weExpectSigningKey {
			return errors.New("can't use WithCertificateIdentity while using WithKey")
		}
		p.certificateIdentities = append(p.certificateIdentities, identity)
		return nil
	}
}

// WithKey requires that the entity was signed with a raw public key, not a
// Fulcio certificate.
func WithKey() PolicyOption {
	return func(p *PolicyConfig) error {
		if len(p.certificateIdentities) > 0 {
			return errors.New("can't use WithKey while using WithCertificateIdentity")
		}
		p.weExpectSigningKey = true
		p.weDoNotExpectIdentities = true
		return nil
	}
}

// WithoutArtifactUnsafe skips checking the signature against any artifact.
// Only valid for DSSE entities; message-signature entities always require
// an artifact or digest.
func WithoutArtifactUnsafe() ArtifactPolicyOption {
	return func(p *PolicyConfig) error {
		if p.verifyArtifact || p.verifyArtifactDigest {
			return errors.New("can't use WithoutArtifactUnsafe while using WithArtifact or WithArtifactDigest")
		}
		p.weDoNotExpectAnArtifact = true
		return nil
	}
}

// WithArtifact checks the signature against the given artifact's bytes.
func WithArtifact(artifact io.Reader) ArtifactPolicyOption {
	return func(p *PolicyConfig) error {
		if p.verifyArtifact || p.verifyArtifactDigest {
			return errors.New("only one invocation of WithArtifact/WithArtifactDigest is allowed")
		}
		if p.weDoNotExpectAnArtifact {
			return errors.New("can't use WithArtifact while using WithoutArtifactUnsafe")
		}
		p.verifyArtifact = true
		p.artifact = artifact
		return nil
	}
}

// WithArtifactDigest checks the signature against a precomputed artifact
// digest instead of the full artifact.
func WithArtifactDigest(algorithm string, artifactDigest []byte) ArtifactPolicyOption {
	return func(p *PolicyConfig) error {
		if p.verifyArtifact || p.verifyArtifactDigest {
			return errors.New("only one invocation of WithArtifact/WithArtifactDigest is allowed")
		}
		if p.weDoNotExpectAnArtifact {
			return errors.New("can't use WithArtifactDigest while using WithoutArtifactUnsafe")
		}
		p.verifyArtifactDigest = true
		p.artifactDigestAlgorithm = algorithm
		p.artifactDigest = artifactDigest
		return nil
	}
}

// Verify runs the full spec §4.9 algorithm against entity: transparency-log
// inclusion, observer timestamps, certificate chain and SCTs, signature,
// and finally the caller's policy. It returns a VerificationResult only if
// every configured check passed.
func (v *SignedEntityVerifier) Verify(entity bundle.SignedEntity, pb PolicyBuilder) (*VerificationResult, error) {
	policy, err := pb.BuildConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build policy: %w", err)
	}

	verifiedTlogTimestamps, err := v.VerifyTransparencyLogInclusion(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to verify log inclusion: %w", err)
	}

	verifiedTimestamps, err := v.VerifyObserverTimestamps(entity, verifiedTlogTimestamps)
	if err != nil {
		return nil, fmt.Errorf("failed to verify timestamps: %w", err)
	}

	verificationContent, err := entity.VerificationContent()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch verification content: %w", err)
	}

	var signedWithCertificate bool
	var certSummary certificate.Summary

	if leafCert := verificationContent.GetCertificate(); leafCert != nil {
		if policy.WeExpectSigningKey() {
			return nil, errors.New("expected key signature, not certificate")
		}
		signedWithCertificate = true

		certSummary, err = certificate.SummarizeCertificate(leafCert)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize certificate: %w", err)
		}

		for _, ts := range verifiedTimestamps {
			if err := VerifyLeafCertificate(ts.Timestamp, leafCert, v.trustedMaterial); err != nil {
				return nil, fmt.Errorf("failed to verify leaf certificate: %w", err)
			}
		}

		if v.config.weExpectSCTs {
			if err := VerifySignedCertificateTimestamp(leafCert, v.config.ctlogEntriesThreshold, v.trustedMaterial); err != nil {
				return nil, fmt.Errorf("failed to verify signed certificate timestamp: %w", err)
			}
		}
	}

	sigContent, err := entity.SignatureContent()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signature content: %w", err)
	}

	if policy.WeExpectAnArtifact() {
		switch {
		case policy.verifyArtifact:
			err = VerifySignatureWithArtifact(sigContent, verificationContent, v.trustedMaterial, policy.artifact)
		case policy.verifyArtifactDigest:
			err = VerifySignatureWithArtifactDigest(sigContent, verificationContent, v.trustedMaterial, policy.artifactDigest, policy.artifactDigestAlgorithm)
		default:
			err = newError(SignatureError, "no artifact or artifact digest provided", nil)
		}
	} else {
		err = VerifySignature(sigContent, verificationContent, v.trustedMaterial)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify signature: %w", err)
	}

	result := newVerificationResult()
	if signedWithCertificate {
		result.Signature = &SignatureVerificationResult{Certificate: &certSummary}
	} else {
		result.Signature = &SignatureVerificationResult{PublicKeyHint: verificationContent.GetPublicKeyHint()}
	}

	if envelope := sigContent.EnvelopeContent(); envelope != nil {
		stmt, err := statementFromEnvelope(envelope)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch envelope statement: %w", err)
		}
		result.Statement = stmt
	}

	result.VerifiedTimestamps = verifiedTimestamps

	if policy.WeExpectIdentities() {
		if !signedWithCertificate {
			return nil, errors.New("can't verify certificate identities: entity was not signed with a certificate")
		}
		if len(policy.certificateIdentities) == 0 {
			return nil, errors.New("can't verify certificate identities: no identities provided")
		}
		matchingCertID, err := policy.certificateIdentities.Verify(certSummary)
		if err != nil {
			return nil, wrapf(UntrustedSignerError, err, "failed to verify certificate identity")
		}
		result.VerifiedIdentity = matchingCertID
	}

	return result, nil
}

// VerifyTransparencyLogInclusion verifies entity's transparency log entries
// if the verifier is configured to expect them, returning the verified
// integrated timestamps for use as observer timestamps.
func (v *SignedEntityVerifier) VerifyTransparencyLogInclusion(entity bundle.SignedEntity) ([]TimestampVerificationResult, error) {
	var verifiedTimestamps []TimestampVerificationResult

	if v.config.weExpectTlogEntries {
		times, err := VerifyArtifactTransparencyLog(entity, v.trustedMaterial, v.config.tlogEntriesThreshold,
			v.config.requireIntegratedTimestamps || v.config.requireObserverTimestamps)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			verifiedTimestamps = append(verifiedTimestamps, TimestampVerificationResult{Type: "TransparencyLog", Timestamp: t})
		}
	}

	return verifiedTimestamps, nil
}

// VerifyObserverTimestamps establishes spec §4.2's check_time: it collects
// and checks every requested source of observer timestamp (RFC3161,
// transparency-log integrated time, or both combined), enforcing whatever
// thresholds the verifier was configured with, then falls back to the
// unsafe certificate-lifetime escape hatch if that's all that was asked
// for. At least one verified observer timestamp is always required unless
// WithoutAnyObserverTimestampsUnsafe was used.
func (v *SignedEntityVerifier) VerifyObserverTimestamps(entity bundle.SignedEntity, logTimestamps []TimestampVerificationResult) ([]TimestampVerificationResult, error) {
	var verifiedTimestamps []TimestampVerificationResult

	if v.config.weExpectSignedTimestamps {
		times, err := VerifyTimestampAuthorityWithThreshold(entity, v.trustedMaterial, v.config.signedTimestampThreshold)
		if err != nil {
			return nil, err
		}
		for _, t := range times {
			verifiedTimestamps = append(verifiedTimestamps, TimestampVerificationResult{Type: "TimestampAuthority", Timestamp: t})
		}
	}

	if v.config.requireIntegratedTimestamps {
		if len(logTimestamps) < v.config.integratedTimeThreshold {
			return nil, wrapf(TimestampError, nil, "threshold not met for verified log entry integrated timestamps: %d < %d", len(logTimestamps), v.config.integratedTimeThreshold)
		}
		verifiedTimestamps = append(verifiedTimestamps, logTimestamps...)
	}

	if v.config.requireObserverTimestamps {
		times, err := VerifyTimestampAuthority(entity, v.trustedMaterial)
		if err != nil {
			return nil, err
		}

		tsCount := len(times) + len(logTimestamps)
		if tsCount < v.config.observerTimestampThreshold {
			return nil, wrapf(TimestampError, nil, "threshold not met for verified signed & log entry integrated timestamps: %d < %d", tsCount, v.config.observerTimestampThreshold)
		}

		verifiedTimestamps = append(verifiedTimestamps, logTimestamps...)
		for _, t := range times {
			verifiedTimestamps = append(verifiedTimestamps, TimestampVerificationResult{Type: "TimestampAuthority", Timestamp: t})
		}
	}

	if v.config.weDoNotExpectAnyObserverTimestamps {
		vc, err := entity.VerificationContent()
		if err != nil {
			return nil, err
		}
		if leafCert := vc.GetCertificate(); leafCert != nil {
			verifiedTimestamps = append(verifiedTimestamps, TimestampVerificationResult{Type: "LeafCert.NotBefore", Timestamp: leafCert.NotBefore})
		} else {
			verifiedTimestamps = append(verifiedTimestamps, TimestampVerificationResult{Type: "CurrentTime", Timestamp: time.Now()})
		}
	}

	if len(verifiedTimestamps) == 0 {
		return nil, wrapf(TimestampError, nil, "no valid observer timestamps found")
	}

	return verifiedTimestamps, nil
}
