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
	"fmt"
	"time"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/root"
)

// VerifyArtifactTransparencyLog verifies every transparency log entry
// attached to entity: its body against the entity's own signature content,
// its inclusion promise (SET) and/or inclusion proof (Merkle path, plus
// checkpoint if present), per spec §4.9 steps 3-4. Bundles that carry both
// a promise and a proof for the same entry must have both verify; this is
// the stricter of the two readings spec §9 leaves open, and the one this
// module adopts. A bundle version that makes one of the two evidence kinds
// mandatory (entity.RequiresInclusionPromise/RequiresInclusionProof, spec
// §3) hard-fails if an entry lacks it. Entries sharing a (log ID, log
// index) pair are a malformed bundle, not a benign repeat, and are
// rejected outright (spec §4.9 step 3, spec §8 scenario 5).
func VerifyArtifactTransparencyLog(entity bundle.SignedEntity, trustedMaterial root.TrustedMaterial, threshold int, requireIntegratedTimestamps bool) ([]time.Time, error) {
	entries, err := entity.TlogEntries()
	if err != nil {
		return nil, wrapf(TlogInclusionProofError, err, "fetching transparency log entries")
	}

	sigContent, err := entity.SignatureContent()
	if err != nil {
		return nil, wrapf(TlogInclusionProofError, err, "fetching signature content")
	}
	vc, err := entity.VerificationContent()
	if err != nil {
		return nil, wrapf(TlogInclusionProofError, err, "fetching verification content")
	}

	requirePromise := entity.RequiresInclusionPromise()
	requireProof := entity.RequiresInclusionProof()

	seen := make(map[string]bool)
	verifiedCount := 0
	var verifiedTimes []time.Time

	for _, entry := range entries {
		key := fmt.Sprintf("%x:%d", entry.LogID, entry.LogIndex)
		if seen[key] {
			return nil, wrapf(TimestampError, nil, "duplicate transparency log entry for log ID %x index %d", entry.LogID, entry.LogIndex)
		}
		seen[key] = true

		if requirePromise && entry.InclusionPromise == nil {
			return nil, wrapf(TlogInclusionPromiseError, nil, "bundle requires an inclusion promise but entry for log ID %x index %d lacks one", entry.LogID, entry.LogIndex)
		}
		if requireProof && entry.InclusionProof == nil {
			return nil, wrapf(TlogInclusionProofError, nil, "bundle requires an inclusion proof but entry for log ID %x index %d lacks one", entry.LogID, entry.LogIndex)
		}

		if err := VerifyTlogBody(entry, sigContent, vc); err != nil {
			continue
		}

		verifiedOne := false

		if entry.InclusionPromise != nil {
			if err := VerifyInclusionPromise(entry, trustedMaterial); err != nil {
				continue
			}
			verifiedOne = true
		}

		if entry.InclusionProof != nil {
			if err := VerifyInclusionProof(entry, trustedMaterial); err != nil {
				continue
			}
			verifiedOne = true
		}

		if !verifiedOne {
			continue
		}

		verifiedCount++
		if requireIntegratedTimestamps {
			verifiedTimes = append(verifiedTimes, entry.IntegratedTimeAsTime())
		}
	}

	if verifiedCount < threshold {
		return nil, wrapf(TimestampError, nil, "only able to verify %d transparency log entries; unable to meet threshold of %d", verifiedCount, threshold)
	}

	return verifiedTimes, nil
}

// VerifyTimestampAuthorityWithThreshold verifies every RFC3161 timestamp
// token attached to entity and requires at least threshold of them to
// verify, per spec §4.7/§4.9.
func VerifyTimestampAuthorityWithThreshold(entity bundle.SignedEntity, trustedMaterial root.TrustedMaterial, threshold int) ([]time.Time, error) {
	times, err := VerifyTimestampAuthority(entity, trustedMaterial)
	if err != nil {
		return nil, err
	}
	if len(times) < threshold {
		return nil, wrapf(TimestampError, nil, "only able to verify %d RFC3161 timestamps; unable to meet threshold of %d", len(times), threshold)
	}
	return times, nil
}

// VerifyTimestampAuthority verifies every RFC3161 timestamp token attached
// to entity. The timestamped content is always the raw signature bytes
// (spec §4.7): Rekor and Fulcio clients timestamp the signature, not the
// artifact or envelope.
func VerifyTimestampAuthority(entity bundle.SignedEntity, trustedMaterial root.TrustedMaterial) ([]time.Time, error) {
	tokens, err := entity.Timestamps()
	if err != nil {
		return nil, wrapf(TimestampError, err, "fetching RFC3161 timestamps")
	}

	sigContent, err := entity.SignatureContent()
	if err != nil {
		return nil, wrapf(TimestampError, err, "fetching signature content")
	}

	var verified []time.Time
	for _, token := range tokens {
		t, err := VerifyRFC3161Timestamp(token, sigContent.Signature(), trustedMaterial)
		if err != nil {
			return nil, err
		}
		verified = append(verified, t)
	}

	return verified, nil
}
