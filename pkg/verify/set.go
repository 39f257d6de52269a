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
	"encoding/hex"
	"encoding/json"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/root"
)

// setPayload is the exact field set Rekor signs over to produce a Signed
// Entry Timestamp, spec §4.5. Field order does not matter here; it is the
// RFC 8785 canonicalization of the marshaled JSON that must be byte-exact.
type setPayload struct {
	Body           string `json:"body"`
	IntegratedTime int64  `json:"integratedTime"`
	LogIndex       int64  `json:"logIndex"`
	LogID          string `json:"logID"`
}

// VerifyInclusionPromise reconstructs the signed entry timestamp payload for
// entry and checks its signature against the matching trusted log, per spec
// §4.5. Bundles that omit an inclusion promise are not this function's
// concern; VerifyArtifactTransparencyLog enforces RequiresInclusionPromise
// before calling in here.
func VerifyInclusionPromise(entry bundle.TransparencyLogEntry, trustedMaterial root.TrustedMaterial) error {
	if entry.InclusionPromise == nil {
		return newError(TlogInclusionPromiseError, "entry has no inclusion promise", nil)
	}

	logIDHex := hex.EncodeToString(entry.LogID)
	tlogs := trustedMaterial.TlogAuthorities()
	log, ok := tlogs[logIDHex]
	if !ok {
		return newError(TlogInclusionPromiseError, "no trusted transparency log matches entry log ID", nil)
	}
	if !log.ValidAt(entry.IntegratedTimeAsTime()) {
		return newError(TlogInclusionPromiseError, "log key was not valid at entry's integrated time", nil)
	}

	payload := setPayload{
		Body:           base64.StdEncoding.EncodeToString(entry.CanonicalizedBody),
		IntegratedTime: entry.IntegratedTime,
		LogIndex:       entry.LogIndex,
		LogID:          logIDHex,
	}
	marshaled, err := json.Marshal(payload)
	if err != nil {
		return wrapf(TlogInclusionPromiseError, err, "marshaling SET payload")
	}
	canonical, err := jsoncanonicalizer.Transform(marshaled)
	if err != nil {
		return wrapf(TlogInclusionPromiseError, err, "canonicalizing SET payload")
	}

	if err := verifySignature(log.PublicKey, canonical, entry.InclusionPromise.SignedEntryTimestamp, log.SignatureHashFunc); err != nil {
		return wrapf(TlogInclusionPromiseError, err, "signed entry timestamp verification failed")
	}
	return nil
}
