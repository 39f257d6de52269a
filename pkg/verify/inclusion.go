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
	"fmt"
	"strconv"
	"strings"

	"github.com/transparency-dev/merkle/proof"
	"github.com/transparency-dev/merkle/rfc6962"

	"github.com/sigstore/bundle-verifier/pkg/bundle"
	"github.com/sigstore/bundle-verifier/pkg/root"
)

// signedCheckpoint is a parsed "signed note" checkpoint in the format a
// transparency-dev log emits: an origin line, a tree size line, a root
// hash line, then a blank line, then one or more "— name sig" lines where
// sig base64-decodes to a 4-byte key hint followed by the raw signature.
type signedCheckpoint struct {
	Origin   string
	Size     uint64
	RootHash []byte
	sigs     []checkpointSig
}

type checkpointSig struct {
	name    string
	keyHint [4]byte
	sig     []byte
}

// parseSignedCheckpoint parses the envelope text, per spec §4.6.
func parseSignedCheckpoint(raw string) (*signedCheckpoint, []byte, error) {
	parts := strings.SplitN(raw, "\n\n", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("checkpoint missing body/signature separator")
	}
	body, sigBlock := parts[0], parts[1]

	lines := strings.Split(body, "\n")
	if len(lines) < 3 {
		return nil, nil, fmt.Errorf("checkpoint body has too few lines")
	}
	size, err := strconv.ParseUint(lines[1], 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing checkpoint size: %w", err)
	}
	rootHash, err := base64.StdEncoding.DecodeString(lines[2])
	if err != nil {
		return nil, nil, fmt.Errorf("parsing checkpoint root hash: %w", err)
	}

	cp := &signedCheckpoint{Origin: lines[0], Size: size, RootHash: rootHash}

	for _, line := range strings.Split(strings.TrimRight(sigBlock, "\n"), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "— ") {
			continue
		}
		fields := strings.SplitN(strings.TrimPrefix(line, "— "), " ", 2)
		if len(fields) != 2 {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(fields[1])
		if err != nil || len(decoded) < 5 {
			continue
		}
		var hint [4]byte
		copy(hint[:], decoded[:4])
		cp.sigs = append(cp.sigs, checkpointSig{name: fields[0], keyHint: hint, sig: decoded[4:]})
	}

	bodyText := []byte(body + "\n")
	return cp, bodyText, nil
}

// verifyCheckpointSignature checks that at least one signature line on cp
// verifies against log's public key, over the exact checkpoint body text.
func verifyCheckpointSignature(cp *signedCheckpoint, bodyText []byte, log *root.TransparencyLogInstance) error {
	var lastErr error
	for _, s := range cp.sigs {
		if err := verifySignature(log.PublicKey, bodyText, s.sig, log.SignatureHashFunc); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no signature lines present")
	}
	return lastErr
}

// VerifyCheckpoint verifies a bundle's embedded checkpoint, if present,
// against the trusted log's public key, per spec §4.6.
func VerifyCheckpoint(entry bundle.TransparencyLogEntry, trustedMaterial root.TrustedMaterial) (*signedCheckpoint, error) {
	if entry.InclusionProof == nil || entry.InclusionProof.Checkpoint == "" {
		return nil, nil
	}

	logIDHex := hex.EncodeToString(entry.LogID)
	log, ok := trustedMaterial.TlogAuthorities()[logIDHex]
	if !ok {
		return nil, newError(TlogInclusionProofError, "no trusted transparency log matches entry log ID", nil)
	}

	cp, bodyText, err := parseSignedCheckpoint(entry.InclusionProof.Checkpoint)
	if err != nil {
		return nil, wrapf(TlogInclusionProofError, err, "parsing checkpoint")
	}
	if err := verifyCheckpointSignature(cp, bodyText, log); err != nil {
		return nil, wrapf(TlogInclusionProofError, err, "checkpoint signature verification failed")
	}
	if !constantTimeEqual(cp.RootHash, entry.InclusionProof.RootHash) {
		return nil, newError(TlogInclusionProofError, "checkpoint root hash does not match inclusion proof root hash", nil)
	}
	if cp.Size != uint64(entry.InclusionProof.TreeSize) {
		return nil, newError(TlogInclusionProofError, "checkpoint tree size does not match inclusion proof tree size", nil)
	}
	return cp, nil
}

// VerifyInclusionProof recomputes the Merkle inclusion path from entry's
// canonicalized body to its claimed root hash, per spec §4.6 (RFC 6962). If
// the entry carries a checkpoint, its signature is checked first and its
// root hash is used in place of the bare inclusion proof's root hash.
func VerifyInclusionProof(entry bundle.TransparencyLogEntry, trustedMaterial root.TrustedMaterial) error {
	if entry.InclusionProof == nil {
		return newError(TlogInclusionProofError, "entry has no inclusion proof", nil)
	}

	rootHash := entry.InclusionProof.RootHash
	if cp, err := VerifyCheckpoint(entry, trustedMaterial); err != nil {
		return err
	} else if cp != nil {
		rootHash = cp.RootHash
	}

	leafHash := rfc6962.DefaultHasher.HashLeaf(entry.CanonicalizedBody)
	err := proof.VerifyInclusion(
		rfc6962.DefaultHasher,
		uint64(entry.LogIndex),
		uint64(entry.InclusionProof.TreeSize),
		leafHash,
		entry.InclusionProof.Hashes,
		rootHash,
	)
	if err != nil {
		return wrapf(TlogInclusionProofError, err, "merkle inclusion proof verification failed")
	}
	return nil
}
