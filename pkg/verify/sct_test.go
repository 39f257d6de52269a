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
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifySignedCertificateTimestampNoEmbeddedSCTs(t *testing.T) {
	now := time.Now()
	leaf, _ := generateTestChain(t, now.Add(-time.Hour), now.Add(time.Hour))

	err := VerifySignedCertificateTimestamp(leaf, 1, fakeEmptyTrustedMaterial{})
	require.Error(t, err)
}
