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

import "fmt"

// ErrorCode identifies the class of verification failure, spec §7.
type ErrorCode string

const (
	SignatureError               ErrorCode = "SIGNATURE_ERROR"
	CertificateError              ErrorCode = "CERTIFICATE_ERROR"
	PublicKeyError                ErrorCode = "PUBLIC_KEY_ERROR"
	TlogBodyError                 ErrorCode = "TLOG_BODY_ERROR"
	TlogInclusionPromiseError     ErrorCode = "TLOG_INCLUSION_PROMISE_ERROR"
	TlogInclusionProofError       ErrorCode = "TLOG_INCLUSION_PROOF_ERROR"
	TimestampError                ErrorCode = "TIMESTAMP_ERROR"
	UntrustedSignerError          ErrorCode = "UNTRUSTED_SIGNER_ERROR"
)

// VerificationError is the typed failure every exported verification
// function in this package returns. There is no recovery path: per spec §7,
// verification is all-or-nothing.
type VerificationError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *VerificationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *VerificationError) Unwrap() error { return e.Cause }

func newError(code ErrorCode, message string, cause error) *VerificationError {
	return &VerificationError{Code: code, Message: message, Cause: cause}
}

func wrapf(code ErrorCode, cause error, format string, args ...any) *VerificationError {
	return &VerificationError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}
