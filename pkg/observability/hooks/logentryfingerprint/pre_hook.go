// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.
package logentryfingerprint

import (
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/pkg/field"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/facebookincubator/go-belt/tool/logger/types"
	"lukechampine.com/blake3"
)

// FieldValue is the custom type for a field, which
// contains the resulting signature/fingerprint.
type FieldValue string

// PreHook generates stable signatures (fingerprints) of the places issuing
// logs through a Logger, so that entries of the same kind (for example
// "engine failed" for any engine and any sample) can be grouped.
//
// The parts expected to be variable are ignored, such as TraceIDs, format
// arguments and field values.
type PreHook struct{}

var _ logger.PreHook = PreHook{}

const (
	// FieldKey is the key value of field, which contains
	// the log entry signature/fingerprint (see also FieldValue).
	FieldKey = "sampleflow/logentryfingerprint"

	fingerprintSize = 16
)

func typeName(arg any) string {
	if arg == nil {
		return "nil"
	}
	t := reflect.TypeOf(arg)
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Fingerprint returns the fingerprint of a log entry.
func Fingerprint(
	level logger.Level,
	staticMessage string,
	fields field.AbstractFields,
	customArgs []any,
) FieldValue {
	h := blake3.New(fingerprintSize, nil)
	fmt.Fprintf(h, "%s-%s", level, staticMessage)
	for _, arg := range customArgs {
		h.Write([]byte{0})
		h.Write([]byte(typeName(arg)))
	}
	if fields != nil {
		fields.ForEachField(func(f *field.Field) bool {
			h.Write([]byte{0})
			h.Write([]byte(f.Key))
			return true
		})
	}
	return FieldValue(hex.EncodeToString(h.Sum(nil)))
}

func newLogEntryFingerprintResult(
	level logger.Level,
	staticMessage string,
	fields field.AbstractFields,
	customArgs []any,
) types.PreHookResult {
	return types.PreHookResult{
		ExtraFields: &field.Field{
			Key:   FieldKey,
			Value: Fingerprint(level, staticMessage, fields, customArgs),
		},
	}
}

// ProcessInput implements logger.PreHook (see the description of the `PreHook` structure)
func (PreHook) ProcessInput(_ belt.TraceIDs, level logger.Level, args ...any) types.PreHookResult {
	return newLogEntryFingerprintResult(level, "", nil, args)
}

// ProcessInputf implements logger.PreHook (see the description of the `PreHook` structure)
func (PreHook) ProcessInputf(_ belt.TraceIDs, level logger.Level, format string, _ ...any) types.PreHookResult {
	return newLogEntryFingerprintResult(level, format, nil, nil)
}

// ProcessInputFields implements logger.PreHook (see the description of the `PreHook` structure)
func (PreHook) ProcessInputFields(_ belt.TraceIDs, level logger.Level, message string, fields field.AbstractFields) types.PreHookResult {
	return newLogEntryFingerprintResult(level, message, fields, nil)
}
