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

package clienthelpers

import (
	"context"
	"net/http"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/beltctx"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const (
	// HTTPHeaderTraceID is the header carrying the trace IDs of the request.
	HTTPHeaderTraceID = "X-Trace-Id"

	// HTTPHeaderNameLogLevel is the header asking the remote side to log
	// the request with the given level.
	HTTPHeaderNameLogLevel = "X-Log-Level"
)

// HTTPHeaders returns the headers to be passed through to a remote service.
func HTTPHeaders(belt *belt.Belt, remoteLogLevel logger.Level) http.Header {
	httpHeaders := http.Header{}

	if traceIDs := belt.TraceIDs(); traceIDs != nil {
		xTraceIDs := make([]string, 0, len(traceIDs))
		for _, traceID := range traceIDs {
			xTraceIDs = append(xTraceIDs, string(traceID))
		}
		httpHeaders[HTTPHeaderTraceID] = xTraceIDs
	}

	if remoteLogLevel != logger.LevelUndefined {
		httpHeaders[HTTPHeaderNameLogLevel] = []string{remoteLogLevel.String()}
	}

	return httpHeaders
}

// SetHeaders adds the headers derived from the context to the request.
func SetHeaders(ctx context.Context, req *http.Request) {
	b := beltctx.Belt(ctx)
	if b == nil {
		return
	}
	remoteLogLevel, _ := ctx.Value(ValueKeyLogLevelRemote).(logger.Level)
	for key, values := range HTTPHeaders(b, remoteLogLevel) {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
}
