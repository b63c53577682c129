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

package cli

// Preset is the output format of a known command-line engine.
type Preset struct {
	Regex      string
	KeyGroup   int
	ValueGroup int
}

// Presets are the known engine kinds. Groups are 1-based submatch indices.
var Presets = map[string]Preset{
	"eset": {
		Regex:      `name="(.*?)", threat="(.*?)",`,
		KeyGroup:   1,
		ValueGroup: 2,
	},
	"fprot": {
		Regex:      `<(.*)>\s+(.*)`,
		KeyGroup:   2,
		ValueGroup: 1,
	},
	"fsecure": {
		Regex:      `(.*): Infected: (.*) \[[a-z]+\]`,
		KeyGroup:   1,
		ValueGroup: 2,
	},
	"drweb": {
		Regex:      `>?(.*) infected with (.*)`,
		KeyGroup:   1,
		ValueGroup: 2,
	},
	"savapi-cli": {
		Regex:      `([0-9]{3}) (.*)<<<(.*);(.*);(.*)`,
		KeyGroup:   2,
		ValueGroup: 3,
	},
}

// KindGeneric is a command-line engine without a preset, the regex must
// be configured explicitly.
const KindGeneric = "cli"
