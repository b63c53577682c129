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

package savapi

import (
	"fmt"
	"strconv"
	"strings"
)

// Code is a status code of a response line.
type Code int

const (
	CodeInfo          Code = 100
	CodePong          Code = 199
	CodeClean         Code = 200
	CodeCleanArchive  Code = 210
	CodeTimeout       Code = 220
	CodeAlert         Code = 310
	CodeFinishedAlert Code = 319
	CodeError         Code = 350
	CodeAlertInfo     Code = 401
	CodeRepairable    Code = 420
	CodeOffice        Code = 421
	CodeOfficeMacros  Code = 422
	CodeAlertURL      Code = 430
	CodeIFrame        Code = 440
	CodePlugin        Code = 450
	CodeInformation   Code = 499
)

var codeDescriptions = map[Code]string{
	CodeInfo:          "Information (response)",
	CodePong:          "Pong response with optional ping-text",
	CodeClean:         "File was not an archive, no alert found",
	CodeCleanArchive:  "File was an archive, no alert found",
	CodeTimeout:       "A connection timeout occurred",
	CodeAlert:         "Alert found",
	CodeFinishedAlert: "Scan finished, alert found",
	CodeError:         "Error occurred",
	CodeAlertInfo:     "Low-level alert information",
	CodeRepairable:    "Repairable alert found",
	CodeOffice:        "Office document found",
	CodeOfficeMacros:  "Office document with macros found",
	CodeAlertURL:      "Alert URL",
	CodeIFrame:        "IFRAME",
	CodePlugin:        "Plugin response",
	CodeInformation:   "Information",
}

// String implements fmt.Stringer.
func (c Code) String() string {
	if d, ok := codeDescriptions[c]; ok {
		return d
	}
	return fmt.Sprintf("unknown code %d", int(c))
}

// IsAlert returns true if the code reports a detection.
func (c Code) IsAlert() bool {
	switch c {
	case CodeAlert, CodeFinishedAlert, CodeRepairable, CodeOffice, CodeOfficeMacros:
		return true
	}
	return false
}

// IsTerminal returns true if no more lines follow the code in response to
// SCAN. A CodeClean line is not terminal: it is reported per archive member
// and may be followed by alerts.
func (c Code) IsTerminal() bool {
	switch c {
	case CodeFinishedAlert, CodeError, CodeTimeout, CodeCleanArchive:
		return true
	}
	return false
}

// Event is a single response line.
type Event struct {
	Code Code   `json:"code"`
	Text string `json:"text"`
}

// ErrInvalidLine implements "error", for the description see Error.
type ErrInvalidLine struct {
	Line string
}

func (err ErrInvalidLine) Error() string {
	return fmt.Sprintf("invalid response line '%s', expected '<3-digit code> <text>'", err.Line)
}

// ParseLine parses a "<3-digit code> <text>" line.
func ParseLine(line string) (Event, error) {
	line = strings.TrimRight(line, "\r\n")
	codeStr, text, _ := strings.Cut(line, " ")
	if len(codeStr) != 3 {
		return Event{}, ErrInvalidLine{Line: line}
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 {
		return Event{}, ErrInvalidLine{Line: line}
	}
	if _, ok := codeDescriptions[Code(code)]; !ok {
		return Event{}, ErrInvalidLine{Line: line}
	}
	return Event{Code: Code(code), Text: text}, nil
}

// Finding extracts the object and the threat name from an alert text
// of form "<object> <<< <threat>;<type>;<info>".
func (ev Event) Finding() (object, threat string, ok bool) {
	object, details, found := strings.Cut(ev.Text, "<<<")
	if !found {
		return "", "", false
	}
	threat, _, _ = strings.Cut(details, ";")
	object, threat = strings.TrimSpace(object), strings.TrimSpace(threat)
	if threat == "" {
		return "", "", false
	}
	return object, threat, true
}
