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

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReportType is the kind of analysis a Report is a result of.
type ReportType string

const (
	ReportTypeStatic        = ReportType("static")
	ReportTypeAntivirus     = ReportType("antivirus")
	ReportTypeDynamic       = ReportType("dynamic")
	ReportTypeVulnerability = ReportType("vulnerability")
)

// AllReportTypes returns every known ReportType.
func AllReportTypes() []ReportType {
	return []ReportType{
		ReportTypeStatic,
		ReportTypeAntivirus,
		ReportTypeDynamic,
		ReportTypeVulnerability,
	}
}

// ParseReportType returns a ReportType given its name (case-insensitive).
func ParseReportType(s string) (ReportType, error) {
	for _, t := range AllReportTypes() {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown report type '%s'", s)
}

// Report is an immutable record of a single analysis of a sample. Reports
// are only appended, the latest one of a type wins.
type Report struct {
	ID       int64      `db:"id,pk"`
	SampleID int64      `db:"sample_id"`
	Created  time.Time  `db:"created"`
	Type     ReportType `db:"type"`
	Report   string     `db:"report"`
}

// ReportView is the user-visible representation of a Report.
type ReportView struct {
	ID           int64           `json:"id"`
	Created      time.Time       `json:"created"`
	Type         ReportType      `json:"type"`
	Report       string          `json:"report"`
	ReportParsed json.RawMessage `json:"report_parsed,omitempty"`
}

// View returns the user-visible representation of the Report. If parse is
// true and the report body is valid JSON it is also attached as a
// structured value.
func (r Report) View(parse bool) ReportView {
	v := ReportView{
		ID:      r.ID,
		Created: r.Created,
		Type:    r.Type,
		Report:  r.Report,
	}
	if parse && json.Valid([]byte(r.Report)) {
		v.ReportParsed = json.RawMessage(r.Report)
	}
	return v
}
