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

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"

	"github.com/immune-gmbh/sampleflow/pkg/storage/helpers"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

func reportColumns() string {
	columns, err := helpers.Columns((*models.Report)(nil))
	if err != nil {
		panic(err)
	}
	return constructColumns("", columns)
}

// AppendReport stores a new report of the sample. Reports are never
// updated, a newer report of the same type supersedes the previous one.
func (stor *Storage) AppendReport(ctx context.Context, sampleID int64, reportType models.ReportType, report string) (*models.Report, error) {
	if _, err := models.ParseReportType(string(reportType)); err != nil {
		return nil, ErrUnableToInsert{insertedValue: string(reportType), Err: err}
	}
	r := models.Report{
		SampleID: sampleID,
		Created:  time.Now().UTC(),
		Type:     reportType,
		Report:   report,
	}
	id, err := stor.insertRow(ctx, "reports", &r, fmt.Sprintf("%s report of sample %d", reportType, sampleID), func(fieldName string, value any) bool {
		return fieldName == "ID"
	})
	if err != nil {
		return nil, err
	}
	r.ID = id
	logger.FromCtx(ctx).Debugf("appended %s report %d of sample %d", reportType, id, sampleID)
	return &r, nil
}

// LatestReport returns the most recent report of the given type.
func (stor *Storage) LatestReport(ctx context.Context, sampleID int64, reportType models.ReportType) (*models.Report, error) {
	query := "SELECT " + reportColumns() + " FROM `reports` WHERE `sample_id` = ? AND `type` = ? ORDER BY `created` DESC, `id` DESC LIMIT 1"
	var reports []*models.Report
	err := stor.DB.SelectContext(ctx, &reports, query, sampleID, reportType)
	stor.Logger.Debugf("query: '%s' with args [%d %s] result: err:%v", query, sampleID, reportType, err)
	if err != nil {
		return nil, ErrSelect{Err: err}
	}
	if len(reports) == 0 {
		return nil, ErrNotFound{Query: fmt.Sprintf("%s report of sample %d", reportType, sampleID)}
	}
	return reports[0], nil
}

// ReportsForSample returns all the reports of the sample, the most recent first.
func (stor *Storage) ReportsForSample(ctx context.Context, sampleID int64) ([]*models.Report, error) {
	query := "SELECT " + reportColumns() + " FROM `reports` WHERE `sample_id` = ? ORDER BY `created` DESC, `id` DESC"
	var reports []*models.Report
	if err := stor.DB.SelectContext(ctx, &reports, query, sampleID); err != nil {
		return nil, ErrSelect{Err: err}
	}
	return reports, nil
}

// ReportsByType returns a page of reports of the given type (of any
// sample), the most recent first.
func (stor *Storage) ReportsByType(ctx context.Context, reportType models.ReportType, limit, offset uint) ([]*models.Report, error) {
	if limit == 0 {
		limit = 100
	}
	query := fmt.Sprintf("SELECT %s FROM `reports` WHERE `type` = ? ORDER BY `created` DESC, `id` DESC LIMIT %d OFFSET %d",
		reportColumns(), limit, offset)
	var reports []*models.Report
	if err := stor.DB.SelectContext(ctx, &reports, query, reportType); err != nil {
		return nil, ErrSelect{Err: err}
	}
	return reports, nil
}
