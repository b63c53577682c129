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
	"sort"
	"strconv"
	"strings"

	"github.com/immune-gmbh/sampleflow/pkg/digest"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

// SimilarSample is a sample with its CTPH similarity score (0..100).
type SimilarSample struct {
	*models.Sample
	Score int `json:"score"`
}

// comparableBlockSizes returns the CTPH block sizes comparable with the
// given CTPH: the same, the doubled and the halved one.
func comparableBlockSizes(ctph string) ([]uint64, error) {
	blockSizeStr, _, ok := strings.Cut(ctph, ":")
	if !ok {
		return nil, fmt.Errorf("invalid CTPH '%s'", ctph)
	}
	blockSize, err := strconv.ParseUint(blockSizeStr, 10, 64)
	if err != nil || blockSize == 0 {
		return nil, fmt.Errorf("invalid block size in CTPH '%s'", ctph)
	}
	result := []uint64{blockSize, blockSize * 2}
	if blockSize%2 == 0 {
		result = append(result, blockSize/2)
	}
	return result, nil
}

// SimilarSamples returns not deleted samples which CTPH has a similarity
// score of at least threshold with ctph, the most similar first. A zero
// limit means no limit.
func (stor *Storage) SimilarSamples(ctx context.Context, ctph string, threshold int, limit uint) ([]SimilarSample, error) {
	blockSizes, err := comparableBlockSizes(ctph)
	if err != nil {
		return nil, ErrInvalidIdentifier{Identifier: ctph}
	}

	var (
		conds []string
		args  []any
	)
	for _, blockSize := range blockSizes {
		conds = append(conds, "`ctph` LIKE ?")
		args = append(args, fmt.Sprintf("%d:%%", blockSize))
	}
	query := fmt.Sprintf("SELECT %s FROM `samples` WHERE `deleted` = ? AND (%s) ORDER BY `created` DESC, `id` DESC",
		sampleColumns(),
		strings.Join(conds, " OR "),
	)
	args = append([]any{false}, args...)

	var candidates []*models.Sample
	err = stor.DB.SelectContext(ctx, &candidates, query, args...)
	stor.Logger.Debugf("query: '%s' with args %v result: err:%v", query, args, err)
	if err != nil {
		return nil, ErrSelect{Err: err}
	}

	var result []SimilarSample
	for _, candidate := range candidates {
		score, err := digest.Similarity(ctph, candidate.CTPH)
		if err != nil {
			stor.Logger.Debugf("unable to compare CTPH of sample %d: %v", candidate.ID, err)
			continue
		}
		if score < threshold {
			continue
		}
		result = append(result, SimilarSample{Sample: candidate, Score: score})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Score > result[j].Score
	})
	if limit > 0 && uint(len(result)) > limit {
		result = result[:limit]
	}
	return result, nil
}
