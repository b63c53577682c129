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
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	xlogrus "github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/sampleflow/pkg/blobstorage"
	"github.com/immune-gmbh/sampleflow/pkg/digest"
	"github.com/immune-gmbh/sampleflow/pkg/objhash"
	"github.com/immune-gmbh/sampleflow/pkg/storage/models"
)

type mapCache struct {
	locker  sync.Mutex
	objects map[objhash.ObjHash]any
}

var _ Cache = (*mapCache)(nil)

func newMapCache() *mapCache {
	return &mapCache{objects: map[objhash.ObjHash]any{}}
}

func (c *mapCache) Get(ctx context.Context, objectKey objhash.ObjHash) any {
	c.locker.Lock()
	defer c.locker.Unlock()
	return c.objects[objectKey]
}

func (c *mapCache) Set(ctx context.Context, objectKey objhash.ObjHash, object any, objectSize uint64) {
	c.locker.Lock()
	defer c.locker.Unlock()
	c.objects[objectKey] = object
}

func newTestStorage(t *testing.T) (context.Context, *Storage, string) {
	ctx := logger.CtxWithLogger(
		context.Background(),
		xlogrus.Default().WithLevel(logger.LevelDebug),
	)

	dir := t.TempDir()
	blobDir := filepath.Join(dir, "samples")
	blob, err := blobstorage.NewFS(blobDir)
	require.NoError(t, err)
	cache := newMapCache()

	stor, err := New(DriverSQLite3, filepath.Join(dir, "sampleflow.sqlite"), blob, cache, logger.FromCtx(ctx))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, stor.Close())
	})
	stor.RetryDefaultInitialDelay = time.Millisecond
	stor.RetryTimeout = time.Second
	stor.insertTriesLimit = 2

	require.NoError(t, stor.Migrate())
	// the second run is a no-op
	require.NoError(t, stor.Migrate())
	return ctx, stor, blobDir
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New("postgres", "", nil, nil, nil)
	require.ErrorAs(t, err, &ErrUnsupportedDriver{})
}

func TestInsertSampleStoresContentOnce(t *testing.T) {
	ctx, stor, blobDir := newTestStorage(t)

	data := []byte("MZ\x90\x00unit-test")
	first, err := stor.InsertSample(ctx, data, SampleInput{Filename: "first.exe", Uploader: "alice"})
	require.NoError(t, err)
	second, err := stor.InsertSample(ctx, data, SampleInput{Filename: "second.exe", Uploader: "bob"})
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.SHA256, second.SHA256)
	require.Equal(t, digest.Compute(data).SHA256, first.SHA256)

	entries, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, first.SHA256, entries[0].Name())

	samples, err := stor.FindSamples(ctx, FindSampleFilter{SHA256: &first.SHA256}, 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, second.ID, samples[0].ID)
	require.Equal(t, "second.exe", samples[0].Filename)
	require.Equal(t, "bob", samples[0].Uploader)
	require.Equal(t, first.ID, samples[1].ID)
}

func TestInsertSampleConcurrent(t *testing.T) {
	ctx, stor, blobDir := newTestStorage(t)

	data := []byte("concurrent submissions of the same content")
	const count = 8
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := stor.InsertSample(ctx, data, SampleInput{Filename: fmt.Sprintf("copy-%d.bin", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := os.ReadDir(blobDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	sha256 := digest.Compute(data).SHA256
	samples, err := stor.FindSamples(ctx, FindSampleFilter{SHA256: &sha256}, 0)
	require.NoError(t, err)
	require.Len(t, samples, count)
}

func TestFindSampleByHash(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	data := []byte("find me by any digest")
	_, err := stor.InsertSample(ctx, data, SampleInput{Filename: "old.bin"})
	require.NoError(t, err)
	latest, err := stor.InsertSample(ctx, data, SampleInput{Filename: "new.bin"})
	require.NoError(t, err)

	d := digest.Compute(data)
	for _, identifier := range []string{d.MD5, d.SHA1, d.SHA256, d.SHA512} {
		found, err := stor.FindSampleByHash(ctx, identifier)
		require.NoError(t, err, identifier)
		require.Equal(t, latest.ID, found.ID, identifier)
		require.Equal(t, d.SHA512, found.SHA512)
		require.Equal(t, int64(len(data)), found.Size)
	}

	found, err := stor.FindSampleByHash(ctx, " "+d.SHA1+"\n")
	require.NoError(t, err)
	require.Equal(t, latest.ID, found.ID)

	_, err = stor.FindSampleByHash(ctx, "../../etc/passwd")
	require.ErrorAs(t, err, &ErrInvalidIdentifier{})

	_, err = stor.FindSampleByHash(ctx, digest.Compute([]byte("missing")).SHA256)
	require.ErrorAs(t, err, &ErrNotFound{})
}

func TestChildrenAndDelete(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	parent, err := stor.InsertSample(ctx, []byte("PK\x03\x04archive"), SampleInput{Filename: "bundle.zip"})
	require.NoError(t, err)
	childA, err := stor.InsertSample(ctx, []byte("member a"), SampleInput{Filename: "a.txt", ParentID: &parent.ID})
	require.NoError(t, err)
	childB, err := stor.InsertSample(ctx, []byte("member b"), SampleInput{Filename: "b.txt", ParentID: &parent.ID})
	require.NoError(t, err)

	children, err := stor.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 2)
	require.Equal(t, childB.ID, children[0].ID)
	require.Equal(t, childA.ID, children[1].ID)
	require.Equal(t, parent.ID, *children[0].ParentID)

	require.NoError(t, stor.DeleteSample(ctx, childA.ID))
	require.ErrorAs(t, stor.DeleteSample(ctx, childA.ID), &ErrNotFound{})

	children, err = stor.Children(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	_, err = stor.GetSample(ctx, childA.ID)
	require.ErrorAs(t, err, &ErrNotFound{})

	deleted, err := stor.FindSamples(ctx, FindSampleFilter{ID: &childA.ID, Deleted: &[]bool{true}[0]}, 0)
	require.NoError(t, err)
	require.Len(t, deleted, 1)

	// the content is kept
	data, err := stor.GetSampleBytes(ctx, childA.SHA256)
	require.NoError(t, err)
	require.Equal(t, []byte("member a"), data)
}

func TestGetSampleBytesCached(t *testing.T) {
	ctx, stor, blobDir := newTestStorage(t)

	sample, err := stor.InsertSample(ctx, []byte("cached content"), SampleInput{Filename: "cached.bin"})
	require.NoError(t, err)

	data, err := stor.GetSampleBytes(ctx, sample.SHA256)
	require.NoError(t, err)
	require.Equal(t, []byte("cached content"), data)
	require.Len(t, stor.Cache.(*mapCache).objects, 1)

	// served from the cache once the blob is gone
	require.NoError(t, os.Remove(filepath.Join(blobDir, sample.SHA256)))
	data, err = stor.GetSampleBytes(ctx, sample.SHA256)
	require.NoError(t, err)
	require.Equal(t, []byte("cached content"), data)
}

func TestFindSamplesFilters(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	_, err := stor.FindSamples(ctx, FindSampleFilter{}, 0)
	require.ErrorAs(t, err, &ErrEmptyFilters{})

	_, err = stor.InsertSample(ctx, []byte("one"), SampleInput{Filename: "dropper_1.exe", Uploader: "alice"})
	require.NoError(t, err)
	_, err = stor.InsertSample(ctx, []byte("two"), SampleInput{Filename: "dropper_2.exe", Uploader: "bob"})
	require.NoError(t, err)
	_, err = stor.InsertSample(ctx, []byte("three"), SampleInput{Filename: "invoice.pdf", Uploader: "alice"})
	require.NoError(t, err)

	prefix := "dropper"
	samples, err := stor.FindSamples(ctx, FindSampleFilter{FilenamePrefix: &prefix}, 0)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	uploader := "alice"
	samples, err = stor.FindSamples(ctx, FindSampleFilter{Uploader: &uploader}, 1)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.Equal(t, "invoice.pdf", samples[0].Filename)
}

func TestCompileSampleWhereConds(t *testing.T) {
	sha256 := "ab"
	prefix := "mal_%"
	conds, args := compileSampleWhereConds(FindSampleFilter{SHA256: &sha256, FilenamePrefix: &prefix})
	require.Equal(t, "`sha256` = ? AND `deleted` = ? AND `filename` LIKE ? ESCAPE '!'", conds)
	require.Equal(t, []any{"ab", false, "mal!_!%%"}, args)
}

func TestFindSamplesFilenamePrefixWildcards(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	for _, filename := range []string{"my_sample.exe", "myXsample.exe", "100%_off!.doc", "100percent.doc"} {
		_, err := stor.InsertSample(ctx, []byte(filename), SampleInput{Filename: filename})
		require.NoError(t, err)
	}

	for prefix, expected := range map[string][]string{
		"my_sample": {"my_sample.exe"},
		"my":        {"myXsample.exe", "my_sample.exe"},
		"100%_off!": {"100%_off!.doc"},
		"100":       {"100percent.doc", "100%_off!.doc"},
	} {
		prefix := prefix
		samples, err := stor.FindSamples(ctx, FindSampleFilter{FilenamePrefix: &prefix}, 0)
		require.NoError(t, err, prefix)
		var filenames []string
		for _, sample := range samples {
			filenames = append(filenames, sample.Filename)
		}
		require.ElementsMatch(t, expected, filenames, prefix)
	}
}

func TestSamplePath(t *testing.T) {
	ctx, stor, blobDir := newTestStorage(t)

	sample, err := stor.InsertSample(ctx, []byte("scan me"), SampleInput{Filename: "scan.bin"})
	require.NoError(t, err)

	p, cleanup, err := stor.SamplePath(ctx, sample.SHA256)
	require.NoError(t, err)
	defer cleanup()
	require.Equal(t, filepath.Join(blobDir, sample.SHA256), p)

	data, sample2, err := stor.Get(ctx, sample.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("scan me"), data)
	require.Equal(t, sample.SHA256, sample2.SHA256)
}

func TestReports(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	sample, err := stor.InsertSample(ctx, []byte("reported"), SampleInput{Filename: "reported.bin"})
	require.NoError(t, err)

	_, err = stor.LatestReport(ctx, sample.ID, models.ReportTypeAntivirus)
	require.ErrorAs(t, err, &ErrNotFound{})

	first, err := stor.AppendReport(ctx, sample.ID, models.ReportTypeAntivirus, `{"eset":"Win32/Agent"}`)
	require.NoError(t, err)
	static, err := stor.AppendReport(ctx, sample.ID, models.ReportTypeStatic, `{"mime":"text/plain"}`)
	require.NoError(t, err)
	second, err := stor.AppendReport(ctx, sample.ID, models.ReportTypeAntivirus, `{}`)
	require.NoError(t, err)

	latest, err := stor.LatestReport(ctx, sample.ID, models.ReportTypeAntivirus)
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
	require.Equal(t, `{}`, latest.Report)

	all, err := stor.ReportsForSample(ctx, sample.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []int64{second.ID, static.ID, first.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})

	byType, err := stor.ReportsByType(ctx, models.ReportTypeAntivirus, 1, 1)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, first.ID, byType[0].ID)

	_, err = stor.AppendReport(ctx, sample.ID, models.ReportType("firmware"), "{}")
	require.Error(t, err)
}

func pseudoRandomBytes(seed int64, size int) []byte {
	b := make([]byte, size)
	_, _ = rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func TestSimilarSamples(t *testing.T) {
	ctx, stor, _ := newTestStorage(t)

	original := pseudoRandomBytes(1, 64<<10)
	variant := append([]byte{}, original...)
	copy(variant[30000:], []byte("patched section of the variant"))
	unrelated := pseudoRandomBytes(2, 64<<10)

	origSample, err := stor.InsertSample(ctx, original, SampleInput{Filename: "original.bin"})
	require.NoError(t, err)
	require.NotEmpty(t, origSample.CTPH)
	variantSample, err := stor.InsertSample(ctx, variant, SampleInput{Filename: "variant.bin"})
	require.NoError(t, err)
	_, err = stor.InsertSample(ctx, unrelated, SampleInput{Filename: "unrelated.bin"})
	require.NoError(t, err)
	_, err = stor.InsertSample(ctx, []byte("too small for a fuzzy hash"), SampleInput{Filename: "small.bin"})
	require.NoError(t, err)

	similar, err := stor.SimilarSamples(ctx, origSample.CTPH, 50, 0)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	require.ElementsMatch(t, []int64{origSample.ID, variantSample.ID}, []int64{similar[0].ID, similar[1].ID})
	require.GreaterOrEqual(t, similar[0].Score, similar[1].Score)
	require.GreaterOrEqual(t, similar[1].Score, 50)

	similar, err = stor.SimilarSamples(ctx, origSample.CTPH, 50, 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)

	require.NoError(t, stor.DeleteSample(ctx, variantSample.ID))
	similar, err = stor.SimilarSamples(ctx, origSample.CTPH, 50, 0)
	require.NoError(t, err)
	require.Len(t, similar, 1)

	_, err = stor.SimilarSamples(ctx, "not a ctph", 50, 0)
	require.ErrorAs(t, err, &ErrInvalidIdentifier{})
}

func TestComparableBlockSizes(t *testing.T) {
	sizes, err := comparableBlockSizes("1536:abc:def")
	require.NoError(t, err)
	require.Equal(t, []uint64{1536, 3072, 768}, sizes)

	sizes, err = comparableBlockSizes("3:abc:def")
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 6}, sizes)

	_, err = comparableBlockSizes("0:abc:def")
	require.Error(t, err)
}
