package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maauso/aaxsplit/internal/audio"
	"github.com/maauso/aaxsplit/internal/command"
	"github.com/maauso/aaxsplit/internal/media"
	"github.com/maauso/aaxsplit/internal/probe"
	"github.com/maauso/aaxsplit/internal/storage"
)

// bookMeta builds a probe result the way ffprobe output would parse.
func bookMeta(t *testing.T, artist, title string, chapters int) *probe.Result {
	t.Helper()

	tags := map[string]string{"genre": "Audiobook"}
	if artist != "" {
		tags["artist"] = artist
	}
	if title != "" {
		tags["title"] = title
	}

	chs := make([]map[string]any, 0, chapters)
	for i := 0; i < chapters; i++ {
		chs = append(chs, map[string]any{
			"id":         i,
			"start_time": fmt.Sprintf("%d.000000", i*600),
			"end_time":   fmt.Sprintf("%d.000000", (i+1)*600),
			"tags":       map[string]string{"title": fmt.Sprintf("Part %d", i+1)},
		})
	}

	doc := map[string]any{
		"format": map[string]any{
			"filename": "book.aax",
			"duration": fmt.Sprintf("%d.000000", chapters*600),
			"bit_rate": "64000",
			"tags":     tags,
		},
		"chapters": chs,
		"programs": []any{},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	res, err := probe.Parse(data)
	require.NoError(t, err)
	return res
}

type fakeProber struct {
	mu      sync.Mutex
	results map[string]*probe.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeProber) Probe(_ context.Context, _ string, path string) (*probe.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, path)
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	if res, ok := f.results[path]; ok {
		return res, nil
	}
	return nil, probe.ErrNotFound
}

type fakeProcessor struct {
	mu           sync.Mutex
	transcodes   []media.TranscodeRequest
	covers       []media.CoverRequest
	transcodeErr error
	coverErr     error
	outcome      command.Outcome
}

func (f *fakeProcessor) Transcode(_ context.Context, req media.TranscodeRequest) (command.Outcome, error) {
	f.mu.Lock()
	f.transcodes = append(f.transcodes, req)
	f.mu.Unlock()
	if f.transcodeErr != nil {
		return command.OutcomePlain, f.transcodeErr
	}
	if err := os.WriteFile(req.Output, []byte("audio"), 0o644); err != nil {
		return command.OutcomePlain, err
	}
	return f.outcome, nil
}

func (f *fakeProcessor) ExtractCover(_ context.Context, req media.CoverRequest) error {
	f.mu.Lock()
	f.covers = append(f.covers, req)
	f.mu.Unlock()
	if f.coverErr != nil {
		return f.coverErr
	}
	return os.WriteFile(req.Output, []byte("jpeg"), 0o644)
}

func (f *fakeProcessor) transcodeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transcodes)
}

type fakeSplitter struct {
	mu       sync.Mutex
	requests []audio.Request
	err      error
}

func (f *fakeSplitter) Split(_ context.Context, req audio.Request) (audio.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	res := audio.Result{Strategy: audio.StrategyFor(req.Format), Chapters: len(req.Meta.Chapters)}
	return res, f.err
}

// publishingStorage is local storage that records uploads instead of
// talking to S3.
type publishingStorage struct {
	*storage.LocalStorage
	mu   sync.Mutex
	keys []string
	fail bool
}

func (p *publishingStorage) UploadToS3(_ context.Context, key string, data io.Reader) (string, error) {
	if p.fail {
		return "", errors.New("access denied")
	}
	if _, err := io.Copy(io.Discard, data); err != nil {
		return "", err
	}
	p.mu.Lock()
	p.keys = append(p.keys, key)
	p.mu.Unlock()
	return "s3://books/" + key, nil
}

// panicker panics for one input and delegates the rest.
type panicker struct {
	next  FileProcessor
	input string
}

func (p *panicker) Process(ctx context.Context, seq int, input string) (*Job, error) {
	if input == p.input {
		panic("corrupt chapter table")
	}
	return p.next.Process(ctx, seq, input)
}
