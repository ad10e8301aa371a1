package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/pkg/hub"
)

type fakePutter struct {
	got  map[string]string
	errs map[string]error
}

func (f *fakePutter) PutTranscript(_ context.Context, videoID, text string) (*models.Transcript, error) {
	if err := f.errs[videoID]; err != nil {
		return nil, err
	}

	f.got[videoID] = text

	return &models.Transcript{VideoID: videoID, Text: text}, nil
}

func TestReadRows(t *testing.T) {
	input := "title,Video_ID,text\n" +
		"a,v1,\"hello, world\"\n" +
		"b,,orphan\n" +
		"c,v3\n"

	rows, err := readRows(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, row{line: 2, videoID: "v1", text: "hello, world"}, rows[0])
	assert.Empty(t, rows[1].videoID)
	assert.Equal(t, row{line: 4, videoID: "v3"}, rows[2])
}

func TestReadRows_MissingColumns(t *testing.T) {
	_, err := readRows(strings.NewReader("id,body\nv1,x\n"))
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	putter := &fakePutter{
		got: map[string]string{},
		errs: map[string]error{
			"gone": &hub.APIError{StatusCode: 404},
			"boom": errors.New("connection reset"),
		},
	}

	rows := []row{
		{line: 2, videoID: "v1", text: "one"},
		{line: 3, videoID: "", text: "skip"},
		{line: 4, videoID: "gone", text: "x"},
		{line: 5, videoID: "boom", text: "y"},
	}

	st := ingest(context.Background(), putter, rate.NewLimiter(rate.Inf, 1), rows)

	assert.Equal(t, stats{rows: 4, skipped: 1, stored: 1, notFound: 1, failed: 1}, st)
	assert.Equal(t, map[string]string{"v1": "one"}, putter.got)
}

func TestIngest_DryRun(t *testing.T) {
	st := ingest(context.Background(), nil, rate.NewLimiter(rate.Inf, 1), []row{{line: 2, videoID: "v1"}})
	assert.Equal(t, 1, st.stored)
}
