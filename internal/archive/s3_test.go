package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/AdamBeresnev/box-league-engine/internal/competition"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutObject struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutObject) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestArchive(t *testing.T) {
	client := &fakePutObject{}
	archiver := newS3Archiver(client, "archive", "competitions")

	champion := uuid.New()
	snapshot := &competition.Snapshot{
		Competition: competition.Competition{
			ID:         uuid.New(),
			Name:       "Autumn League",
			Status:     competition.StatusCompleted,
			ChampionID: &champion,
		},
	}

	err := archiver.Archive(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, client.inputs, 1)

	input := client.inputs[0]
	assert.Equal(t, "archive", aws.ToString(input.Bucket))
	assert.Equal(t, "competitions/"+snapshot.Competition.ID.String()+".json", aws.ToString(input.Key))
	assert.Equal(t, "application/json", aws.ToString(input.ContentType))

	var decoded competition.Snapshot
	require.NoError(t, json.Unmarshal(client.bodies[0], &decoded))
	assert.Equal(t, snapshot.Competition.ID, decoded.Competition.ID)
	assert.Equal(t, champion, *decoded.Competition.ChampionID)
}

func TestArchiveKeyWithoutPrefix(t *testing.T) {
	archiver := newS3Archiver(&fakePutObject{}, "archive", "")
	snapshot := &competition.Snapshot{Competition: competition.Competition{ID: uuid.New()}}

	assert.Equal(t, snapshot.Competition.ID.String()+".json", archiver.Key(snapshot))
}

func TestArchiveUploadFailure(t *testing.T) {
	client := &fakePutObject{err: errors.New("bucket unavailable")}
	archiver := newS3Archiver(client, "archive", "competitions")

	err := archiver.Archive(context.Background(), &competition.Snapshot{})
	assert.ErrorIs(t, err, client.err)
}

func TestNewR2ArchiverRequiresConfig(t *testing.T) {
	_, err := NewR2Archiver(context.Background(), Config{Bucket: "archive"})
	assert.Error(t, err)
}
