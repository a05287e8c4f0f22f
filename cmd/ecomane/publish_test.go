package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/ecomane/internal/database"
	"github.com/jgoulah/ecomane/pkg/models"
)

type fakeStore struct {
	pending []database.PollRecord
	stored  map[string]*database.PollRecord
	getErr  error
}

func (s *fakeStore) ListUnpublished() ([]database.PollRecord, error) {
	return s.pending, nil
}

func (s *fakeStore) GetPoll(id string) (*database.PollRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.stored[id], nil
}

func record(id string) database.PollRecord {
	return database.PollRecord{Poll: models.Poll{ID: id, Snapshot: models.Snapshot{"num_L1": "1"}}}
}

func TestLoadUnpublished_SkipsPrunedPolls(t *testing.T) {
	a, b, c := record("a"), record("b"), record("c")
	store := &fakeStore{
		pending: []database.PollRecord{a, b, c},
		// b was pruned after it was listed
		stored: map[string]*database.PollRecord{"a": &a, "c": &c},
	}

	records, err := loadUnpublished(store)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "c", records[1].ID)
}

func TestLoadUnpublished_GetError(t *testing.T) {
	store := &fakeStore{
		pending: []database.PollRecord{record("a")},
		getErr:  errors.New("disk I/O error"),
	}

	_, err := loadUnpublished(store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading poll a")
}
