package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstats/matchlens/go/clients/footballdata"
)

type stubRawStore struct {
	fetchedSince bool
	fetchErr     error

	insertID     int64
	insertStored bool
	insertErr    error

	gotSince   time.Time
	gotPayload []byte
}

func (s *stubRawStore) WasFetchedSince(ctx context.Context, source, endpoint, externalKey string, since time.Time) (bool, error) {
	s.gotSince = since
	return s.fetchedSince, s.fetchErr
}

func (s *stubRawStore) InsertRaw(ctx context.Context, source, endpoint, externalKey string, fetchedAt time.Time, payload []byte) (int64, bool, error) {
	s.gotPayload = payload
	return s.insertID, s.insertStored, s.insertErr
}

type stubCompetitionClient struct {
	body []byte
	err  error

	calls int
}

func (c *stubCompetitionClient) GetCompetition(ctx context.Context, code string) (*footballdata.Competition, []byte, error) {
	c.calls++
	if c.err != nil {
		return nil, nil, c.err
	}
	return &footballdata.Competition{ID: 2021, Code: code, Name: "Premier League"}, c.body, nil
}

func TestStoreCompetitionRawArchivesPayload(t *testing.T) {
	store := &stubRawStore{insertID: 42, insertStored: true}
	client := &stubCompetitionClient{body: []byte(`{"id":2021,"code":"PL"}`)}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))

	svc := NewRawIngestService(store, client, clock)
	id, stored, err := svc.StoreCompetitionRaw(context.Background(), "PL")

	require.NoError(t, err)
	assert.True(t, stored)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, client.body, store.gotPayload)
	assert.Equal(t, clock.Now().UTC().Add(-refetchGuard), store.gotSince)
}

func TestStoreCompetitionRawSkipsRecentlyFetched(t *testing.T) {
	store := &stubRawStore{fetchedSince: true}
	client := &stubCompetitionClient{}

	svc := NewRawIngestService(store, client, clockwork.NewFakeClock())
	id, stored, err := svc.StoreCompetitionRaw(context.Background(), "PL")

	require.NoError(t, err)
	assert.False(t, stored)
	assert.Zero(t, id)
	assert.Zero(t, client.calls, "a fresh snapshot must not trigger a remote call")
}

func TestStoreCompetitionRawWrapsClientError(t *testing.T) {
	store := &stubRawStore{}
	client := &stubCompetitionClient{err: footballdata.ErrNotFound}

	svc := NewRawIngestService(store, client, clockwork.NewFakeClock())
	_, stored, err := svc.StoreCompetitionRaw(context.Background(), "XX")

	assert.False(t, stored)
	assert.ErrorIs(t, err, footballdata.ErrNotFound)
}

func TestStoreCompetitionRawPropagatesStoreError(t *testing.T) {
	sentinel := errors.New("connection refused")
	store := &stubRawStore{fetchErr: sentinel}

	svc := NewRawIngestService(store, &stubCompetitionClient{}, clockwork.NewFakeClock())
	_, _, err := svc.StoreCompetitionRaw(context.Background(), "PL")

	assert.ErrorIs(t, err, sentinel)
}
