package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

// FileStoreSuite exercises a store backed by a database file.
type FileStoreSuite struct {
	suite.Suite
	path  string
	store *SnapshotStore
}

func (s *FileStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "nested", "snapshots.db")
	var err error
	s.store, err = Open(s.path)
	s.Require().NoError(err)
}

func (s *FileStoreSuite) TearDownTest() {
	if s.store != nil {
		s.NoError(s.store.Close())
	}
}

func (s *FileStoreSuite) TestPersistsAcrossReopen() {
	ctx := context.Background()
	run, err := s.store.Save(ctx, Run{Label: "persisted"}, build(s.T(), map[string][]string{"B": {"A"}}))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Close())

	s.store, err = Open(s.path)
	s.Require().NoError(err)
	latest, err := s.store.Latest(ctx)
	s.Require().NoError(err)
	s.Equal(run.ID, latest.ID)
	s.Equal("persisted", latest.Label)

	snap, err := s.store.Load(ctx, run.ID)
	s.Require().NoError(err)
	s.Equal([]string{"A"}, snap.Supers["B"])
}

func (s *FileStoreSuite) TestConcurrentSaves() {
	ctx := context.Background()
	tax := build(s.T(), map[string][]string{"B": {"A"}, "C": {"B", "A"}})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.Save(ctx, Run{Label: "parallel"}, tax); err != nil {
				errs <- err
			}
			if _, err := s.store.Runs(ctx, 0); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	runs, err := s.store.Runs(ctx, 0)
	s.Require().NoError(err)
	s.Len(runs, n)
}

func TestFileStoreSuite(t *testing.T) {
	suite.Run(t, new(FileStoreSuite))
}
