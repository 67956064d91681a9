package watchlist_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/usecase/watchlist"
)

/*────────────────────  インメモリスタブ  ────────────────────*/

type stubRepo struct {
	titles []*entity.WatchTitle
	err    error // 強制エラー注入用
}

func (s *stubRepo) Add(_ context.Context, title string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for _, w := range s.titles {
		if entity.FoldTitle(w.Title) == entity.FoldTitle(title) {
			return false, nil
		}
	}
	s.titles = append(s.titles, &entity.WatchTitle{Title: title, CreatedAt: time.Now()})
	return true, nil
}

func (s *stubRepo) Remove(_ context.Context, title string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	for i, w := range s.titles {
		if entity.FoldTitle(w.Title) == entity.FoldTitle(title) {
			s.titles = append(s.titles[:i], s.titles[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) List(_ context.Context) ([]*entity.WatchTitle, error) {
	return s.titles, s.err
}

/*────────────────────  テストケース  ────────────────────*/

func TestService_Add(t *testing.T) {
	repo := &stubRepo{}
	svc := &watchlist.Service{Repo: repo}

	title, added, err := svc.Add(context.Background(), "  Show A  ")
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "Show A", title)

	// duplicate, different case
	_, added, err = svc.Add(context.Background(), "show a")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Len(t, repo.titles, 1)
}

func TestService_Add_Validation(t *testing.T) {
	svc := &watchlist.Service{Repo: &stubRepo{}}

	_, _, err := svc.Add(context.Background(), "   ")
	assert.ErrorIs(t, err, watchlist.ErrTitleRequired)
	var ve *entity.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, _, err = svc.Add(context.Background(), strings.Repeat("x", entity.MaxWatchTitleLength+1))
	assert.True(t, errors.As(err, &ve))
	assert.NotErrorIs(t, err, watchlist.ErrTitleRequired)
}

func TestService_Remove(t *testing.T) {
	repo := &stubRepo{}
	svc := &watchlist.Service{Repo: repo}
	_, _, _ = svc.Add(context.Background(), "Show A")

	removed, err := svc.Remove(context.Background(), "SHOW A")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Remove(context.Background(), "Show A")
	require.NoError(t, err)
	assert.False(t, removed, "removing an absent title is a no-op")
}

func TestService_RepoErrorsAreWrapped(t *testing.T) {
	boom := errors.New("db down")
	svc := &watchlist.Service{Repo: &stubRepo{err: boom}}

	_, _, err := svc.Add(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "add watch title")

	_, err = svc.Remove(context.Background(), "x")
	assert.ErrorIs(t, err, boom)

	_, err = svc.List(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "list watch titles")
}

func TestService_List_PreservesOrder(t *testing.T) {
	svc := &watchlist.Service{Repo: &stubRepo{}}
	for _, title := range []string{"b", "a", "c"} {
		_, _, err := svc.Add(context.Background(), title)
		require.NoError(t, err)
	}

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, w := range got {
		names = append(names, w.Title)
	}
	assert.Equal(t, []string{"b", "a", "c"}, names)
}

func TestService_Seed(t *testing.T) {
	repo := &stubRepo{}
	svc := &watchlist.Service{Repo: repo}
	_, _, _ = svc.Add(context.Background(), "Show A")

	n, err := svc.Seed(context.Background(), []string{"show a", "", "Show B", "Show C"})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, repo.titles, 3)
}

func TestService_CountWatches(t *testing.T) {
	repo := &stubRepo{}
	svc := &watchlist.Service{Repo: repo}
	_, err := svc.Seed(context.Background(), []string{"Frieren", "Dandadan"})
	require.NoError(t, err)

	n, err := svc.CountWatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	repo.err = errors.New("db down")
	_, err = svc.CountWatches(context.Background())
	assert.Error(t, err)
}
