package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"relayfeed/internal/domain/entity"
	"relayfeed/internal/repository"
)

// Service manages watch titles. It validates input and delegates persistence to Repo.
type Service struct {
	Repo repository.WatchListRepository
}

// Add stores raw after trimming. Adding an existing title (case-insensitively) reports added=false.
// Blank input returns an error wrapping ErrTitleRequired and *entity.ValidationError.
func (s *Service) Add(ctx context.Context, raw string) (title string, added bool, err error) {
	title, err = normalize(raw)
	if err != nil {
		return "", false, err
	}

	added, err = s.Repo.Add(ctx, title)
	if err != nil {
		return "", false, fmt.Errorf("add watch title: %w", err)
	}
	if added {
		slog.Info("watch title added", slog.String("title", title))
	}
	return title, added, nil
}

// Remove deletes raw, matched case-insensitively. Removing an absent title reports removed=false.
func (s *Service) Remove(ctx context.Context, raw string) (removed bool, err error) {
	title, err := normalize(raw)
	if err != nil {
		return false, err
	}

	removed, err = s.Repo.Remove(ctx, title)
	if err != nil {
		return false, fmt.Errorf("remove watch title: %w", err)
	}
	if removed {
		slog.Info("watch title removed", slog.String("title", title))
	}
	return removed, nil
}

// List returns the watch titles in insertion order.
func (s *Service) List(ctx context.Context) ([]*entity.WatchTitle, error) {
	titles, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watch titles: %w", err)
	}
	return titles, nil
}

// CountWatches returns the number of watch titles.
func (s *Service) CountWatches(ctx context.Context) (int, error) {
	titles, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(titles), nil
}

// Seed adds every title in titles, skipping invalid ones, and returns how many were new.
func (s *Service) Seed(ctx context.Context, titles []string) (int, error) {
	added := 0
	for _, raw := range titles {
		_, ok, err := s.Add(ctx, raw)
		if err != nil {
			if ctx.Err() != nil {
				return added, ctx.Err()
			}
			slog.Warn("skipping seed watch title", slog.String("title", raw), slog.Any("error", err))
			continue
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func normalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: %w", ErrTitleRequired,
			&entity.ValidationError{Field: "title", Message: "title is required"})
	}
	return entity.NormalizeWatchTitle(raw)
}
