package app

import (
	"sort"
	"time"

	"timed-quiz-service/internal/domain"
)

const podiumSize = 3

// Rank orders results by score desc, time taken asc (missing last within a
// score tier), then most recent first. The input slice is not modified.
func Rank(results []domain.Result) []domain.Result {
	ranked := append([]domain.Result(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return rankBefore(ranked[i], ranked[j])
	})
	return ranked
}

func rankBefore(a, b domain.Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.TimeTaken != nil && b.TimeTaken == nil:
		return true
	case a.TimeTaken == nil && b.TimeTaken != nil:
		return false
	case a.TimeTaken != nil && b.TimeTaken != nil && *a.TimeTaken != *b.TimeTaken:
		return *a.TimeTaken < *b.TimeTaken
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// BuildLeaderboard ranks results and splits out the podium.
func BuildLeaderboard(results []domain.Result, now time.Time) domain.Leaderboard {
	ranked := Rank(results)
	entries := make([]domain.LeaderboardEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = domain.LeaderboardEntry{Rank: i + 1, Result: r}
	}
	podium := entries
	if len(podium) > podiumSize {
		podium = podium[:podiumSize]
	}
	return domain.Leaderboard{
		Podium:    append([]domain.LeaderboardEntry(nil), podium...),
		Entries:   entries,
		UpdatedAt: now,
	}
}

func sortNewestFirst(results []domain.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
}
