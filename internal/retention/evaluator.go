// Package retention evaluates rules against a series' episode listing:
// which upcoming episodes to prepare and which on-disk episodes a rule
// no longer protects.
package retention

import (
	"github.com/showkeeper/showkeeper/internal/library"
	"github.com/showkeeper/showkeeper/internal/rules"
)

// Scanning ahead for "next N episodes" stops this many seasons past the
// watched one, in case a library listing is malformed.
const fetchSeasonBound = 10

// Position is a watched (season, episode) coordinate.
type Position struct {
	Season  int
	Episode int
}

func (p Position) precedes(e library.Episode) bool {
	if e.SeasonNumber != p.Season {
		return e.SeasonNumber > p.Season
	}
	return e.EpisodeNumber > p.Episode
}

func (p Position) atOrBefore(e library.Episode) bool {
	return !p.precedes(e)
}

// FetchNext returns the ordered IDs of episodes to prepare after the
// given position was watched.
func FetchNext(episodes []library.Episode, pos Position, sel rules.Selector) []int64 {
	sorted := library.SortEpisodes(episodes)

	switch sel.Type {
	case rules.SelectorAll:
		var ids []int64
		for _, e := range sorted {
			if pos.precedes(e) {
				ids = append(ids, e.ID)
			}
		}
		return ids

	case rules.SelectorSeasons:
		return fetchNextSeasons(sorted, pos, sel.Count)

	default:
		return fetchNextEpisodes(sorted, pos, sel.Count)
	}
}

// fetchNextSeasons selects the rest of the current season plus whole
// following seasons. The partially-watched current season counts toward
// the season budget when it still has unwatched episodes.
func fetchNextSeasons(sorted []library.Episode, pos Position, count int) []int64 {
	var ids []int64
	currentRemaining := false
	for _, e := range sorted {
		if e.SeasonNumber == pos.Season && pos.precedes(e) {
			ids = append(ids, e.ID)
			currentRemaining = true
		}
	}

	extra := count
	if currentRemaining {
		extra = count - 1
	}

	seasons := 0
	lastSeason := -1
	for _, e := range sorted {
		if e.SeasonNumber <= pos.Season {
			continue
		}
		if e.SeasonNumber != lastSeason {
			seasons++
			lastSeason = e.SeasonNumber
		}
		if seasons > extra {
			break
		}
		ids = append(ids, e.ID)
	}
	return ids
}

func fetchNextEpisodes(sorted []library.Episode, pos Position, count int) []int64 {
	var ids []int64
	for _, e := range sorted {
		if len(ids) >= count {
			break
		}
		if e.SeasonNumber > pos.Season+fetchSeasonBound {
			break
		}
		if pos.precedes(e) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// KeepBlock returns the on-disk episodes the keep selector no longer
// protects, given the last-watched position. An empty result means
// nothing leaves.
func KeepBlock(episodes []library.Episode, pos Position, sel rules.Selector) []library.Episode {
	if sel.Type == rules.SelectorAll {
		return nil
	}

	sorted := library.SortEpisodes(episodes)

	if sel.Type == rules.SelectorSeasons {
		cutoff := pos.Season - sel.Count + 1
		var leaving []library.Episode
		for _, e := range sorted {
			if e.HasFile && e.SeasonNumber < cutoff {
				leaving = append(leaving, e)
			}
		}
		return leaving
	}

	// episodes: protect the N-episode window ending at the watched
	// position. If the watched episode is not in the listing the block
	// cannot be located, so nothing leaves.
	watchedIdx := -1
	for i, e := range sorted {
		if e.SeasonNumber == pos.Season && e.EpisodeNumber == pos.Episode {
			watchedIdx = i
			break
		}
	}
	if watchedIdx < 0 {
		return nil
	}

	windowStart := watchedIdx - sel.Count + 1
	var leaving []library.Episode
	for i, e := range sorted {
		if i >= windowStart {
			break
		}
		if e.HasFile {
			leaving = append(leaving, e)
		}
	}
	return leaving
}

// Watched partitions on-disk episodes into those at or before the
// position and those strictly after it. The two slices are disjoint and
// together cover every on-disk episode.
func Watched(episodes []library.Episode, pos Position) (watched, unwatched []library.Episode) {
	for _, e := range library.SortEpisodes(episodes) {
		if !e.HasFile {
			continue
		}
		if pos.atOrBefore(e) {
			watched = append(watched, e)
		} else {
			unwatched = append(unwatched, e)
		}
	}
	return watched, unwatched
}
