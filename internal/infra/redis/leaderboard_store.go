package redis

import (
	"context"
	"log"
	"strconv"

	"github.com/redis/go-redis/v9"

	"ecn-prep-service/internal/app"
	"ecn-prep-service/internal/domain"
)

const allSpecialties = "_all"

// LeaderboardStore decorates a ProgressStore with a write-through Redis cache
// of the quiz leaderboards. Each board is a ZSET of aggregate scores plus a
// hash of attempt counts:
//
//	ZINCRBY ecn:lb:{specialty}          {score} {user}
//	HINCRBY ecn:lb:{specialty}:attempts {user}  1
//
// A board is warmed from the inner store on first read. Redis failures fall
// back to the inner store.
type LeaderboardStore struct {
	app.ProgressStore
	client *redis.Client
}

func NewLeaderboardStore(inner app.ProgressStore, client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{ProgressStore: inner, client: client}
}

func (s *LeaderboardStore) SaveQuizScore(ctx context.Context, user, specialty string, score, total, elapsedSeconds int) error {
	if err := s.ProgressStore.SaveQuizScore(ctx, user, specialty, score, total, elapsedSeconds); err != nil {
		return err
	}
	s.bump(ctx, user, specialty, score)
	return nil
}

func (s *LeaderboardStore) SaveClinicalCaseScore(ctx context.Context, user, specialty, caseTitle string, percentage float64, totalSteps, correctSteps int) error {
	if err := s.ProgressStore.SaveClinicalCaseScore(ctx, user, specialty, caseTitle, percentage, totalSteps, correctSteps); err != nil {
		return err
	}
	s.bump(ctx, user, specialty, int(percentage))
	return nil
}

func (s *LeaderboardStore) GetLeaderboard(ctx context.Context, specialty string, limit int) ([]domain.LeaderboardEntry, error) {
	board := boardName(specialty)
	warm, err := s.client.Exists(ctx, s.warmKey(board)).Result()
	if err != nil {
		log.Printf("leaderboard cache %s: %v", board, err)
		return s.ProgressStore.GetLeaderboard(ctx, specialty, limit)
	}
	if warm == 0 {
		if err := s.warm(ctx, specialty); err != nil {
			log.Printf("leaderboard warm %s: %v", board, err)
			return s.ProgressStore.GetLeaderboard(ctx, specialty, limit)
		}
	}

	results, err := s.topBand(ctx, board, limit)
	if err != nil {
		return s.ProgressStore.GetLeaderboard(ctx, specialty, limit)
	}
	members := make([]string, len(results))
	for i, z := range results {
		members[i] = z.Member.(string)
	}
	var attempts []interface{}
	if len(members) > 0 {
		attempts, err = s.client.HMGet(ctx, s.attemptsKey(board), members...).Result()
		if err != nil {
			return s.ProgressStore.GetLeaderboard(ctx, specialty, limit)
		}
	}

	entries := make([]domain.LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = domain.LeaderboardEntry{User: members[i], AggregateScore: int(z.Score)}
		if raw, ok := attempts[i].(string); ok {
			entries[i].AttemptCount, _ = strconv.Atoi(raw)
		}
	}
	domain.SortLeaderboard(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// topBand returns the first limit members plus every member tied with the
// last of them, so ties are broken by SortLeaderboard rather than by Redis
// member order.
func (s *LeaderboardStore) topBand(ctx context.Context, board string, limit int) ([]redis.Z, error) {
	if limit <= 0 {
		return s.client.ZRevRangeWithScores(ctx, s.key(board), 0, -1).Result()
	}
	top, err := s.client.ZRevRangeWithScores(ctx, s.key(board), 0, int64(limit-1)).Result()
	if err != nil || len(top) < limit {
		return top, err
	}
	cutoff := strconv.FormatFloat(top[len(top)-1].Score, 'f', -1, 64)
	return s.client.ZRevRangeByScoreWithScores(ctx, s.key(board), &redis.ZRangeBy{Min: cutoff, Max: "+inf"}).Result()
}

// Rank returns the 1-based position of user on a board, or -1 when absent.
func (s *LeaderboardStore) Rank(ctx context.Context, specialty, user string) (int64, error) {
	entries, err := s.GetLeaderboard(ctx, specialty, 0)
	if err != nil {
		return -1, err
	}
	for i, e := range entries {
		if e.User == user {
			return int64(i + 1), nil
		}
	}
	return -1, nil
}

// Flush drops every cached board; the next reads warm them again.
func (s *LeaderboardStore) Flush(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, "ecn:lb:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *LeaderboardStore) bump(ctx context.Context, user, specialty string, score int) {
	for _, board := range []string{boardName(specialty), allSpecialties} {
		warm, err := s.client.Exists(ctx, s.warmKey(board)).Result()
		if err != nil || warm == 0 {
			// cold boards are rebuilt from the inner store on next read
			continue
		}
		pipe := s.client.TxPipeline()
		pipe.ZIncrBy(ctx, s.key(board), float64(score), user)
		pipe.HIncrBy(ctx, s.attemptsKey(board), user, 1)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("leaderboard cache bump %s: %v", board, err)
			_ = s.client.Del(ctx, s.warmKey(board)).Err()
		}
	}
}

func (s *LeaderboardStore) warm(ctx context.Context, specialty string) error {
	entries, err := s.ProgressStore.GetLeaderboard(ctx, specialty, 0)
	if err != nil {
		return err
	}
	board := boardName(specialty)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(board), s.attemptsKey(board))
	for _, e := range entries {
		pipe.ZAdd(ctx, s.key(board), redis.Z{Score: float64(e.AggregateScore), Member: e.User})
		pipe.HSet(ctx, s.attemptsKey(board), e.User, e.AttemptCount)
	}
	pipe.Set(ctx, s.warmKey(board), "1", 0)
	_, err = pipe.Exec(ctx)
	return err
}

func boardName(specialty string) string {
	if specialty == "" {
		return allSpecialties
	}
	return specialty
}

func (s *LeaderboardStore) key(board string) string {
	return "ecn:lb:" + board
}

func (s *LeaderboardStore) attemptsKey(board string) string {
	return "ecn:lb:" + board + ":attempts"
}

func (s *LeaderboardStore) warmKey(board string) string {
	return "ecn:lb:" + board + ":warm"
}
