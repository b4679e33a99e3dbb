// Package trends reads hot Reddit posts as seed material for niche suggestions.
package trends

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vartanbeno/go-reddit/v2/reddit"

	"autovid-pipeline/config"
	"autovid-pipeline/logging"
)

// hookKeywords boost a post when present in its title
var hookKeywords = []string{
	"why", "how", "secret", "facts", "never", "discovered", "science",
	"history", "hidden", "surprising", "record", "first", "study",
}

// Post is the slice of a Reddit post the scorer needs
type Post struct {
	Title     string
	Subreddit string
	Score     int
	Comments  int
	NSFW      bool
	Stickied  bool
}

// PostLister lists the hot posts of one subreddit
type PostLister interface {
	HotPosts(ctx context.Context, subreddit string, limit int) ([]Post, error)
}

// RedditLister implements PostLister with the read-only Reddit API
type RedditLister struct {
	client *reddit.Client
}

// NewRedditLister builds an anonymous, read-only Reddit client
func NewRedditLister() (*RedditLister, error) {
	client, err := reddit.NewReadonlyClient()
	if err != nil {
		return nil, fmt.Errorf("reddit client: %w", err)
	}
	return &RedditLister{client: client}, nil
}

// HotPosts returns the current hot listing of subreddit
func (r *RedditLister) HotPosts(ctx context.Context, subreddit string, limit int) ([]Post, error) {
	posts, _, err := r.client.Subreddit.HotPosts(ctx, subreddit, &reddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("r/%s hot: %w", subreddit, err)
	}
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, Post{
			Title:     p.Title,
			Subreddit: p.SubredditName,
			Score:     p.Score,
			Comments:  p.NumberOfComments,
			NSFW:      p.NSFW,
			Stickied:  p.Stickied,
		})
	}
	return out, nil
}

// Source aggregates and ranks hot titles across subreddits
type Source struct {
	lister     PostLister
	subreddits []string
	limit      int
}

// New creates a Source
func New(cfg config.TrendsConfig, lister PostLister) *Source {
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	return &Source{lister: lister, subreddits: cfg.Subreddits, limit: limit}
}

// Titles returns up to limit distinct titles, best first.
// A failing subreddit is skipped; an error is returned only when all of them fail.
func (s *Source) Titles(ctx context.Context) ([]string, error) {
	logger := logging.Component(ctx, "trends")

	var candidates []Post
	var lastErr error
	failures := 0
	for _, sub := range s.subreddits {
		posts, err := s.lister.HotPosts(ctx, sub, s.limit)
		if err != nil {
			logger.Warn().Err(err).Str("subreddit", sub).Msg("hot posts unavailable")
			lastErr = err
			failures++
			continue
		}
		for _, p := range posts {
			if p.NSFW || p.Stickied || strings.TrimSpace(p.Title) == "" {
				continue
			}
			candidates = append(candidates, p)
		}
	}
	if failures > 0 && failures == len(s.subreddits) {
		return nil, fmt.Errorf("no subreddit reachable: %w", lastErr)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return scorePost(candidates[i]) > scorePost(candidates[j])
	})

	seen := make(map[string]bool)
	titles := make([]string, 0, s.limit)
	for _, p := range candidates {
		key := strings.ToLower(strings.TrimSpace(p.Title))
		if seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, strings.TrimSpace(p.Title))
		if len(titles) == s.limit {
			break
		}
	}
	logger.Debug().Int("titles", len(titles)).Msg("trend titles collected")
	return titles, nil
}

func scorePost(p Post) int {
	score := p.Score + 2*p.Comments

	lower := strings.ToLower(p.Title)
	for _, kw := range hookKeywords {
		if strings.Contains(lower, kw) {
			score += 50
		}
	}
	return score
}
