package ingest

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prwatch/prwatch/internal/db"
	"github.com/prwatch/prwatch/internal/globaltime"
	"github.com/prwatch/prwatch/internal/sentiment"
)

// DefaultTitleSimilarityThreshold gates fuzzy syndication matching. Titles
// this close after normalization are treated as reposts of one story.
const DefaultTitleSimilarityThreshold = 0.985

const groupCandidateLimit = 500

// Store is the persistence surface the ingest service needs.
type Store interface {
	InsertArticleIgnore(ctx context.Context, row db.InsertArticleRow) (int64, bool, error)
	GroupExists(ctx context.Context, groupID string) (bool, error)
	GroupCandidatesNearDate(ctx context.Context, company string, date time.Time, limit int) ([]db.GroupCandidate, error)
	CreateGroup(ctx context.Context, groupID string, canonicalArticleID int64, at time.Time) (bool, error)
	IncrementGroupRepost(ctx context.Context, groupID string, at time.Time) error
	InsertSentimentResult(ctx context.Context, row db.InsertSentimentRow) error
	GroupRepostCounts(ctx context.Context, groupIDs []string) (map[string]int, error)
}

// LanguageDetector tags article text with a language code.
type LanguageDetector interface {
	Detect(text string) string
}

// IncomingArticle is one article as delivered by a collector.
type IncomingArticle struct {
	Company       string
	Title         string
	Description   string
	OriginalLink  string
	MirrorLink    string
	PublishedAt   *time.Time
	PublishedDate time.Time
	IsTest        bool
}

// InsertOutcome reports what one InsertArticle call did.
type InsertOutcome struct {
	ArticleID     int64
	Inserted      bool
	SourceGroupID string
	GroupCreated  bool
}

// Volume is syndication-aware volume over a set of articles.
type Volume struct {
	UniqueArticles   int     `json:"unique_articles"`
	TotalMentions    int     `json:"total_mentions"`
	RepostMultiplier float64 `json:"repost_multiplier"`
}

// Service deduplicates and groups incoming articles.
type Service struct {
	store               Store
	detector            LanguageDetector
	similarityThreshold float64
	logger              zerolog.Logger
}

func NewService(store Store, detector LanguageDetector, similarityThreshold float64, logger zerolog.Logger) *Service {
	if similarityThreshold <= 0 || similarityThreshold > 1 {
		similarityThreshold = DefaultTitleSimilarityThreshold
	}
	return &Service{
		store:               store,
		detector:            detector,
		similarityThreshold: similarityThreshold,
		logger:              logger,
	}
}

// InsertArticle stores one article, collapsing exact duplicates on content
// hash and attaching the article to a syndication group. New groups take the
// article as canonical; matches onto an existing group bump its repost count.
// A duplicate returns the stored article's ID with Inserted false and leaves
// group state untouched.
func (s *Service) InsertArticle(ctx context.Context, in IncomingArticle) (InsertOutcome, error) {
	if strings.TrimSpace(in.Company) == "" {
		return InsertOutcome{}, fmt.Errorf("company is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return InsertOutcome{}, fmt.Errorf("title is required")
	}

	date := in.PublishedDate
	if date.IsZero() {
		if in.PublishedAt != nil {
			date = in.PublishedAt.UTC().Truncate(24 * time.Hour)
		} else {
			date = globaltime.UTC().Truncate(24 * time.Hour)
		}
	}

	normTitle := NormalizeTitle(in.Title)
	description := StripHTML(in.Description)
	contentHash := ContentHash(in.Company, in.OriginalLink, in.MirrorLink, in.Title, date)

	groupID, groupExisted, err := s.resolveSourceGroup(ctx, in.Company, in.OriginalLink, in.MirrorLink, normTitle, date)
	if err != nil {
		return InsertOutcome{}, err
	}

	language := "und"
	if s.detector != nil {
		language = s.detector.Detect(in.Title + " " + description)
	}

	sent := sentiment.Analyze(in.Title, description)

	articleID, inserted, err := s.store.InsertArticleIgnore(ctx, db.InsertArticleRow{
		Company:       in.Company,
		Title:         in.Title,
		Description:   description,
		OriginalLink:  in.OriginalLink,
		MirrorLink:    in.MirrorLink,
		Outlet:        ExtractOutlet(in.OriginalLink, in.MirrorLink),
		Language:      language,
		PublishedAt:   in.PublishedAt,
		PublishedDate: date,
		Sentiment:     sent.Label,
		IsTest:        in.IsTest,
		ContentHash:   contentHash,
		SourceGroupID: groupID,
	})
	if err != nil {
		return InsertOutcome{}, err
	}

	outcome := InsertOutcome{
		ArticleID:     articleID,
		Inserted:      inserted,
		SourceGroupID: groupID,
	}
	if !inserted {
		return outcome, nil
	}

	now := globaltime.UTC()
	if groupExisted {
		if err := s.store.IncrementGroupRepost(ctx, groupID, now); err != nil {
			return outcome, err
		}
	} else {
		created, err := s.store.CreateGroup(ctx, groupID, articleID, now)
		if err != nil {
			return outcome, err
		}
		if created {
			outcome.GroupCreated = true
		} else {
			// Lost a create race; the group is someone else's now.
			if err := s.store.IncrementGroupRepost(ctx, groupID, now); err != nil {
				return outcome, err
			}
		}
	}

	// Only a newly created group gets a sentiment row. Reposts inherit the
	// canonical member's score, so their phrasing never shifts the group's
	// latest result.
	if outcome.GroupCreated {
		if err := s.store.InsertSentimentResult(ctx, db.InsertSentimentRow{
			ArticleID:     articleID,
			SourceGroupID: groupID,
			Score:         sent.Score,
			Label:         sent.Label,
			Confidence:    sent.Confidence,
			Method:        sent.Method,
			AnalyzedAt:    now,
		}); err != nil {
			return outcome, err
		}
	}

	s.logger.Debug().
		Int64("article_id", articleID).
		Str("source_group_id", groupID).
		Bool("group_created", outcome.GroupCreated).
		Msg("article ingested")

	return outcome, nil
}

// resolveSourceGroup picks the syndication group for an incoming article.
// The deterministic group ID wins when its group already exists; otherwise
// recent same-company articles within one day are scanned for a close enough
// title, and the best match at or above the threshold claims the article.
func (s *Service) resolveSourceGroup(ctx context.Context, company, originalLink, mirrorLink, normTitle string, date time.Time) (string, bool, error) {
	exactID := SourceGroupID(originalLink, mirrorLink, normTitle, date)

	exists, err := s.store.GroupExists(ctx, exactID)
	if err != nil {
		return "", false, err
	}
	if exists {
		return exactID, true, nil
	}

	candidates, err := s.store.GroupCandidatesNearDate(ctx, company, date, groupCandidateLimit)
	if err != nil {
		return "", false, err
	}

	bestID := ""
	bestScore := 0.0
	for _, cand := range candidates {
		score := TitleSimilarity(normTitle, NormalizeTitle(cand.Title))
		if score > bestScore {
			bestScore = score
			bestID = cand.SourceGroupID
		}
	}
	if bestID != "" && bestScore >= s.similarityThreshold {
		return bestID, true, nil
	}

	return exactID, false, nil
}

// GroupVolume computes syndication-aware volume over a set of articles.
// Ungrouped rows count as singleton pseudo-groups so legacy data does not
// vanish from the totals.
func (s *Service) GroupVolume(ctx context.Context, articles []db.ArticleScope) (Volume, error) {
	groupIDs := make([]string, 0, len(articles))
	seen := make(map[string]struct{}, len(articles))
	legacy := 0

	for _, a := range articles {
		gid := a.SourceGroupID
		if gid == "" {
			gid = fmt.Sprintf("legacy:%d", a.ArticleID)
			legacy++
		}
		if _, dup := seen[gid]; dup {
			continue
		}
		seen[gid] = struct{}{}
		if a.SourceGroupID != "" {
			groupIDs = append(groupIDs, gid)
		}
	}

	counts, err := s.store.GroupRepostCounts(ctx, groupIDs)
	if err != nil {
		return Volume{}, err
	}

	total := legacy
	for _, gid := range groupIDs {
		if count, ok := counts[gid]; ok && count > 0 {
			total += count
		} else {
			total += 1
		}
	}

	unique := len(seen)
	multiplier := float64(total) / math.Max(float64(unique), 1)

	return Volume{
		UniqueArticles:   unique,
		TotalMentions:    total,
		RepostMultiplier: math.Round(multiplier*1000) / 1000,
	}, nil
}
