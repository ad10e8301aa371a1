package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/tipsearch/hub/internal/huberrors"
	"github.com/tipsearch/hub/internal/models"
	"github.com/tipsearch/hub/internal/observability"
)

const (
	defaultRAGKANN   = 20
	defaultRAGKFinal = 5

	similarQueryReference = "similar query"
)

// Generator produces answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HitRetriever is the fresh retrieval step (embed, ANN, rerank).
type HitRetriever interface {
	Retrieve(ctx context.Context, query string, kANN, limit int) ([]models.RankedHit, int, error)
}

// SimilarQueryFinder finds past queries and reads their feedback.
type SimilarQueryFinder interface {
	FindSimilarQueries(ctx context.Context, query string) ([]models.SimilarQuery, error)
	ListFeedbackByQuery(ctx context.Context, query string) ([]models.VideoFeedback, error)
}

// SimilarCollectionFinder finds saved collections close to a query.
type SimilarCollectionFinder interface {
	FindSimilarCollections(ctx context.Context, query string) ([]models.SimilarCollection, error)
}

// RAGService answers a question from video transcripts, steering retrieval with prior feedback.
type RAGService struct {
	retriever   HitRetriever
	feedback    SimilarQueryFinder
	collections SimilarCollectionFinder
	docs        DocumentLookup
	generator   Generator
	timeout     time.Duration
	metrics     observability.RetrievalMetrics
	logger      *slog.Logger
}

// RAGServiceParams configures RAGService. Timeout <= 0 keeps the caller's deadline; Metrics may be nil.
type RAGServiceParams struct {
	Retriever   HitRetriever
	Feedback    SimilarQueryFinder
	Collections SimilarCollectionFinder
	Docs        DocumentLookup
	Generator   Generator
	Timeout     time.Duration
	Metrics     observability.RetrievalMetrics
	Logger      *slog.Logger
}

// NewRAGService creates a RAGService.
func NewRAGService(p RAGServiceParams) *RAGService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RAGService{
		retriever:   p.Retriever,
		feedback:    p.Feedback,
		collections: p.Collections,
		docs:        p.Docs,
		generator:   p.Generator,
		timeout:     p.Timeout,
		metrics:     p.Metrics,
		logger:      logger,
	}
}

// feedbackContext is what prior judgments say about the current query.
type feedbackContext struct {
	likedFromCollections    map[string]string // video id -> origin query
	dislikedFromCollections map[string]string
	likedFromQueries        map[string]struct{}
	dislikedFromQueries     map[string]struct{}
}

func (f *feedbackContext) excluded(videoID string) bool {
	_, lc := f.likedFromCollections[videoID]
	_, dc := f.dislikedFromCollections[videoID]
	_, lq := f.likedFromQueries[videoID]
	_, dq := f.dislikedFromQueries[videoID]

	return lc || dc || lq || dq
}

// Answer runs feedback lookup, fresh retrieval, merge and generation for one question.
func (s *RAGService) Answer(ctx context.Context, req *models.RAGRequest) (resp *models.RAGResponse, err error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, huberrors.NewValidationError("query", ErrEmptyQuery.Error())
	}

	kANN := req.KANN
	if kANN <= 0 {
		kANN = defaultRAGKANN
	}

	kFinal := req.KFinal
	if kFinal <= 0 {
		kFinal = defaultRAGKFinal
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx, span := observability.Tracer().Start(ctx, "rag.answer")
	defer span.End()

	span.SetAttributes(attribute.Int("rag.k_ann", kANN), attribute.Int("rag.k_final", kFinal))

	start := time.Now()
	outcome := "error"

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		if s.metrics != nil {
			s.metrics.RecordRAG(ctx, outcome, time.Since(start))
		}
	}()

	fb, err := s.gatherFeedback(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, _, err := s.retriever.Retrieve(ctx, req.Query, kANN, kFinal*2)
	if err != nil {
		return nil, err
	}

	fresh := make([]models.RankedHit, 0, len(hits))
	for _, h := range hits {
		if !fb.excluded(h.VideoID) {
			fresh = append(fresh, h)
		}
	}

	feedbackSources, texts, err := s.feedbackSources(ctx, fb)
	if err != nil {
		return nil, err
	}

	if len(fresh) == 0 && len(feedbackSources) == 0 {
		outcome = "no_result"

		s.logger.InfoContext(ctx, "rag: no sources after filtering")

		return &models.RAGResponse{
			Query:          req.Query,
			Answer:         noResultAnswer,
			Sources:        []models.RAGSource{},
			ExcludedVideos: []models.ExcludedVideo{},
		}, nil
	}

	for _, h := range fresh {
		texts[h.VideoID] = h.TranscriptText
	}

	sources := mergeSources(feedbackSources, fresh, kFinal)

	ctxSources := make([]contextSource, len(sources))
	for i, src := range sources {
		text := texts[src.VideoID]
		if strings.TrimSpace(text) == "" {
			text = src.Snippet
		}

		ctxSources[i] = contextSource{Title: src.Title, Text: text}
	}

	answer, err := s.generator.Generate(ctx, buildPrompt(req.Query, buildContext(ctxSources)))
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGenerationError(ctx)
		}

		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	if strings.TrimSpace(answer) == "" {
		answer = emptyGenerationReply
	}

	excluded := excludedVideos(fb)

	s.recordSources(ctx, sources, excluded)
	outcome = "answered"

	span.SetAttributes(attribute.Int("rag.sources", len(sources)), attribute.Int("rag.excluded", len(excluded)))
	s.logger.InfoContext(ctx, "rag: answer generated",
		"sources", len(sources), "fresh_hits", len(fresh), "feedback_sources", len(feedbackSources),
		"excluded", len(excluded))

	return &models.RAGResponse{
		Query:          req.Query,
		Answer:         answer,
		Sources:        sources,
		ExcludedVideos: excluded,
	}, nil
}

// gatherFeedback runs the similar-collections and similar-queries lookups concurrently and reads the
// feedback recorded under each similar collection's query.
func (s *RAGService) gatherFeedback(ctx context.Context, query string) (*feedbackContext, error) {
	var (
		collections []models.SimilarCollection
		queries     []models.SimilarQuery
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		collections, err = s.collections.FindSimilarCollections(gctx, query)

		return err
	})

	g.Go(func() error {
		var err error
		queries, err = s.feedback.FindSimilarQueries(gctx, query)

		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("gather feedback: %w", err)
	}

	fb := &feedbackContext{
		likedFromCollections:    map[string]string{},
		dislikedFromCollections: map[string]string{},
		likedFromQueries:        map[string]struct{}{},
		dislikedFromQueries:     map[string]struct{}{},
	}

	for _, c := range collections {
		labels, err := s.feedback.ListFeedbackByQuery(ctx, c.Query)
		if err != nil {
			return nil, fmt.Errorf("collection feedback: %w", err)
		}

		for _, l := range labels {
			target := fb.likedFromCollections
			if l.Label == models.FeedbackBad {
				target = fb.dislikedFromCollections
			}

			if _, ok := target[l.VideoID]; !ok {
				target[l.VideoID] = c.Query
			}
		}
	}

	for _, q := range queries {
		for _, id := range q.GoodVideos {
			fb.likedFromQueries[id] = struct{}{}
		}

		for _, id := range q.BadVideos {
			fb.dislikedFromQueries[id] = struct{}{}
		}
	}

	s.logger.DebugContext(ctx, "rag: feedback gathered",
		"similar_collections", len(collections), "similar_queries", len(queries),
		"liked_from_collections", len(fb.likedFromCollections),
		"disliked_from_collections", len(fb.dislikedFromCollections),
		"liked_from_queries", len(fb.likedFromQueries),
		"disliked_from_queries", len(fb.dislikedFromQueries))

	return fb, nil
}

// feedbackSources materializes liked videos as sources: collection likes first, then query likes not
// already included, each group ordered by video id. Videos that no longer exist are skipped.
// The returned map holds transcript text by video id.
func (s *RAGService) feedbackSources(ctx context.Context, fb *feedbackContext) ([]models.RAGSource, map[string]string, error) {
	texts := map[string]string{}

	fromCollections := sortedKeys(fb.likedFromCollections)

	var fromQueries []string

	for _, id := range sortedKeys(fb.likedFromQueries) {
		if _, ok := fb.likedFromCollections[id]; !ok {
			fromQueries = append(fromQueries, id)
		}
	}

	ids := append(slices.Clone(fromCollections), fromQueries...)
	if len(ids) == 0 {
		return nil, texts, nil
	}

	docs, err := s.docs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}

	byID := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		byID[d.VideoID] = d
		texts[d.VideoID] = d.TranscriptText
	}

	out := make([]models.RAGSource, 0, len(ids))

	add := func(id string, provenance models.Provenance, reference string) {
		doc, ok := byID[id]
		if !ok {
			return
		}

		out = append(out, models.RAGSource{
			VideoID:    doc.VideoID,
			Title:      doc.Title,
			Author:     doc.Author,
			URL:        doc.URL,
			Score:      1.0,
			Snippet:    headSnippet(doc.TranscriptText),
			SourceType: provenance,
			Reference:  reference,
		})
	}

	for _, id := range fromCollections {
		add(id, models.ProvenanceCollection, fb.likedFromCollections[id])
	}

	for _, id := range fromQueries {
		add(id, models.ProvenanceFeedback, similarQueryReference)
	}

	return out, texts, nil
}

// mergeSources concatenates feedback-origin sources and fresh hits, dedupes by video id and keeps limit.
func mergeSources(feedbackSources []models.RAGSource, fresh []models.RankedHit, limit int) []models.RAGSource {
	seen := map[string]struct{}{}
	out := make([]models.RAGSource, 0, limit)

	push := func(src models.RAGSource) {
		if len(out) >= limit {
			return
		}

		if _, dup := seen[src.VideoID]; dup {
			return
		}

		seen[src.VideoID] = struct{}{}
		out = append(out, src)
	}

	for _, src := range feedbackSources {
		push(src)
	}

	for _, h := range fresh {
		push(models.RAGSource{
			VideoID:    h.VideoID,
			Title:      h.Title,
			Author:     h.Author,
			URL:        h.URL,
			Score:      h.RerankScore,
			Snippet:    h.Snippet,
			SourceType: models.ProvenanceSearch,
		})
	}

	return out
}

// excludedVideos reports every excluded id once, ordered by video id. When a video appears in several
// sets the first matching reason wins: liked in collection, disliked in collection, bad feedback,
// liked in query.
func excludedVideos(fb *feedbackContext) []models.ExcludedVideo {
	all := map[string]struct{}{}
	for id := range fb.likedFromCollections {
		all[id] = struct{}{}
	}

	for id := range fb.dislikedFromCollections {
		all[id] = struct{}{}
	}

	for id := range fb.likedFromQueries {
		all[id] = struct{}{}
	}

	for id := range fb.dislikedFromQueries {
		all[id] = struct{}{}
	}

	out := make([]models.ExcludedVideo, 0, len(all))

	for _, id := range sortedKeys(all) {
		ev := models.ExcludedVideo{VideoID: id}

		if ref, ok := fb.likedFromCollections[id]; ok {
			ev.Reason, ev.Reference = models.ReasonLikedInCollection, ref
		} else if ref, ok := fb.dislikedFromCollections[id]; ok {
			ev.Reason, ev.Reference = models.ReasonDislikedInCollection, ref
		} else if _, ok := fb.dislikedFromQueries[id]; ok {
			ev.Reason, ev.Reference = models.ReasonBadFeedback, similarQueryReference
		} else {
			ev.Reason, ev.Reference = models.ReasonLikedInQuery, similarQueryReference
		}

		out = append(out, ev)
	}

	return out
}

func (s *RAGService) recordSources(ctx context.Context, sources []models.RAGSource, excluded []models.ExcludedVideo) {
	if s.metrics == nil {
		return
	}

	byProvenance := map[models.Provenance]int{}
	for _, src := range sources {
		byProvenance[src.SourceType]++
	}

	for p, n := range byProvenance {
		s.metrics.RecordRAGSources(ctx, string(p), n)
	}

	byReason := map[models.ExclusionReason]int{}
	for _, ev := range excluded {
		byReason[ev.Reason]++
	}

	for r, n := range byReason {
		s.metrics.RecordRAGExcluded(ctx, string(r), n)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
