package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/hearth/internal/domain"
	"github.com/timmy/hearth/internal/logger"
	"github.com/timmy/hearth/internal/metrics"
)

const (
	branchInternal = "internal"
	branchExternal = "external"

	defaultResultLimit   = 10
	defaultResultMax     = 100
	defaultBranchTimeout = 45 * time.Second
)

type internalSearcher interface {
	Search(ctx context.Context, query string, k int, filter *SearchFilter) ([]domain.SearchResult, error)
}

type externalSearcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.ExternalSearchResult, error)
}

// SearchConfig holds orchestration settings.
type SearchConfig struct {
	IncludeExternalByDefault bool
	ResultLimitDefault       int
	ResultLimitMax           int
	BranchTimeout            time.Duration
}

// SearchRequest is a hybrid search request.
type SearchRequest struct {
	Query           string `json:"query" binding:"required"`
	Limit           int    `json:"limit"`
	IncludeExternal *bool  `json:"include_external,omitempty"`
	Region          string `json:"region,omitempty"`
	Topic           string `json:"topic,omitempty"`
}

// SearchService runs internal and external search side by side and merges them.
type SearchService struct {
	internal internalSearcher
	external externalSearcher
	cfg      SearchConfig
}

// NewSearchService creates the search orchestrator.
// Parameters:
//   - internal: corpus search branch.
//   - external: external search branch; nil disables it.
//   - cfg: limits, timeouts and the include-external default.
//
// Returns:
//   - *SearchService: initialized orchestrator.
func NewSearchService(internal internalSearcher, external externalSearcher, cfg SearchConfig) *SearchService {
	if cfg.ResultLimitDefault <= 0 {
		cfg.ResultLimitDefault = defaultResultLimit
	}
	if cfg.ResultLimitMax <= 0 {
		cfg.ResultLimitMax = defaultResultMax
	}
	if cfg.BranchTimeout <= 0 {
		cfg.BranchTimeout = defaultBranchTimeout
	}
	return &SearchService{internal: internal, external: external, cfg: cfg}
}

// Search answers req from both branches. A failing branch degrades to an
// empty list without affecting the other. When every attempted branch fails
// the call returns domain.ErrSearchFailed instead of an empty response.
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) (*domain.CombinedSearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.ResultLimitDefault
	}
	if limit > s.cfg.ResultLimitMax {
		limit = s.cfg.ResultLimitMax
	}
	includeExternal := s.cfg.IncludeExternalByDefault
	if req.IncludeExternal != nil {
		includeExternal = *req.IncludeExternal
	}
	filter := &SearchFilter{Region: req.Region, Topic: req.Topic}

	start := time.Now()
	ctx = logger.SetSearchID(ctx, uuid.NewString())
	ctx = logger.WithField(ctx, logger.FieldQuery, query)
	logger.CtxInfo(ctx, "Hybrid search: limit=%d, include_external=%v", limit, includeExternal)

	resp := &domain.CombinedSearchResponse{
		Query:           query,
		InternalResults: []domain.SearchResult{},
		ExternalResults: []domain.ExternalSearchResult{},
		External:        domain.BranchOutcome{Status: domain.BranchSkipped},
	}

	var (
		wg          sync.WaitGroup
		internalErr error
		externalErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results, err := runBranch(ctx, branchInternal, s.cfg.BranchTimeout, func(bctx context.Context) ([]domain.SearchResult, error) {
			return s.internal.Search(bctx, query, limit, filter)
		})
		internalErr = err
		if results != nil {
			resp.InternalResults = results
		}
	}()

	runExternal := includeExternal && s.external != nil
	if runExternal {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := runBranch(ctx, branchExternal, s.cfg.BranchTimeout, func(bctx context.Context) ([]domain.ExternalSearchResult, error) {
				return s.external.Search(bctx, query, limit)
			})
			externalErr = err
			if results != nil {
				resp.ExternalResults = results
			}
		}()
	} else if includeExternal {
		logger.CtxDebug(ctx, "External search requested but not configured")
	}

	wg.Wait()

	resp.Internal = outcomeOf(branchInternal, internalErr)
	if internalErr != nil {
		resp.InternalResults = []domain.SearchResult{}
	}
	if runExternal {
		resp.External = outcomeOf(branchExternal, externalErr)
	} else {
		metrics.SearchBranchTotal.WithLabelValues(branchExternal, string(domain.BranchSkipped)).Inc()
	}

	resp.ExternalResults = DedupeExternal(resp.InternalResults, resp.ExternalResults)
	resp.DurationMs = time.Since(start).Milliseconds()

	if internalErr != nil && (!runExternal || externalErr != nil) {
		logger.With(logger.Fields{logger.FieldDurationMs: resp.DurationMs}).
			Error(ctx, "All search branches failed: internal=%v, external=%v", internalErr, externalErr)
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, joinBranchErrors(internalErr, externalErr))
	}

	logger.With(logger.Fields{
		logger.FieldDurationMs: resp.DurationMs,
		logger.FieldCount:      len(resp.InternalResults) + len(resp.ExternalResults),
	}).Info(ctx, "Hybrid search completed: internal=%d (%s), external=%d (%s)",
		len(resp.InternalResults), resp.Internal.Status, len(resp.ExternalResults), resp.External.Status)
	return resp, nil
}

// runBranch executes fn under its own timeout and converts a panic into an error.
func runBranch[T any](ctx context.Context, branch string, timeout time.Duration, fn func(context.Context) (T, error)) (result T, err error) {
	bctx, cancel := context.WithTimeout(logger.SetBranch(ctx, branch), timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(bctx, "Search branch panicked: %v", r)
			err = fmt.Errorf("%s branch panic: %v", branch, r)
		}
	}()
	return fn(bctx)
}

func outcomeOf(branch string, err error) domain.BranchOutcome {
	if err != nil {
		metrics.SearchBranchTotal.WithLabelValues(branch, string(domain.BranchDegraded)).Inc()
		return domain.BranchOutcome{Status: domain.BranchDegraded, Error: err.Error()}
	}
	metrics.SearchBranchTotal.WithLabelValues(branch, string(domain.BranchOK)).Inc()
	return domain.BranchOutcome{Status: domain.BranchOK}
}

func joinBranchErrors(internalErr, externalErr error) error {
	internalErr = fmt.Errorf("internal: %w", internalErr)
	if externalErr == nil {
		return internalErr
	}
	return errors.Join(internalErr, fmt.Errorf("external: %w", externalErr))
}

// DedupeExternal drops external results whose source_url matches any internal result.
func DedupeExternal(internal []domain.SearchResult, external []domain.ExternalSearchResult) []domain.ExternalSearchResult {
	seen := make(map[string]struct{}, len(internal))
	for _, r := range internal {
		if r.SourceURL != "" {
			seen[r.SourceURL] = struct{}{}
		}
	}
	out := make([]domain.ExternalSearchResult, 0, len(external))
	for _, r := range external {
		if _, dup := seen[r.SourceURL]; dup {
			continue
		}
		out = append(out, r)
	}
	return out
}
