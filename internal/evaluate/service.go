// Package evaluate orchestrates one compliance evaluation: sanitize the
// input, run the route's transform chain, aggregate the verdict, and persist
// the audit record.
package evaluate

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"claimgate/internal/audit"
	"claimgate/internal/pipeline"
	"claimgate/internal/policy"
	"claimgate/internal/sanitize"
)

// Request is one resolved evaluation call.
type Request struct {
	Tenant        string
	Profile       string
	Route         string
	CorrelationID string
	Payload       Payload
}

// ItemVerdict is the outcome for one evaluated item.
type ItemVerdict struct {
	ItemID     string            `json:"itemId,omitempty"`
	AuditID    uuid.UUID         `json:"auditId"`
	Text       string            `json:"text"`
	Verdict    pipeline.Verdict  `json:"verdict"`
	Transforms []pipeline.Result `json:"transforms"`
	LatencyMS  int64             `json:"latencyMs"`
}

// Result bundles the verdicts for every item in the payload.
type Result struct {
	Kind  PayloadKind   `json:"kind"`
	Items []ItemVerdict `json:"items"`
}

// Service wires the pipeline to policy resolution and audit persistence.
type Service struct {
	executor *pipeline.Executor
	policies *policy.Loader
	store    audit.Store
	logger   *slog.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

func New(executor *pipeline.Executor, policies *policy.Loader, store audit.Store, logger *slog.Logger) *Service {
	return &Service{
		executor: executor,
		policies: policies,
		store:    store,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.New,
	}
}

// Evaluate runs every payload item through the route's transform chain. The
// verdict is always returned when computed; a failed audit write degrades
// the result instead of discarding it.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Result, error) {
	doc := s.policies.Current()
	route, err := doc.Resolve(req.Profile, req.Route)
	if err != nil {
		return nil, err
	}

	tc := &pipeline.Context{
		Locale:        doc.Locale(req.Profile),
		Tenant:        req.Tenant,
		CorrelationID: req.CorrelationID,
	}

	result := &Result{Kind: req.Payload.Kind, Items: make([]ItemVerdict, 0, len(req.Payload.Items))}
	for _, item := range req.Payload.Items {
		verdict, err := s.evaluateItem(ctx, req, route, tc, item)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, verdict)
	}
	return result, nil
}

func (s *Service) evaluateItem(ctx context.Context, req Request, route policy.Route, tc *pipeline.Context, item Item) (ItemVerdict, error) {
	input := sanitize.Text(item.ClaimText(), 0)
	start := s.now()

	results, err := s.executor.Run(ctx, route.Transforms, input, tc)
	if err != nil {
		return ItemVerdict{}, err
	}

	verdict := pipeline.Aggregate(results, tc)
	latency := time.Since(start).Milliseconds()

	record := audit.Record{
		AuditID:          s.newID(),
		Timestamp:        start.UTC(),
		Tenant:           req.Tenant,
		Profile:          req.Profile,
		Route:            req.Route,
		ItemID:           item.ID,
		CorrelationID:    req.CorrelationID,
		Transforms:       results,
		Verdict:          verdict,
		LatencyMS:        latency,
		DegradedMode:     verdict.DegradedMode,
		DegradedServices: verdict.DegradedServices,
	}

	// The verdict survives a failed audit write; the degradation is made
	// visible on the verdict itself.
	if err := s.store.Save(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "audit write failed",
			"audit_id", record.AuditID,
			"tenant", req.Tenant,
			"correlation_id", req.CorrelationID,
			"error", err,
		)
		verdict.DegradedMode = true
		verdict.DegradedServices = append(verdict.DegradedServices, "audit")
		record.Verdict = verdict
	}

	return ItemVerdict{
		ItemID:     item.ID,
		AuditID:    record.AuditID,
		Text:       input,
		Verdict:    verdict,
		Transforms: results,
		LatencyMS:  latency,
	}, nil
}
