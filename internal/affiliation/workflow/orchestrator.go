package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/events"
	"github.com/eventia/affiliations/internal/affiliation/models"
	"go.uber.org/zap"
)

// Gateway defines the backend operations the orchestrator depends on.
type Gateway interface {
	TransitionAffiliation(ctx context.Context, id string, params TransitionParams) error
	FetchAffiliation(ctx context.Context, id string) (*models.Record, error)
	PromoteToManager(ctx context.Context, req models.PromotionRequest) error
}

// EventProducer publishes workflow outcomes.
type EventProducer interface {
	Produce(event events.Event)
}

// Service sequences the approval workflow against the backend. There is
// no transaction spanning the remote calls; partial outcomes are
// reported explicitly instead of rolled back.
type Service struct {
	gateway  Gateway
	resolver *Resolver
	producer EventProducer
	logger   *zap.Logger
}

// NewService constructs the workflow service.
func NewService(gateway Gateway, producer EventProducer, logger *zap.Logger) *Service {
	return &Service{
		gateway:  gateway,
		resolver: NewResolver(gateway, logger),
		producer: producer,
		logger:   logger.Named("workflow"),
	}
}

// ApproveAndPromote approves the affiliation and then promotes the user
// who requested it to manager of the company. The two remote operations
// fail independently:
//
//   - an illegal transition fails fast with ErrInvalidTransition and
//     zero network calls;
//   - a failed approval skips promotion entirely;
//   - an unresolvable requester skips promotion as a non-error;
//   - a failed promotion is reported alongside the successful approval,
//     which is never rolled back.
//
// The precondition is checked against the in-hand snapshot; a
// concurrent approval may still land first, in which case the backend's
// rejection comes back as a benign failed approve outcome.
func (s *Service) ApproveAndPromote(ctx context.Context, record *models.Record) (*models.Result, error) {
	params, err := ApproveDecision(record)
	if err != nil {
		return nil, err
	}

	result := &models.Result{CompanyID: record.ID}

	if err := s.gateway.TransitionAffiliation(ctx, record.ID, params); err != nil {
		if errors.Is(err, e.ErrUnauthorized) {
			return nil, err
		}
		s.logger.Warn("approval call failed",
			zap.Error(err),
			zap.String("company_id", record.ID),
		)
		result.Approve = outcomeFromError(err)
		result.Promote = models.OutcomeSkipped()
		return result, nil
	}
	result.Approve = models.OutcomeOK()
	s.producer.Produce(events.Event{
		Type:      events.AffiliationApproved,
		CompanyID: record.ID,
	})

	requesterID, err := s.resolver.Resolve(ctx, record)
	if err != nil {
		// Approval is already committed; surface the resolution failure
		// on the promotion leg.
		result.Promote = outcomeFromError(err)
		return result, nil
	}
	if requesterID == "" {
		s.logger.Info("no requester resolved, promotion skipped",
			zap.String("company_id", record.ID),
		)
		result.Promote = models.OutcomeSkipped()
		return result, nil
	}

	result.RequesterID = requesterID
	result.Promote = s.promote(ctx, requesterID, record.ID)
	return result, nil
}

// Reject rejects the affiliation with the given reason. An illegal
// transition or a blank reason fails before any network call.
func (s *Service) Reject(ctx context.Context, record *models.Record, reason string) error {
	params, err := RejectDecision(record, reason)
	if err != nil {
		return err
	}
	if err := s.gateway.TransitionAffiliation(ctx, record.ID, params); err != nil {
		return err
	}
	s.producer.Produce(events.Event{
		Type:      events.AffiliationRejected,
		CompanyID: record.ID,
		Reason:    params.Motivo,
	})
	return nil
}

// RetryPromotion re-resolves the requester and re-attempts the
// promotion for an already-approved affiliation, without touching the
// affiliation status. It exists for the partial-failure case where the
// approval committed but the promotion did not.
func (s *Service) RetryPromotion(ctx context.Context, record *models.Record) (*models.Result, error) {
	if record.Status != models.StatusApproved {
		return nil, fmt.Errorf(
			"%w: promotion retry requires an approved affiliation, %s is %s",
			e.ErrInvalidTransition, record.ID, record.Status)
	}

	result := &models.Result{
		CompanyID: record.ID,
		// The approval committed in an earlier run and is not re-attempted.
		Approve: models.OutcomeSkipped(),
	}

	requesterID, err := s.resolver.Resolve(ctx, record)
	if err != nil {
		result.Promote = outcomeFromError(err)
		return result, nil
	}
	if requesterID == "" {
		result.Promote = models.OutcomeSkipped()
		return result, nil
	}

	result.RequesterID = requesterID
	result.Promote = s.promote(ctx, requesterID, record.ID)
	return result, nil
}

func (s *Service) promote(ctx context.Context, requesterID, companyID string) models.Outcome {
	req := models.NewPromotionRequest(requesterID, companyID)
	if err := s.gateway.PromoteToManager(ctx, req); err != nil {
		s.logger.Warn("promotion failed after successful approval",
			zap.Error(err),
			zap.String("company_id", companyID),
			zap.String("requester_id", requesterID),
		)
		outcome := outcomeFromError(err)
		s.producer.Produce(events.Event{
			Type:        events.PromotionFailed,
			CompanyID:   companyID,
			RequesterID: requesterID,
			Reason:      outcome.Reason,
		})
		return outcome
	}
	s.producer.Produce(events.Event{
		Type:        events.RequesterPromoted,
		CompanyID:   companyID,
		RequesterID: requesterID,
	})
	return models.OutcomeOK()
}

// outcomeFromError flattens a remote failure into a reportable outcome.
func outcomeFromError(err error) models.Outcome {
	if re, ok := e.AsRemote(err); ok {
		msg := re.Message
		if msg == "" {
			msg = http.StatusText(re.StatusCode)
		}
		return models.OutcomeFailed(msg, re.StatusCode)
	}
	if errors.Is(err, e.ErrUnauthorized) {
		return models.OutcomeFailed("unauthorized", http.StatusUnauthorized)
	}
	return models.OutcomeFailed(err.Error(), 0)
}
