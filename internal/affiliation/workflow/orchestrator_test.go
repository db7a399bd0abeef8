package workflow

import (
	"context"
	"errors"
	"net/http"
	"testing"

	e "github.com/eventia/affiliations/internal/affiliation/errors"
	"github.com/eventia/affiliations/internal/affiliation/events"
	"github.com/eventia/affiliations/internal/affiliation/models"
	"go.uber.org/zap/zaptest"
)

// MockGateway implements the Gateway interface for testing
type MockGateway struct {
	transitionAffiliation func(context.Context, string, TransitionParams) error
	fetchAffiliation      func(context.Context, string) (*models.Record, error)
	promoteToManager      func(context.Context, models.PromotionRequest) error

	transitionCalls int
	fetchCalls      int
	promoteCalls    int
}

func (m *MockGateway) TransitionAffiliation(ctx context.Context, id string, params TransitionParams) error {
	m.transitionCalls++
	return m.transitionAffiliation(ctx, id, params)
}

func (m *MockGateway) FetchAffiliation(ctx context.Context, id string) (*models.Record, error) {
	m.fetchCalls++
	return m.fetchAffiliation(ctx, id)
}

func (m *MockGateway) PromoteToManager(ctx context.Context, req models.PromotionRequest) error {
	m.promoteCalls++
	return m.promoteToManager(ctx, req)
}

// MockProducer records produced events.
type MockProducer struct {
	produced []events.Event
}

func (m *MockProducer) Produce(event events.Event) {
	m.produced = append(m.produced, event)
}

func (m *MockProducer) types() []events.EventType {
	out := make([]events.EventType, 0, len(m.produced))
	for _, ev := range m.produced {
		out = append(out, ev.Type)
	}
	return out
}

func pendingRecord(raw map[string]interface{}) *models.Record {
	return &models.Record{
		ID:       "7",
		Status:   models.StatusPending,
		Name:     "Acme",
		Raw:      raw,
		Complete: true,
	}
}

func TestService_ApproveAndPromote(t *testing.T) {
	tests := []struct {
		name          string
		record        *models.Record
		mockSetup     func(*MockGateway)
		expectedError error

		wantApprove     models.Outcome
		wantPromote     models.Outcome
		wantRequester   string
		wantTransitions int
		wantPromotes    int
		wantEvents      []events.EventType
	}{
		{
			name:   "approve then promote",
			record: pendingRecord(map[string]interface{}{"usuario_id": "42"}),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, id string, params TransitionParams) error {
					if id != "7" || !params.Approve {
						t.Errorf("unexpected transition call: id=%s params=%+v", id, params)
					}
					return nil
				}
				mg.promoteToManager = func(_ context.Context, req models.PromotionRequest) error {
					if req.RequesterID != "42" || req.CompanyID != "7" || req.TargetRole != models.RoleManager {
						t.Errorf("unexpected promotion request: %+v", req)
					}
					return nil
				}
			},
			wantApprove:     models.OutcomeOK(),
			wantPromote:     models.OutcomeOK(),
			wantRequester:   "42",
			wantTransitions: 1,
			wantPromotes:    1,
			wantEvents:      []events.EventType{events.AffiliationApproved, events.RequesterPromoted},
		},
		{
			name:   "no requester resolved, promotion skipped",
			record: pendingRecord(nil),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return nil
				}
			},
			wantApprove:     models.OutcomeOK(),
			wantPromote:     models.OutcomeSkipped(),
			wantTransitions: 1,
			wantPromotes:    0,
			wantEvents:      []events.EventType{events.AffiliationApproved},
		},
		{
			name: "partial record resolves via fallback fetch",
			record: &models.Record{
				ID:     "7",
				Status: models.StatusPending,
			},
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return nil
				}
				mg.fetchAffiliation = func(_ context.Context, id string) (*models.Record, error) {
					return &models.Record{
						ID:       id,
						Status:   models.StatusApproved,
						Raw:      map[string]interface{}{"solicitante_id": float64(42)},
						Complete: true,
					}, nil
				}
				mg.promoteToManager = func(_ context.Context, _ models.PromotionRequest) error {
					return nil
				}
			},
			wantApprove:     models.OutcomeOK(),
			wantPromote:     models.OutcomeOK(),
			wantRequester:   "42",
			wantTransitions: 1,
			wantPromotes:    1,
			wantEvents:      []events.EventType{events.AffiliationApproved, events.RequesterPromoted},
		},
		{
			name:          "already approved fails fast",
			record:        &models.Record{ID: "7", Status: models.StatusApproved},
			mockSetup:     func(_ *MockGateway) {},
			expectedError: e.ErrInvalidTransition,
		},
		{
			name:   "approval failure skips promotion",
			record: pendingRecord(map[string]interface{}{"usuario_id": "42"}),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return &e.RemoteError{Op: "transition affiliation", StatusCode: 500, Message: "backend down"}
				}
			},
			wantApprove:     models.OutcomeFailed("backend down", 500),
			wantPromote:     models.OutcomeSkipped(),
			wantTransitions: 1,
			wantPromotes:    0,
		},
		{
			name:   "concurrent approval race is benign",
			record: pendingRecord(map[string]interface{}{"usuario_id": "42"}),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return errors.Join(e.ErrInvalidTransition, errors.New("estado ya definido"))
				}
			},
			wantApprove:     models.OutcomeFailed(e.ErrInvalidTransition.Error()+"\nestado ya definido", 0),
			wantPromote:     models.OutcomeSkipped(),
			wantTransitions: 1,
			wantPromotes:    0,
		},
		{
			name:   "unauthorized propagates",
			record: pendingRecord(nil),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return e.ErrUnauthorized
				}
			},
			expectedError:   e.ErrUnauthorized,
			wantTransitions: 1,
		},
		{
			name:   "promotion failure never rolls back approval",
			record: pendingRecord(map[string]interface{}{"usuario_id": "42"}),
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return nil
				}
				mg.promoteToManager = func(_ context.Context, _ models.PromotionRequest) error {
					return &e.RemoteError{Op: "promote to manager", StatusCode: 404, Message: "promotion endpoint not available"}
				}
			},
			wantApprove:     models.OutcomeOK(),
			wantPromote:     models.OutcomeFailed("promotion endpoint not available", 404),
			wantRequester:   "42",
			wantTransitions: 1,
			wantPromotes:    1,
			wantEvents:      []events.EventType{events.AffiliationApproved, events.PromotionFailed},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockGateway := &MockGateway{}
			tt.mockSetup(mockGateway)
			producer := &MockProducer{}
			service := NewService(mockGateway, producer, zaptest.NewLogger(t))

			result, err := service.ApproveAndPromote(context.Background(), tt.record)

			if tt.expectedError != nil {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if !errors.Is(err, tt.expectedError) {
					t.Fatalf("expected error %v, got %v", tt.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if result.Approve != tt.wantApprove {
					t.Errorf("approve outcome %+v, want %+v", result.Approve, tt.wantApprove)
				}
				if result.Promote != tt.wantPromote {
					t.Errorf("promote outcome %+v, want %+v", result.Promote, tt.wantPromote)
				}
				if result.RequesterID != tt.wantRequester {
					t.Errorf("requester %q, want %q", result.RequesterID, tt.wantRequester)
				}
			}
			if mockGateway.transitionCalls != tt.wantTransitions {
				t.Errorf("transition calls = %d, want %d", mockGateway.transitionCalls, tt.wantTransitions)
			}
			if mockGateway.promoteCalls != tt.wantPromotes {
				t.Errorf("promote calls = %d, want %d", mockGateway.promoteCalls, tt.wantPromotes)
			}
			if tt.wantEvents != nil {
				got := producer.types()
				if len(got) != len(tt.wantEvents) {
					t.Fatalf("produced events %v, want %v", got, tt.wantEvents)
				}
				for i := range got {
					if got[i] != tt.wantEvents[i] {
						t.Errorf("event[%d] = %s, want %s", i, got[i], tt.wantEvents[i])
					}
				}
			}
		})
	}
}

func TestService_Reject(t *testing.T) {
	tests := []struct {
		name            string
		record          *models.Record
		reason          string
		mockSetup       func(*MockGateway)
		expectedError   error
		wantTransitions int
		wantMotivo      string
	}{
		{
			name:   "successful rejection",
			record: pendingRecord(nil),
			reason: "duplicate NIT",
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, id string, params TransitionParams) error {
					if params.Approve {
						t.Error("rejection must not approve")
					}
					return nil
				}
			},
			wantTransitions: 1,
			wantMotivo:      "duplicate NIT",
		},
		{
			name:          "blank reason, zero network calls",
			record:        pendingRecord(nil),
			reason:        "  ",
			mockSetup:     func(_ *MockGateway) {},
			expectedError: e.ErrMissingReason,
		},
		{
			name:          "terminal record, zero network calls",
			record:        &models.Record{ID: "7", Status: models.StatusRejected},
			reason:        "again",
			mockSetup:     func(_ *MockGateway) {},
			expectedError: e.ErrInvalidTransition,
		},
		{
			name:   "remote failure propagates",
			record: pendingRecord(nil),
			reason: "duplicate NIT",
			mockSetup: func(mg *MockGateway) {
				mg.transitionAffiliation = func(_ context.Context, _ string, _ TransitionParams) error {
					return &e.RemoteError{Op: "transition affiliation", StatusCode: 502, Message: "bad gateway"}
				}
			},
			expectedError:   &e.RemoteError{},
			wantTransitions: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockGateway := &MockGateway{}
			tt.mockSetup(mockGateway)
			producer := &MockProducer{}
			service := NewService(mockGateway, producer, zaptest.NewLogger(t))

			err := service.Reject(context.Background(), tt.record, tt.reason)

			if tt.expectedError != nil {
				if err == nil {
					t.Fatal("expected error but got none")
				}
				if _, isRemote := tt.expectedError.(*e.RemoteError); isRemote {
					if _, ok := e.AsRemote(err); !ok {
						t.Fatalf("expected remote error, got %v", err)
					}
				} else if !errors.Is(err, tt.expectedError) {
					t.Fatalf("expected error %v, got %v", tt.expectedError, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(producer.produced) != 1 || producer.produced[0].Type != events.AffiliationRejected {
					t.Errorf("expected rejection event, got %v", producer.types())
				}
				if producer.produced[0].Reason != tt.wantMotivo {
					t.Errorf("event reason %q, want %q", producer.produced[0].Reason, tt.wantMotivo)
				}
			}
			if mockGateway.transitionCalls != tt.wantTransitions {
				t.Errorf("transition calls = %d, want %d", mockGateway.transitionCalls, tt.wantTransitions)
			}
		})
	}
}

func TestService_RetryPromotion(t *testing.T) {
	t.Run("requires approved affiliation", func(t *testing.T) {
		mockGateway := &MockGateway{}
		service := NewService(mockGateway, &MockProducer{}, zaptest.NewLogger(t))

		_, err := service.RetryPromotion(context.Background(), pendingRecord(nil))
		if !errors.Is(err, e.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if mockGateway.promoteCalls != 0 || mockGateway.transitionCalls != 0 {
			t.Error("expected zero network calls")
		}
	})

	t.Run("re-promotes without re-approving", func(t *testing.T) {
		mockGateway := &MockGateway{
			promoteToManager: func(_ context.Context, req models.PromotionRequest) error {
				if req.RequesterID != "42" || req.CompanyID != "7" {
					t.Errorf("unexpected promotion request: %+v", req)
				}
				return nil
			},
		}
		producer := &MockProducer{}
		service := NewService(mockGateway, producer, zaptest.NewLogger(t))

		record := &models.Record{
			ID:       "7",
			Status:   models.StatusApproved,
			Raw:      map[string]interface{}{"usuario": map[string]interface{}{"id": "42"}},
			Complete: true,
		}
		result, err := service.RetryPromotion(context.Background(), record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mockGateway.transitionCalls != 0 {
			t.Error("retry must never re-approve")
		}
		if !result.Approve.Skipped {
			t.Errorf("approve outcome %+v, want skipped", result.Approve)
		}
		if !result.Promote.Success {
			t.Errorf("promote outcome %+v, want success", result.Promote)
		}
		if len(producer.produced) != 1 || producer.produced[0].Type != events.RequesterPromoted {
			t.Errorf("expected promotion event, got %v", producer.types())
		}
	})

	t.Run("unresolvable requester is skipped", func(t *testing.T) {
		mockGateway := &MockGateway{
			fetchAffiliation: func(_ context.Context, id string) (*models.Record, error) {
				return &models.Record{ID: id, Status: models.StatusApproved, Complete: true}, nil
			},
		}
		service := NewService(mockGateway, &MockProducer{}, zaptest.NewLogger(t))

		record := &models.Record{ID: "7", Status: models.StatusApproved}
		result, err := service.RetryPromotion(context.Background(), record)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Promote.Skipped {
			t.Errorf("promote outcome %+v, want skipped", result.Promote)
		}
		if mockGateway.promoteCalls != 0 {
			t.Error("promotion must not be attempted without a requester")
		}
	})
}

// Keeps outcomeFromError honest about unauthorized failures during the
// promotion leg: the approval result survives, the 401 is reported.
func TestOutcomeFromError_Unauthorized(t *testing.T) {
	outcome := outcomeFromError(e.ErrUnauthorized)
	if !outcome.Failed() {
		t.Fatalf("outcome %+v, want failure", outcome)
	}
	if outcome.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("status %d, want 401", outcome.HTTPStatus)
	}
}
