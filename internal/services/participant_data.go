package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"
	"github.com/cph-cachet/carp-portal/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var ErrNotEditable = errors.New("study expects no editable participant data")

// ParticipantKey addresses one participant of a deployment.
type ParticipantKey struct {
	StudyID       string
	DeploymentID  string
	ParticipantID string
}

// ParticipantDataView is everything the participant data card renders.
type ParticipantDataView struct {
	Key         ParticipantKey
	Study       *models.StudyDetails
	Participant models.ParticipantAccount
	Status      models.ParticipantStatus
	Role        string
	Expected    []models.InputDataType
	Form        *participantdata.FormState
	Rules       participantdata.RuleSet
	Errors      participantdata.ValidationErrors
	// HasEditableFields is false when the study expects nothing besides informed consent.
	HasEditableFields bool
}

// AuditRecorder stores a record of each submission.
type AuditRecorder interface {
	RecordSubmission(ctx context.Context, audit *models.SubmissionAudit) error
}

type ParticipantDataService struct {
	api         carp.API
	interpreter *participantdata.Interpreter
	audits      AuditRecorder
	log         *zap.Logger
}

// NewParticipantDataService wires the service. audits may be nil.
func NewParticipantDataService(api carp.API, interpreter *participantdata.Interpreter, audits AuditRecorder, log *zap.Logger) *ParticipantDataService {
	return &ParticipantDataService{
		api:         api,
		interpreter: interpreter,
		audits:      audits,
		log:         log,
	}
}

// Load builds the participant data form from the current backend state.
func (s *ParticipantDataService) Load(ctx context.Context, key ParticipantKey) (*ParticipantDataView, error) {
	snap, err := fetch(ctx, s.api, key.StudyID, key.DeploymentID)
	if err != nil {
		s.log.Error("Failed to load participant data",
			zap.String("studyId", key.StudyID),
			zap.String("deploymentId", key.DeploymentID),
			zap.Error(err))
		return nil, err
	}
	return s.build(key, snap)
}

func (s *ParticipantDataService) build(key ParticipantKey, snap *snapshot) (*ParticipantDataView, error) {
	group, err := snap.group(key.DeploymentID)
	if err != nil {
		return nil, err
	}
	status, ok := group.ParticipantStatus(key.ParticipantID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, key.ParticipantID)
	}

	role := status.PrimaryRole()
	account, ok := group.Account(key.ParticipantID)
	if !ok {
		account = &models.ParticipantAccount{ParticipantID: key.ParticipantID, Role: role}
	}

	expected := snap.study.ExpectedDataTypes()
	stored := s.decodeStored(snap.data.StoredValues(role))
	form, rules := s.interpreter.Interpret(expected, stored)

	return &ParticipantDataView{
		Key:               key,
		Study:             snap.study,
		Participant:       *account,
		Status:            *status,
		Role:              role,
		Expected:          expected,
		Form:              form,
		Rules:             rules,
		HasEditableFields: participantdata.HasEditableFields(expected),
	}, nil
}

// decodeStored decodes the stored values the form can show. Informed consent
// is shown on the deployment page instead; other unreadable values are logged.
func (s *ParticipantDataService) decodeStored(values []json.RawMessage) []participantdata.FieldGroup {
	groups := make([]participantdata.FieldGroup, 0, len(values))
	for _, raw := range values {
		g, err := participantdata.DecodeValue(raw)
		switch {
		case errors.Is(err, participantdata.ErrDisplayOnly):
			continue
		case err != nil:
			s.log.Warn("Skipping stored participant data value", zap.Error(err))
			continue
		case g == nil:
			continue
		}
		groups = append(groups, g)
	}
	return groups
}

// Submit applies edits, keyed by field path, to a form rebuilt from current
// backend state and stores the result.
//
// A submission that fails validation is not sent; the returned view carries
// the edits and the errors. When the backend rejects the submission the
// edited view is returned together with the backend error. After a
// successful submission the returned view is reloaded from the backend.
func (s *ParticipantDataService) Submit(ctx context.Context, key ParticipantKey, edits map[string]*string) (*ParticipantDataView, error) {
	invalidate(s.api, key.StudyID, key.DeploymentID)
	view, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !view.HasEditableFields {
		return view, ErrNotEditable
	}

	paths := make([]string, 0, len(edits))
	for p := range edits {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var errs participantdata.ValidationErrors
	for _, p := range paths {
		err := view.Form.Set(p, edits[p])
		var verrs participantdata.ValidationErrors
		switch {
		case errors.As(err, &verrs):
			errs = append(errs, verrs...)
		case err != nil:
			return view, err
		}
	}
	errs = append(errs, view.Rules.Validate(view.Form)...)
	if len(errs) > 0 {
		view.Errors = errs
		return view, errs
	}

	payload := participantdata.Serialize(view.Form)
	sub := participantdata.Submission{ParticipantData: payload, Role: view.Role}
	if _, err := s.api.SetParticipantData(ctx, key.DeploymentID, sub); err != nil {
		s.log.Error("Failed to set participant data",
			zap.String("deploymentId", key.DeploymentID),
			zap.String("participantId", key.ParticipantID),
			zap.Error(err))
		return view, err
	}

	invalidate(s.api, key.StudyID, key.DeploymentID)
	s.recordAudit(ctx, view, payload)

	fresh, err := s.Load(ctx, key)
	if err != nil {
		s.log.Warn("Participant data saved but reload failed", zap.Error(err))
		return view, nil
	}
	return fresh, nil
}

func (s *ParticipantDataService) recordAudit(ctx context.Context, view *ParticipantDataView, payload participantdata.Payload) {
	if s.audits == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("Failed to encode submission for audit", zap.Error(err))
		return
	}
	provided, cleared := payload.Tags()

	audit := &models.SubmissionAudit{
		ID:            uuid.New(),
		StudyID:       view.Key.StudyID,
		DeploymentID:  view.Key.DeploymentID,
		ParticipantID: view.Key.ParticipantID,
		Role:          view.Role,
		Tags:          provided,
		ClearedTags:   cleared,
		Payload:       datatypes.JSON(body),
		RequestID:     utils.RequestIDFrom(ctx),
	}
	if err := s.audits.RecordSubmission(ctx, audit); err != nil {
		s.log.Error("Failed to record submission audit",
			zap.String("deploymentId", view.Key.DeploymentID),
			zap.Error(err))
	}
}
