package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cph-cachet/carp-portal/internal/participantdata"
	"github.com/cph-cachet/carp-portal/internal/services"
	"github.com/cph-cachet/carp-portal/views"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ParticipantDataService loads and stores participant data.
type ParticipantDataService interface {
	Load(ctx context.Context, key services.ParticipantKey) (*services.ParticipantDataView, error)
	Submit(ctx context.Context, key services.ParticipantKey, edits map[string]*string) (*services.ParticipantDataView, error)
}

type ParticipantHandler struct {
	log        *zap.Logger
	service    ParticipantDataService
	dispatcher *participantdata.Dispatcher
}

func NewParticipantHandler(log *zap.Logger, service ParticipantDataService, dispatcher *participantdata.Dispatcher) *ParticipantHandler {
	return &ParticipantHandler{log: log, service: service, dispatcher: dispatcher}
}

// ShowPage renders the participant page. ?edit=true opens the card for editing.
func (h *ParticipantHandler) ShowPage(c *gin.Context) {
	key, ok := participantKey(c)
	if !ok {
		return
	}
	view, err := h.service.Load(c.Request.Context(), key)
	if err != nil {
		h.loadFailed(c, err)
		return
	}

	card := h.card(c, view, c.Query("edit") == "true", nil)
	render(c, http.StatusOK, card.View.Participant.DisplayName(), views.ParticipantPage(card))
}

// ShowCard renders only the participant data card, read only.
func (h *ParticipantHandler) ShowCard(c *gin.Context) {
	h.showCard(c, false)
}

// EditCard renders only the participant data card, ready for editing.
func (h *ParticipantHandler) EditCard(c *gin.Context) {
	h.showCard(c, true)
}

func (h *ParticipantHandler) showCard(c *gin.Context, editing bool) {
	key, ok := participantKey(c)
	if !ok {
		return
	}
	view, err := h.service.Load(c.Request.Context(), key)
	if err != nil {
		h.loadFailed(c, err)
		return
	}
	render(c, http.StatusOK, "Participant Data", views.ParticipantDataCard(h.card(c, view, editing, nil)))
}

// Submit stores the edited participant data. Form posts address fields by
// path, e.g. "phone_number.number"; JSON bodies map paths to values or null.
func (h *ParticipantHandler) Submit(c *gin.Context) {
	key, ok := participantKey(c)
	if !ok {
		return
	}

	edits, err := readEdits(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.service.Submit(c.Request.Context(), key, edits)
	var verrs participantdata.ValidationErrors
	switch {
	case err == nil:
		h.log.Info("Participant data updated",
			zap.String("deploymentId", key.DeploymentID),
			zap.String("participantId", key.ParticipantID),
			zap.Int("fields", len(edits)))
		h.respond(c, http.StatusOK, view, false, "Participant data saved", "success", nil)

	case errors.As(err, &verrs):
		h.respond(c, http.StatusUnprocessableEntity, view, true, "Please correct the highlighted fields", "error", verrs)

	case errors.Is(err, participantdata.ErrUnknownField):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrNotEditable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case view != nil:
		// The backend rejected the submission; keep the edits on screen.
		msg := "Failed to save participant data"
		if detail := serviceMessage(err); detail != "" {
			msg += ": " + detail
		}
		h.respond(c, http.StatusBadGateway, view, true, msg, "error", nil)

	default:
		h.loadFailed(c, err)
	}
}

func (h *ParticipantHandler) respond(c *gin.Context, status int, view *services.ParticipantDataView, editing bool, alert, kind string, errs participantdata.ValidationErrors) {
	if wantsJSON(c) {
		body := gin.H{"message": alert}
		if len(errs) > 0 {
			body["errors"] = errs
		}
		if status == http.StatusOK {
			body["participantData"] = participantdata.Serialize(view.Form)
		}
		c.JSON(status, body)
		return
	}

	// HTMX only swaps successful responses; the card carries the outcome itself.
	if isHTMX(c) {
		status = http.StatusOK
	}
	card := h.card(c, view, editing, errs)
	card.Alert, card.AlertKind = alert, kind
	render(c, status, "Participant Data", views.ParticipantDataCard(card))
}

func (h *ParticipantHandler) card(c *gin.Context, view *services.ParticipantDataView, editing bool, errs participantdata.ValidationErrors) views.ParticipantCard {
	if errs == nil {
		errs = view.Errors
	}
	return views.ParticipantCard{
		View:      view,
		Inputs:    h.dispatcher.DispatchAll(view.Expected, view.Form, editing, errs),
		Editing:   editing,
		CSRFToken: contextString(c, "csrf_token"),
	}
}

func (h *ParticipantHandler) loadFailed(c *gin.Context, err error) {
	status, msg := loadStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Failed to load participant", zap.Error(err), zap.String("path", c.Request.URL.Path))
	}
	if wantsJSON(c) {
		c.JSON(status, gin.H{"error": msg})
		return
	}
	if isHTMX(c) {
		status = http.StatusOK
	}
	render(c, status, "Error", views.ErrorCard(msg, serviceMessage(err)))
}

func wantsJSON(c *gin.Context) bool {
	if isHTMX(c) {
		return false
	}
	return strings.HasPrefix(c.ContentType(), "application/json") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// readEdits collects the submitted field values. Only known field paths are
// read from forms, so other form fields such as the CSRF token are ignored.
func readEdits(c *gin.Context) (map[string]*string, error) {
	if strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			Edits map[string]*string `json:"edits" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, err
		}
		return body.Edits, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	edits := make(map[string]*string)
	for _, fp := range participantdata.FieldPaths() {
		values, ok := c.Request.PostForm[fp.Path()]
		if !ok || len(values) == 0 {
			continue
		}
		v := values[0]
		edits[fp.Path()] = &v
	}
	return edits, nil
}
