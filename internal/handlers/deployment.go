package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/cph-cachet/carp-portal/internal/consent"
	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/services"
	"github.com/cph-cachet/carp-portal/internal/utils"
	"github.com/cph-cachet/carp-portal/views"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

// DeploymentService loads deployment pages and consent documents.
type DeploymentService interface {
	Load(ctx context.Context, studyID, deploymentID string) (*services.DeploymentView, error)
	Consent(ctx context.Context, key services.ParticipantKey) (models.ParticipantAccount, *models.InformedConsent, error)
}

// AuditLister lists recorded submissions.
type AuditLister interface {
	ListForDeployment(ctx context.Context, deploymentID string, limit int) ([]models.SubmissionAudit, error)
}

type DeploymentHandler struct {
	log     *zap.Logger
	service DeploymentService
	audits  AuditLister
}

// NewDeploymentHandler wires the handler. audits may be nil when no audit
// store is configured.
func NewDeploymentHandler(log *zap.Logger, service DeploymentService, audits AuditLister) *DeploymentHandler {
	return &DeploymentHandler{log: log, service: service, audits: audits}
}

func (h *DeploymentHandler) ShowPage(c *gin.Context) {
	studyID, deploymentID := c.Param("studyId"), c.Param("deploymentId")
	if !utils.AreValidIDs(studyID, deploymentID) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	view, err := h.service.Load(c.Request.Context(), studyID, deploymentID)
	if err != nil {
		status, msg := loadStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Failed to load deployment", zap.Error(err), zap.String("deploymentId", deploymentID))
		}
		render(c, status, "Error", views.ErrorCard(msg, serviceMessage(err)))
		return
	}

	chartOptions, err := json.Marshal(coverageChart(view.Coverage).JSON())
	if err != nil {
		h.log.Error("Failed to encode coverage chart", zap.Error(err))
		chartOptions = []byte("{}")
	}

	title := "Deployment"
	if view.Study != nil && view.Study.Name != "" {
		title = view.Study.Name
	}
	render(c, http.StatusOK, title, views.DeploymentPage(view, string(chartOptions)))
}

// DownloadConsent exports a participant's informed consent as a PDF.
func (h *DeploymentHandler) DownloadConsent(c *gin.Context) {
	key, ok := participantKey(c)
	if !ok {
		return
	}

	account, ic, err := h.service.Consent(c.Request.Context(), key)
	switch {
	case errors.Is(err, consent.ErrNoConsent):
		c.JSON(http.StatusNotFound, gin.H{"error": "No informed consent registered"})
		return
	case err != nil:
		status, msg := loadStatus(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("Failed to load informed consent", zap.Error(err), zap.String("participantId", key.ParticipantID))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}

	var buf bytes.Buffer
	if err := consent.WritePDF(&buf, account.DisplayName(), ic); err != nil {
		h.log.Error("Failed to render informed consent", zap.Error(err), zap.String("participantId", key.ParticipantID))
		if errors.Is(err, consent.ErrMalformedConsent) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Informed consent document is malformed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render informed consent"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+consent.Filename(account)+`"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// ListAudits returns the latest submissions made through the portal.
func (h *DeploymentHandler) ListAudits(c *gin.Context) {
	deploymentID := c.Param("deploymentId")
	if !utils.AreValidIDs(c.Param("studyId"), deploymentID) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if h.audits == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "audit trail is not enabled"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	audits, err := h.audits.ListForDeployment(c.Request.Context(), deploymentID, limit)
	if err != nil {
		h.log.Error("Failed to list submission audits", zap.Error(err), zap.String("deploymentId", deploymentID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load audit trail"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits})
}

func coverageChart(coverage []services.Coverage) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Participant Data Coverage",
			Subtitle: "Participants with a stored value per data type",
		}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(coverage))
	provided := make([]opts.BarData, 0, len(coverage))
	missing := make([]opts.BarData, 0, len(coverage))
	for _, cv := range coverage {
		labels = append(labels, cv.Label)
		provided = append(provided, opts.BarData{Value: cv.Provided})
		missing = append(missing, opts.BarData{Value: cv.Total - cv.Provided})
	}

	bar.SetXAxis(labels).
		AddSeries("Provided", provided).
		AddSeries("Missing", missing).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{Stack: "coverage"}))
	// JSON() does not copy the x axis labels into the options; Validate does.
	bar.Validate()
	return bar
}
