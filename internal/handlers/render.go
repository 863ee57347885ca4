package handlers

import (
	"errors"
	"net/http"

	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/services"
	"github.com/cph-cachet/carp-portal/internal/utils"
	"github.com/cph-cachet/carp-portal/views"

	"github.com/a-h/templ"
	"github.com/gin-gonic/gin"
)

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

func contextString(c *gin.Context, key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// render writes component as an HTMX partial, or inside the page layout for
// direct navigation.
func render(c *gin.Context, status int, title string, component templ.Component) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if isHTMX(c) {
		_ = component.Render(c.Request.Context(), c.Writer)
		return
	}
	_ = views.Layout(title, contextString(c, "csrf_token"), contextString(c, "csp_nonce")).Render(
		templ.WithChildren(c.Request.Context(), component),
		c.Writer,
	)
}

// participantKey reads the route ids. It aborts with 400 when one is not a UUID.
func participantKey(c *gin.Context) (services.ParticipantKey, bool) {
	key := services.ParticipantKey{
		StudyID:       c.Param("studyId"),
		DeploymentID:  c.Param("deploymentId"),
		ParticipantID: c.Param("participantId"),
	}
	ids := []string{key.StudyID, key.DeploymentID}
	if hasParticipant(c) {
		ids = append(ids, key.ParticipantID)
	}
	if !utils.AreValidIDs(ids...) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return key, false
	}
	return key, true
}

func hasParticipant(c *gin.Context) bool {
	for _, p := range c.Params {
		if p.Key == "participantId" {
			return true
		}
	}
	return false
}

// loadStatus maps a load failure to a response status and a user-facing message.
func loadStatus(err error) (int, string) {
	var le *services.LoadError
	switch {
	case errors.Is(err, services.ErrDeploymentNotFound):
		return http.StatusNotFound, "Deployment not found"
	case errors.Is(err, services.ErrParticipantNotFound):
		return http.StatusNotFound, "Participant not found"
	case carp.IsNotFound(err):
		return http.StatusNotFound, "Study not found"
	case errors.As(err, &le):
		return http.StatusBadGateway, "An error occurred while loading " + le.Source
	}
	return http.StatusInternalServerError, "An unexpected error occurred"
}

// serviceMessage is the backend's own message for err, if it sent one.
func serviceMessage(err error) string {
	var se *carp.ServiceError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
