package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cph-cachet/carp-portal/internal/carp"
	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"
	"github.com/cph-cachet/carp-portal/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	studyID       = "0b7c1a52-0000-4000-8000-00000000000a"
	deploymentID  = "0b7c1a52-0000-4000-8000-00000000000b"
	participantID = "0b7c1a52-0000-4000-8000-00000000000c"
	ns            = "dk.carp.webservices.input"
)

var (
	deploymentURL  = "/studies/" + studyID + "/deployments/" + deploymentID
	participantURL = deploymentURL + "/participants/" + participantID
)

type fakeAPI struct {
	study   *models.StudyDetails
	groups  *models.ParticipantGroupStatusList
	data    *models.ParticipantData
	dataErr error
	setErr  error

	submissions []participantdata.Submission
}

func (a *fakeAPI) GetStudyDetails(context.Context, string) (*models.StudyDetails, error) {
	return a.study, nil
}

func (a *fakeAPI) GetParticipantGroupStatus(context.Context, string) (*models.ParticipantGroupStatusList, error) {
	return a.groups, nil
}

func (a *fakeAPI) GetParticipantData(context.Context, string) (*models.ParticipantData, error) {
	return a.data, a.dataErr
}

func (a *fakeAPI) SetParticipantData(_ context.Context, _ string, sub participantdata.Submission) (*models.ParticipantData, error) {
	if a.setErr != nil {
		return nil, a.setErr
	}
	a.submissions = append(a.submissions, sub)
	return a.data, nil
}

var _ carp.API = (*fakeAPI)(nil)

type fakeAudits struct {
	limit  int
	audits []models.SubmissionAudit
}

func (f *fakeAudits) ListForDeployment(_ context.Context, _ string, limit int) ([]models.SubmissionAudit, error) {
	f.limit = limit
	return f.audits, nil
}

func newFakeAPI(names ...string) *fakeAPI {
	study := &models.StudyDetails{StudyID: studyID, Name: "Sleep", ProtocolSnapshot: &models.StudyProtocolSnapshot{}}
	for _, n := range names {
		study.ProtocolSnapshot.ExpectedParticipantData = append(study.ProtocolSnapshot.ExpectedParticipantData,
			models.ExpectedParticipantData{Attribute: models.ParticipantAttribute{
				InputDataType: models.InputDataType{Namespace: ns, Name: n},
			}})
	}
	first, last := "Jane", "Doe"
	return &fakeAPI{
		study: study,
		groups: &models.ParticipantGroupStatusList{Groups: []models.ParticipantGroup{{
			ParticipantGroupID: deploymentID,
			Participants: []models.ParticipantAccount{
				{ParticipantID: participantID, Role: "Patient", FirstName: &first, LastName: &last},
			},
			DeploymentStatus: models.DeploymentStatus{
				ParticipantStatusList: []models.ParticipantStatus{{
					ParticipantID:            participantID,
					AssignedParticipantRoles: models.AssignedParticipantRoles{RoleNames: []string{"Patient"}},
				}},
			},
		}}},
		data: &models.ParticipantData{StudyDeploymentID: deploymentID},
	}
}

func newTestEngine(api carp.API, audits AuditLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()

	participants := NewParticipantHandler(log,
		services.NewParticipantDataService(api, participantdata.NewInterpreter(log), nil, log),
		participantdata.NewDispatcher(participantdata.DefaultRegistry(), log))
	deployments := NewDeploymentHandler(log, services.NewDeploymentService(api, log), audits)

	r := gin.New()
	r.GET("/health", NewHealthHandler(log, nil).Check)
	dep := r.Group("/studies/:studyId/deployments/:deploymentId")
	dep.GET("", deployments.ShowPage)
	dep.GET("/audit", deployments.ListAudits)
	p := dep.Group("/participants/:participantId")
	p.GET("", participants.ShowPage)
	p.GET("/data", participants.ShowCard)
	p.GET("/data/edit", participants.EditCard)
	p.POST("/data", participants.Submit)
	p.GET("/consent.pdf", deployments.DownloadConsent)
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func htmx(req *http.Request) *http.Request {
	req.Header.Set("HX-Request", "true")
	return req
}

func jsonSubmit(t *testing.T, edits map[string]*string) *http.Request {
	t.Helper()
	body, err := json.Marshal(gin.H{"edits": edits})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, participantURL+"/data", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestInvalidIDsAreRejected(t *testing.T) {
	r := newTestEngine(newFakeAPI("sex"), nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/studies/nope/deployments/"+deploymentID, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, httptest.NewRequest(http.MethodGet, deploymentURL+"/participants/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowPageRendersLayoutAndCard(t *testing.T) {
	r := newTestEngine(newFakeAPI("phone_number", "sex"), nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, participantURL, nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<html")
	assert.Contains(t, body, "Jane Doe")
	assert.Contains(t, body, `name="phone_number.number"`)
	assert.Contains(t, body, "Edit Data")
	assert.Contains(t, body, " disabled")
}

func TestEditCardIsPartialForHTMX(t *testing.T) {
	r := newTestEngine(newFakeAPI("phone_number"), nil)

	w := serve(r, htmx(httptest.NewRequest(http.MethodGet, participantURL+"/data/edit", nil)))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, "<html")
	assert.Contains(t, body, `id="participant-data-card"`)
	assert.Contains(t, body, "Save")
	assert.NotContains(t, body, "Edit Data")
}

func TestShowPageUnknownParticipant(t *testing.T) {
	r := newTestEngine(newFakeAPI("sex"), nil)

	other := "0b7c1a52-0000-4000-8000-0000000000ff"
	w := serve(r, httptest.NewRequest(http.MethodGet, deploymentURL+"/participants/"+other, nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Participant not found")
}

func TestShowPageBackendFailure(t *testing.T) {
	api := newFakeAPI("sex")
	api.dataErr = errors.New("connection refused")
	r := newTestEngine(api, nil)

	req := httptest.NewRequest(http.MethodGet, participantURL, nil)
	req.Header.Set("Accept", "application/json")
	w := serve(r, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "participant data")
}

func TestSubmitJSONStoresData(t *testing.T) {
	api := newFakeAPI("phone_number", "sex")
	r := newTestEngine(api, nil)

	cc, number := "45", "12345678"
	w := serve(r, jsonSubmit(t, map[string]*string{
		"phone_number.countryCode": &cc,
		"phone_number.number":      &number,
	}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, api.submissions, 1)
	assert.Equal(t, "Patient", api.submissions[0].Role)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Participant data saved", body["message"])
	assert.Contains(t, body["participantData"], ns+".phone_number")
}

func TestSubmitJSONValidationFailure(t *testing.T) {
	api := newFakeAPI("phone_number")
	r := newTestEngine(api, nil)

	number := "12345678"
	w := serve(r, jsonSubmit(t, map[string]*string{"phone_number.number": &number}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"path":"phone_number.countryCode"`)
	assert.Empty(t, api.submissions)
}

func TestSubmitFormValidationFailureForHTMX(t *testing.T) {
	api := newFakeAPI("phone_number")
	r := newTestEngine(api, nil)

	form := url.Values{"phone_number.number": {"12345678"}, "_csrf": {"ignored"}}
	req := htmx(httptest.NewRequest(http.MethodPost, participantURL+"/data", strings.NewReader(form.Encode())))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(r, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Country code is required when number is set")
	assert.Contains(t, body, `value="12345678"`)
	assert.Contains(t, body, `id="phone_number.countryCode" name="phone_number.countryCode" value="" aria-invalid="true">`)
	assert.Equal(t, 1, strings.Count(body, `aria-invalid="true"`))
	assert.Contains(t, body, "Save")
	assert.Empty(t, api.submissions)
}

func TestSubmitRejections(t *testing.T) {
	v := "x"

	w := serve(newTestEngine(newFakeAPI("sex"), nil), jsonSubmit(t, map[string]*string{"sex.colour": &v}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(newTestEngine(newFakeAPI("informed_consent"), nil), jsonSubmit(t, map[string]*string{}))
	assert.Equal(t, http.StatusConflict, w.Code)

	req := httptest.NewRequest(http.MethodPost, participantURL+"/data", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w = serve(newTestEngine(newFakeAPI("sex"), nil), req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitBackendFailure(t *testing.T) {
	api := newFakeAPI("full_name")
	api.setErr = &carp.ServiceError{StatusCode: http.StatusBadRequest, Message: "Invalid participant data"}
	r := newTestEngine(api, nil)

	first := "Ada"
	w := serve(r, jsonSubmit(t, map[string]*string{"full_name.firstName": &first}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid participant data")
}

const sleepConsent = `{"title":"Sleep study","sections":[{"title":"Purpose","content":"We study sleep."}]}`

func consentData(t *testing.T, document string) *models.ParticipantData {
	t.Helper()
	b, err := json.Marshal(models.InformedConsent{
		Type:            ns + ".informed_consent",
		SignedTimestamp: time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC),
		Name:            "Jane",
		Consent:         document,
	})
	require.NoError(t, err)
	return &models.ParticipantData{
		StudyDeploymentID: deploymentID,
		Common:            map[string]json.RawMessage{ns + ".informed_consent": b},
	}
}

func TestDeploymentPage(t *testing.T) {
	api := newFakeAPI("sex", "informed_consent")
	api.data = consentData(t, sleepConsent)
	r := newTestEngine(api, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, deploymentURL, nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Sleep")
	assert.Contains(t, body, "data-echarts")
	assert.Contains(t, body, participantURL+"/consent.pdf")
}

func TestDownloadConsent(t *testing.T) {
	api := newFakeAPI("informed_consent")
	api.data = consentData(t, sleepConsent)
	r := newTestEngine(api, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, participantURL+"/consent.pdf", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "informed-consent-"+participantID+".pdf")
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF-"))

	w = serve(newTestEngine(newFakeAPI("informed_consent"), nil), httptest.NewRequest(http.MethodGet, participantURL+"/consent.pdf", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadMalformedConsentIsNotServedAsPDF(t *testing.T) {
	api := newFakeAPI("informed_consent")
	api.data = consentData(t, "not json")
	r := newTestEngine(api, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, participantURL+"/consent.pdf", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "malformed")
}

func TestListAudits(t *testing.T) {
	audits := &fakeAudits{audits: []models.SubmissionAudit{{DeploymentID: deploymentID, Role: "Patient"}}}
	r := newTestEngine(newFakeAPI("sex"), audits)

	w := serve(r, httptest.NewRequest(http.MethodGet, deploymentURL+"/audit?limit=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, audits.limit)
	assert.Contains(t, w.Body.String(), `"Patient"`)

	w = serve(newTestEngine(newFakeAPI("sex"), nil), httptest.NewRequest(http.MethodGet, deploymentURL+"/audit", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthWithoutDatabase(t *testing.T) {
	w := serve(newTestEngine(newFakeAPI(), nil), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"disabled"}`, w.Body.String())
}

func TestCoverageChart(t *testing.T) {
	bar := coverageChart([]services.Coverage{
		{Label: "Sex", Provided: 1, Total: 3},
		{Label: "Full Name", Provided: 3, Total: 3},
	})

	b, err := json.Marshal(bar.JSON())
	require.NoError(t, err)
	out := string(b)
	assert.Contains(t, out, "Provided")
	assert.Contains(t, out, "Missing")

	var options struct {
		XAxis []struct {
			Data []string `json:"data"`
		} `json:"xAxis"`
	}
	require.NoError(t, json.Unmarshal(b, &options))
	require.NotEmpty(t, options.XAxis)
	assert.Equal(t, []string{"Sex", "Full Name"}, options.XAxis[0].Data)
}

func TestDeploymentPageChartHasAxisLabels(t *testing.T) {
	api := newFakeAPI("sex", "full_name")
	r := newTestEngine(api, nil)

	w := serve(r, httptest.NewRequest(http.MethodGet, deploymentURL, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Full Name")
	assert.Contains(t, w.Body.String(), "&#34;xAxis&#34;")
}
