// Package carp talks to the CARP webservices backend.
package carp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cph-cachet/carp-portal/internal/config"
	logger "github.com/cph-cachet/carp-portal/internal/logging"
	"github.com/cph-cachet/carp-portal/internal/models"
	"github.com/cph-cachet/carp-portal/internal/participantdata"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	apiVersion = "1.1"

	studyServicePath         = "/api/study-service"
	participationServicePath = "/api/participation-service"

	studyRequest         = "dk.cachet.carp.studies.infrastructure.StudyServiceRequest."
	participationRequest = "dk.cachet.carp.deployments.infrastructure.ParticipationServiceRequest."
)

// API is the subset of CARP webservices the portal uses.
type API interface {
	GetStudyDetails(ctx context.Context, studyID string) (*models.StudyDetails, error)
	GetParticipantGroupStatus(ctx context.Context, studyID string) (*models.ParticipantGroupStatusList, error)
	GetParticipantData(ctx context.Context, deploymentID string) (*models.ParticipantData, error)
	SetParticipantData(ctx context.Context, deploymentID string, sub participantdata.Submission) (*models.ParticipantData, error)
}

var _ API = (*Client)(nil)

// ServiceError is the error body CARP returns for failed requests.
type ServiceError struct {
	StatusCode int    `json:"statusCode"`
	Exception  string `json:"exception"`
	Message    string `json:"message"`
	Path       string `json:"path"`
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("carp: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("carp: %s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound reports whether err is a CARP 404.
func IsNotFound(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
	log     *zap.Logger
}

func NewClient(conf config.CarpConfig, log *zap.Logger) *Client {
	hc := retryablehttp.NewClient()
	hc.RetryMax = conf.RetryMax
	hc.Logger = logger.NewRetryZapLogger(log)
	// Hand the last response back so a failing status still yields a ServiceError.
	hc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if conf.Timeout > 0 {
		hc.HTTPClient.Timeout = conf.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(conf.BaseURL, "/"),
		token:   conf.AccessToken,
		http:    hc,
		log:     log.Named("carp"),
	}
}

type rpcRequest map[string]interface{}

func newRPC(requestType string, fields map[string]interface{}) rpcRequest {
	r := rpcRequest{"__type": requestType, "apiVersion": apiVersion}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

func (c *Client) GetStudyDetails(ctx context.Context, studyID string) (*models.StudyDetails, error) {
	var out models.StudyDetails
	req := newRPC(studyRequest+"GetStudyDetails", map[string]interface{}{"studyId": studyID})
	if err := c.do(ctx, http.MethodPost, studyServicePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetParticipantGroupStatus(ctx context.Context, studyID string) (*models.ParticipantGroupStatusList, error) {
	var out models.ParticipantGroupStatusList
	path := "/api/studies/" + url.PathEscape(studyID) + "/participantGroup/status"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetParticipantData(ctx context.Context, deploymentID string) (*models.ParticipantData, error) {
	var out models.ParticipantData
	req := newRPC(participationRequest+"GetParticipantData", map[string]interface{}{"studyDeploymentId": deploymentID})
	if err := c.do(ctx, http.MethodPost, participationServicePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetParticipantData stores the submitted groups. Tags mapped to null clear
// the stored value; tags missing from the payload are left as they are.
func (c *Client) SetParticipantData(ctx context.Context, deploymentID string, sub participantdata.Submission) (*models.ParticipantData, error) {
	var out models.ParticipantData
	req := newRPC(participationRequest+"SetParticipantData", map[string]interface{}{
		"studyDeploymentId":      deploymentID,
		"data":                   sub.ParticipantData,
		"inputByParticipantRole": sub.Role,
	})
	if err := c.do(ctx, http.MethodPost, participationServicePath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var raw interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("carp: encoding request: %w", err)
		}
		raw = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, raw)
	if err != nil {
		return fmt.Errorf("carp: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	// After the last retry the passthrough handler returns both the final
	// response and the retry error; the response carries the service error.
	resp, err := c.http.Do(req)
	if resp == nil {
		c.log.Error("CARP request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("carp: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("carp: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &ServiceError{}
		if len(data) > 0 && json.Unmarshal(data, se) != nil {
			se.Message = string(bytes.TrimSpace(data))
		}
		se.StatusCode = resp.StatusCode
		if se.Path == "" {
			se.Path = path
		}
		c.log.Warn("CARP returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", se.Message),
		)
		return se
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("carp: decoding %s response: %w", path, err)
	}
	return nil
}
