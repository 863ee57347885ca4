package models

import "strings"

// ParticipantGroupStatusList is the webservices view of all deployments in a study,
// joined with the accounts of their participants.
type ParticipantGroupStatusList struct {
	Groups []ParticipantGroup `json:"groups"`
}

// Group returns the participant group for a deployment.
func (l *ParticipantGroupStatusList) Group(deploymentID string) (*ParticipantGroup, bool) {
	if l == nil {
		return nil, false
	}
	for i := range l.Groups {
		if l.Groups[i].ParticipantGroupID == deploymentID {
			return &l.Groups[i], true
		}
	}
	return nil, false
}

type ParticipantGroup struct {
	ParticipantGroupID string               `json:"participantGroupId"`
	Participants       []ParticipantAccount `json:"participants"`
	DeploymentStatus   DeploymentStatus     `json:"deploymentStatus"`
}

// ParticipantStatus returns the deployment status entry of a participant.
func (g *ParticipantGroup) ParticipantStatus(participantID string) (*ParticipantStatus, bool) {
	for i := range g.DeploymentStatus.ParticipantStatusList {
		if g.DeploymentStatus.ParticipantStatusList[i].ParticipantID == participantID {
			return &g.DeploymentStatus.ParticipantStatusList[i], true
		}
	}
	return nil, false
}

// Account returns the account joined to a participant, if any.
func (g *ParticipantGroup) Account(participantID string) (*ParticipantAccount, bool) {
	for i := range g.Participants {
		if g.Participants[i].ParticipantID == participantID {
			return &g.Participants[i], true
		}
	}
	return nil, false
}

type ParticipantAccount struct {
	ParticipantID string  `json:"participantId"`
	AccountID     string  `json:"accountId,omitempty"`
	Email         *string `json:"email,omitempty"`
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	Role          string  `json:"role"`
}

// DisplayName is "First Last" when both names are known, otherwise the participant id.
func (a ParticipantAccount) DisplayName() string {
	if a.FirstName != nil && a.LastName != nil && *a.FirstName != "" && *a.LastName != "" {
		return *a.FirstName + " " + *a.LastName
	}
	return a.ParticipantID
}

// Initials falls back to the first letter of the role for generated accounts.
func (a ParticipantAccount) Initials() string {
	if a.FirstName == nil || *a.FirstName == "" {
		if a.Role == "" {
			return "?"
		}
		return strings.ToUpper(firstRune(a.Role))
	}
	initials := firstRune(*a.FirstName)
	if a.LastName != nil {
		initials += firstRune(*a.LastName)
	}
	return strings.ToUpper(initials)
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

type DeploymentStatus struct {
	Type                  string              `json:"__type"`
	StudyDeploymentID     string              `json:"studyDeploymentId"`
	DeviceStatusList      []DeviceStatus      `json:"deviceStatusList"`
	ParticipantStatusList []ParticipantStatus `json:"participantStatusList"`
}

// Status is the last segment of the status discriminant, e.g. "Running".
func (s DeploymentStatus) Status() string {
	return lastSegment(s.Type)
}

type DeviceStatus struct {
	Type   string           `json:"__type"`
	Device DeviceDescriptor `json:"device"`
}

// Status is the last segment of the status discriminant, e.g. "Registered".
func (s DeviceStatus) Status() string {
	return lastSegment(s.Type)
}

type DeviceDescriptor struct {
	Type     string `json:"__type"`
	RoleName string `json:"roleName"`
}

type AssignedParticipantRoles struct {
	Type      string   `json:"__type"`
	RoleNames []string `json:"roleNames"`
}

type ParticipantStatus struct {
	ParticipantID                  string                   `json:"participantId"`
	AssignedParticipantRoles       AssignedParticipantRoles `json:"assignedParticipantRoles"`
	AssignedPrimaryDeviceRoleNames []string                 `json:"assignedPrimaryDeviceRoleNames"`
}

// PrimaryRole is the role a participant enters data as.
func (p ParticipantStatus) PrimaryRole() string {
	if len(p.AssignedParticipantRoles.RoleNames) == 0 {
		return ""
	}
	return p.AssignedParticipantRoles.RoleNames[0]
}

func lastSegment(s string) string {
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}
