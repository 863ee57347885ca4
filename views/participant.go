package views

import (
	"context"
	"io"
	"strconv"

	"github.com/cph-cachet/carp-portal/internal/participantdata"
	"github.com/cph-cachet/carp-portal/internal/services"
	"github.com/cph-cachet/carp-portal/views/components"

	"github.com/a-h/templ"
)

const ParticipantCardID = "participant-data-card"

// ParticipantCard is what the participant data card shows.
type ParticipantCard struct {
	View      *services.ParticipantDataView
	Inputs    []participantdata.Input
	Editing   bool
	CSRFToken string
	Alert     string
	AlertKind string
}

// DeploymentPath is the page of a deployment.
func DeploymentPath(studyID, deploymentID string) string {
	return "/studies/" + studyID + "/deployments/" + deploymentID
}

// ParticipantPath is the page of a participant.
func ParticipantPath(key services.ParticipantKey) string {
	return DeploymentPath(key.StudyID, key.DeploymentID) + "/participants/" + key.ParticipantID
}

// ParticipantPage shows the participant header and the data card.
func ParticipantPage(card ParticipantCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := card.View
		h := &html{w: w}
		h.raw(`<nav class="breadcrumbs"><a`)
		h.attr("href", DeploymentPath(v.Key.StudyID, v.Key.DeploymentID))
		h.raw(`>`)
		h.text(studyName(v))
		h.raw(`</a></nav><section class="participant-header"><span class="avatar">`)
		h.text(v.Participant.Initials())
		h.raw(`</span><div><h2>`)
		h.text(v.Participant.DisplayName())
		h.raw(`</h2><p class="muted">`)
		h.text(v.Role)
		if v.Participant.Email != nil && *v.Participant.Email != "" {
			h.text(" · " + *v.Participant.Email)
		}
		h.raw(`</p></div></section>`)
		h.render(ctx, ParticipantDataCard(card))
		return h.err
	})
}

func studyName(v *services.ParticipantDataView) string {
	if v.Study != nil && v.Study.Name != "" {
		return v.Study.Name
	}
	return "Study"
}

// ParticipantDataCard renders the editable participant data. It renders
// nothing when the study expects no data besides informed consent.
func ParticipantDataCard(card ParticipantCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		v := card.View
		if v == nil || !v.HasEditableFields {
			return nil
		}
		base := ParticipantPath(v.Key)

		h := &html{w: w}
		h.raw(`<section class="card"`)
		h.attr("id", ParticipantCardID)
		h.raw(`><header class="card-header"><div><h3>Participant Data</h3>`)
		h.raw(`<p class="muted">Required fields are only applied if the section has any field set.</p></div>`)
		if !card.Editing {
			h.raw(`<button type="button" class="button"`)
			h.attr("hx-get", base+"/data/edit")
			h.attr("hx-target", "#"+ParticipantCardID)
			h.raw(` hx-swap="outerHTML">Edit Data</button>`)
		}
		h.raw(`</header>`)
		h.render(ctx, components.Alert(card.Alert, card.AlertKind))

		h.raw(`<form method="post"`)
		h.attr("action", base+"/data")
		h.attr("hx-post", base+"/data")
		h.attr("hx-target", "#"+ParticipantCardID)
		h.raw(` hx-swap="outerHTML"><input type="hidden" name="_csrf"`)
		h.attr("value", card.CSRFToken)
		h.raw(`>`)

		for _, in := range card.Inputs {
			writeInput(h, in)
		}

		if card.Editing {
			h.raw(`<div class="actions"><button type="button" class="button button-secondary"`)
			h.attr("hx-get", base+"/data")
			h.attr("hx-target", "#"+ParticipantCardID)
			h.raw(` hx-swap="outerHTML">Cancel</button><button type="submit" class="button">Save</button></div>`)
		}
		h.raw(`</form></section>`)
		return h.err
	})
}

func writeInput(h *html, in participantdata.Input) {
	h.raw(`<fieldset class="data-group"`)
	h.attr("data-type", in.Name)
	h.raw(`><legend>`)
	h.text(in.Label)
	h.raw(`</legend>`)

	for _, b := range in.Bindings {
		h.raw(`<div class="field"><label`)
		h.attr("for", b.Path)
		h.raw(`>`)
		h.text(b.Label)
		h.raw(`</label>`)

		if in.Kind == participantdata.WidgetEnumeratedSelect {
			writeSelect(h, in, b)
		} else {
			h.raw(`<input`)
			h.attr("type", b.InputType)
			h.attr("id", b.Path)
			h.attr("name", b.Path)
			h.attr("value", b.Value)
			if b.MaxLength > 0 {
				h.attr("maxlength", strconv.Itoa(b.MaxLength))
			}
			h.flag("disabled", in.Disabled)
			if b.Error != "" {
				h.attr("aria-invalid", "true")
			}
			h.raw(`>`)
		}

		if b.Error != "" {
			h.raw(`<span class="field-error">`)
			h.text(b.Error)
			h.raw(`</span>`)
		}
		h.raw(`</div>`)
	}
	h.raw(`</fieldset>`)
}

func writeSelect(h *html, in participantdata.Input, b participantdata.Binding) {
	h.raw(`<select`)
	h.attr("id", b.Path)
	h.attr("name", b.Path)
	h.flag("disabled", in.Disabled)
	h.raw(`>`)
	for _, e := range in.Entries {
		value := ""
		if e.Value != nil {
			value = *e.Value
		}
		h.raw(`<option`)
		h.attr("value", value)
		h.flag("selected", value == b.Value)
		h.raw(`>`)
		h.text(e.Label)
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}
