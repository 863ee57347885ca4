package views

import (
	"context"
	"io"

	"github.com/cph-cachet/carp-portal/internal/services"

	"github.com/a-h/templ"
)

// DeploymentPage shows the participants, devices and informed consents of a
// deployment, plus a chart of how much participant data has been provided.
func DeploymentPage(view *services.DeploymentView, chartOptions string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		base := DeploymentPath(view.StudyID, view.Group.ParticipantGroupID)

		h.raw(`<section class="deployment-header"><h2>`)
		if view.Study != nil {
			h.text(view.Study.Name)
		}
		h.raw(`</h2><p class="muted">Deployment `)
		h.text(view.Group.ParticipantGroupID)
		if status := view.Group.DeploymentStatus.Status(); status != "" {
			h.raw(` <span class="badge">`)
			h.text(status)
			h.raw(`</span>`)
		}
		h.raw(`</p></section>`)

		h.raw(`<section class="card"><h3>Participants</h3><ul class="participants">`)
		for _, p := range view.Group.Participants {
			h.raw(`<li><span class="avatar">`)
			h.text(p.Initials())
			h.raw(`</span><a`)
			h.attr("href", base+"/participants/"+p.ParticipantID)
			h.raw(`>`)
			h.text(p.DisplayName())
			h.raw(`</a><span class="muted">`)
			h.text(p.Role)
			h.raw(`</span></li>`)
		}
		h.raw(`</ul></section>`)

		h.raw(`<section class="card"><h3>Devices</h3><ul class="devices">`)
		for _, d := range view.Group.DeploymentStatus.DeviceStatusList {
			h.raw(`<li>`)
			h.text(d.Device.RoleName)
			h.raw(` <span class="badge">`)
			h.text(d.Status())
			h.raw(`</span></li>`)
		}
		h.raw(`</ul></section>`)

		h.raw(`<section class="card"><h3>Informed Consents</h3><ul class="consents">`)
		for _, c := range view.Consents {
			h.raw(`<li><span>`)
			h.text(c.Participant.DisplayName())
			h.raw(`</span>`)
			if c.Consent == nil {
				h.raw(`<span class="muted">Not registered</span>`)
			} else {
				h.raw(`<i class="muted">Last uploaded: `)
				h.text(c.Consent.SignedTimestamp.Format("02/01/2006"))
				h.raw(`</i><a class="button button-secondary"`)
				h.attr("href", base+"/participants/"+c.Participant.ParticipantID+"/consent.pdf")
				h.raw(`>Export</a>`)
			}
			h.raw(`</li>`)
		}
		h.raw(`</ul></section>`)

		if len(view.Coverage) > 0 {
			h.raw(`<section class="card"><h3>Participant Data</h3><div class="chart" style="height:320px"`)
			h.attr("data-echarts", chartOptions)
			h.raw(`></div></section>`)
		}
		return h.err
	})
}
