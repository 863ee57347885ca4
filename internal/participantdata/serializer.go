package participantdata

import "sort"

// Payload maps a discriminant tag to the group to store, or to nil meaning the
// participant has no data of that type. A tag missing from the payload is left
// unchanged by the server.
type Payload map[string]FieldGroup

// Submission is the body of a set-participant-data request.
type Submission struct {
	ParticipantData Payload `json:"participantData"`
	Role            string  `json:"role"`
}

// Serialize converts the form into the wire payload. Every tagged group is
// present: empty groups map to nil, the others to a copy of the group.
// Untagged groups are not expected by the study and are left out.
func Serialize(f *FormState) Payload {
	payload := make(Payload, len(f.groups))
	for _, dt := range editableTypes {
		g := f.groups[dt]
		if g == nil || g.Tag() == "" {
			continue
		}
		if g.IsEmpty() {
			payload[g.Tag()] = nil
			continue
		}
		payload[g.Tag()] = g.clone()
	}
	return payload
}

// Tags returns the tags in the payload, sorted, split into provided and cleared.
func (p Payload) Tags() (provided, cleared []string) {
	for tag, g := range p {
		if g == nil {
			cleared = append(cleared, tag)
		} else {
			provided = append(provided, tag)
		}
	}
	sort.Strings(provided)
	sort.Strings(cleared)
	return provided, cleared
}
