package participantdata

import (
	"github.com/cph-cachet/carp-portal/internal/models"

	"go.uber.org/zap"
)

// Interpreter turns a study's expected participant data into form state and rules.
type Interpreter struct {
	log *zap.Logger
}

func NewInterpreter(log *zap.Logger) *Interpreter {
	return &Interpreter{log: log}
}

// Interpret builds the initial form and the rule set for a study.
//
// Every editable data type gets a group. A group is tagged "{namespace}.{name}"
// only when the study expects its type, and only tagged groups are validated
// and serialized. Stored values then replace their group wholesale; a stored
// value of a type the study no longer expects is shown but stays untagged.
// Interpret does not modify its inputs and returns equal results for equal inputs.
func (i *Interpreter) Interpret(expected []models.InputDataType, stored []FieldGroup) (*FormState, RuleSet) {
	form := newFormState()
	var rules RuleSet

	for _, t := range expected {
		dt := ParseDataType(t.Name)
		switch {
		case dt == InformedConsent:
			continue
		case dt == Unknown:
			i.log.Warn("Skipping unknown expected participant data type",
				zap.String("namespace", t.Namespace), zap.String("name", t.Name))
			continue
		}
		form.groups[dt].setTag(t.Tag())
		rules.add(dt)
	}

	for _, g := range stored {
		if g == nil {
			continue
		}
		dt := g.DataType()
		current, ok := form.groups[dt]
		if !ok {
			continue
		}
		form.replace(g, current.Tag() != "")
	}

	return form, rules
}

// HasEditableFields reports whether the participant data form has anything to
// show: it is suppressed when the study expects nothing or only informed consent.
func HasEditableFields(expected []models.InputDataType) bool {
	if len(expected) == 0 {
		return false
	}
	if len(expected) == 1 && expected[0].Name == InformedConsent.String() {
		return false
	}
	return true
}
