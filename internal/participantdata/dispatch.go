package participantdata

import (
	"github.com/cph-cachet/carp-portal/internal/models"

	"go.uber.org/zap"
)

// SelectEntry is one choice of an enumerated select. A nil value is the "clear" entry.
type SelectEntry struct {
	Label string
	Value *string
}

// Binding connects an input to a field path of the form.
type Binding struct {
	Path      string
	Label     string
	InputType string
	Value     string
	MaxLength int
	Error     string
}

// Input is the widget selected for one expected data type.
type Input struct {
	Kind     WidgetKind
	DataType DataType
	Name     string
	Label    string
	Disabled bool
	// Entries is set for enumerated selects: the clear entry first, then the options.
	Entries  []SelectEntry
	Bindings []Binding
}

// Dispatcher selects the input variant for a data type and binds it to form state.
type Dispatcher struct {
	registry *Registry
	log      *zap.Logger
}

func NewDispatcher(registry *Registry, log *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, log: log}
}

// Dispatch picks the input for t. Informed consent renders nothing; names the
// form does not know render nothing either and are logged.
func (d *Dispatcher) Dispatch(t models.InputDataType, form *FormState, editing bool, errs ValidationErrors) Input {
	dt := ParseDataType(t.Name)
	in := Input{DataType: dt, Name: t.Name, Label: LabelForName(t.Name), Disabled: !editing}

	if dt == InformedConsent {
		in.Kind = WidgetNone
		return in
	}

	if element, ok := d.registry.Lookup(t); ok {
		if g, isEnum := form.Group(dt).(*EnumeratedGroup); isEnum {
			return d.enumerated(in, element, g, errs)
		}
		d.log.Warn("Input element declared for a data type without a single value field",
			zap.String("type", t.Tag()), zap.String("element", string(element.Kind)))
	}

	if dt == Unknown || !dt.Editable() {
		d.log.Warn("No input for participant data type", zap.String("type", t.Tag()))
		in.Kind = WidgetUnknown
		return in
	}

	in.Kind = dataTypes[dt].widget
	in.Bindings = bindings(dt, form, errs)
	return in
}

func (d *Dispatcher) enumerated(in Input, element InputElement, g *EnumeratedGroup, errs ValidationErrors) Input {
	path := in.DataType.String() + ".value"
	if element.Prompt != "" {
		in.Label = element.Prompt
	}
	binding := Binding{
		Path:      path,
		Label:     in.Label,
		InputType: "text",
		Value:     deref(g.Value),
		MaxLength: element.MaxLength,
		Error:     errs.ForPath(path),
	}

	if element.Kind == ElementText {
		in.Kind = WidgetFreeText
		in.Bindings = []Binding{binding}
		return in
	}

	in.Kind = WidgetEnumeratedSelect
	binding.InputType = "select"
	in.Bindings = []Binding{binding}
	in.Entries = make([]SelectEntry, 0, len(element.Options)+1)
	in.Entries = append(in.Entries, SelectEntry{Label: "Clear"})
	for _, option := range element.Options {
		o := option
		in.Entries = append(in.Entries, SelectEntry{Label: o, Value: &o})
	}
	return in
}

func bindings(dt DataType, form *FormState, errs ValidationErrors) []Binding {
	paths := FieldPathsOf(dt)
	out := make([]Binding, 0, len(paths))
	for _, fp := range paths {
		out = append(out, Binding{
			Path:      fp.Path(),
			Label:     fp.Label,
			InputType: fp.InputType,
			Value:     fp.get(form),
			Error:     errs.ForPath(fp.Path()),
		})
	}
	return out
}

// DispatchAll dispatches every expected type in protocol order, dropping
// inputs that render nothing.
func (d *Dispatcher) DispatchAll(expected []models.InputDataType, form *FormState, editing bool, errs ValidationErrors) []Input {
	inputs := make([]Input, 0, len(expected))
	seen := make(map[string]bool, len(expected))
	for _, t := range expected {
		if seen[t.Name] {
			continue
		}
		seen[t.Name] = true
		in := d.Dispatch(t, form, editing, errs)
		if in.Kind == WidgetNone || in.Kind == WidgetUnknown {
			continue
		}
		inputs = append(inputs, in)
	}
	return inputs
}
