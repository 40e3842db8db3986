package views

import (
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/divinahealthcare/site/internal/submit"
)

// TokenField is the hidden input carrying the form instance token.
const TokenField = "form_token"

// FormState is everything needed to render one form instance.
type FormState struct {
	Form *submit.Form
	// ID prefixes element ids and is the form's anchor.
	ID     string
	Action string
	Values map[string]string
	Result *submit.Result
	Token  string
	// Open shows a collapsible form expanded.
	Open        bool
	SubmitLabel string
	Alt         *AltAction
}

// AltAction is a second submit button posting the same fields elsewhere.
type AltAction struct {
	Label  string
	Action string
	Method string
}

// Value returns the submitted value of a field.
func (s FormState) Value(name string) string {
	return s.Values[name]
}

// Error returns the validation message for a field.
func (s FormState) Error(name string) string {
	return s.Result.ErrorFor(name)
}

func (s FormState) fieldID(name string) string {
	return s.ID + "-" + strings.ReplaceAll(name, "_", "-")
}

func (s FormState) submitLabel() string {
	if s.SubmitLabel == "" {
		return "Submit"
	}
	return s.SubmitLabel
}

func bannerClass(res *submit.Result) string {
	if res.Success {
		return "banner banner-success"
	}
	return "banner banner-error"
}

// controlAttrs are the attributes shared by input, textarea and select.
func controlAttrs(id string, fs submit.FieldSpec, msg string) templ.OrderedAttributes {
	attrs := templ.OrderedAttributes{
		{Key: "id", Value: id},
		{Key: "name", Value: fs.Name},
	}
	if fs.Placeholder != "" {
		attrs = append(attrs, templ.KeyValue[string, any]{Key: "placeholder", Value: fs.Placeholder})
	}
	if fs.MaxLen > 0 {
		attrs = append(attrs, templ.KeyValue[string, any]{Key: "maxlength", Value: strconv.Itoa(fs.MaxLen)})
	}
	attrs = append(attrs, templ.KeyValue[string, any]{Key: "required", Value: fs.Required})
	if msg != "" {
		attrs = append(attrs,
			templ.KeyValue[string, any]{Key: "aria-invalid", Value: "true"},
			templ.KeyValue[string, any]{Key: "aria-describedby", Value: id + "-error"},
		)
	}
	return attrs
}

// optionSelected marks the current value, or the first option when nothing
// was submitted.
func optionSelected(opt, current string, i int) bool {
	return opt == current || (current == "" && i == 0)
}

func acceptList(rule *submit.AttachmentRule) string {
	return strings.Join(rule.Extensions, ",")
}

func acceptHint(rule *submit.AttachmentRule) string {
	return "Accepted: " + strings.ToUpper(strings.ReplaceAll(strings.Join(rule.Extensions, ", "), ".", ""))
}
