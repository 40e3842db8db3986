package submit

// validate.go checks a request against its form before anything leaves the
// process. Every problem is collected so the page can mark all bad fields at
// once.

import (
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"unicode/utf8"
)

// Validate checks req against its form and returns the trimmed values of the
// declared fields. Undeclared values are dropped. The error, when non-nil, is
// a *ValidationError.
func Validate(req *Request) (map[string]string, error) {
	form := req.Form
	verr := &ValidationError{}
	clean := make(map[string]string, len(form.Fields))

	for _, spec := range form.Fields {
		raw := strings.TrimSpace(req.Values[spec.Name])
		clean[spec.Name] = raw

		if raw == "" {
			if spec.Required {
				verr.add(spec.Name, "VAL001", fmt.Sprintf("%s is required", spec.Label))
			}
			continue
		}

		if spec.MaxLen > 0 && utf8.RuneCountInString(raw) > spec.MaxLen {
			verr.add(spec.Name, "VAL003", fmt.Sprintf("%s must be at most %d characters", spec.Label, spec.MaxLen))
			continue
		}

		if spec.Kind == KindEmail && !validEmail(raw) {
			verr.add(spec.Name, "VAL002", "Please enter a valid email address")
			continue
		}

		if len(spec.Options) > 0 && !slices.Contains(spec.Options, raw) {
			verr.add(spec.Name, "VAL004", fmt.Sprintf("%s must be one of: %s", spec.Label, strings.Join(spec.Options, ", ")))
		}
	}

	if rule := form.Attachment; rule != nil {
		validateAttachment(rule, req.Attachment, verr)
	}

	if !verr.empty() {
		return nil, verr
	}
	return clean, nil
}

func validateAttachment(rule *AttachmentRule, a *Attachment, verr *ValidationError) {
	if a == nil {
		if rule.Required {
			verr.add(rule.Field, "VAL005", fmt.Sprintf("%s is required", rule.Label))
		}
		return
	}

	switch {
	case a.Size() == 0:
		verr.add(rule.Field, "VAL005", "The selected file is empty")
	case rule.MaxSize > 0 && a.Size() > rule.MaxSize:
		verr.add(rule.Field, "VAL005", fmt.Sprintf("File exceeds the %s limit", humanSize(rule.MaxSize)))
	case len(rule.Extensions) > 0 && !slices.Contains(rule.Extensions, a.Ext()):
		verr.add(rule.Field, "VAL005", fmt.Sprintf("Accepted file types: %s", strings.Join(rule.Extensions, ", ")))
	}
}

// validEmail accepts a bare address only, not "Name <addr>".
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	return at > 0 && strings.Contains(s[at+1:], ".")
}

func humanSize(n int64) string {
	const mib = 1 << 20
	if n >= mib && n%mib == 0 {
		return fmt.Sprintf("%d MB", n/mib)
	}
	if n >= 1<<10 {
		return fmt.Sprintf("%d KB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
