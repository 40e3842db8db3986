package submit

import (
	"maps"
	"time"
)

// TimestampLayout renders "January 2, 2006 at 03:04 PM EST".
const TimestampLayout = "January 2, 2006 at 03:04 PM MST"

// attachmentSeparator precedes the attachment link in the compose field.
const attachmentSeparator = "\n\n---\nCV link: "

// enrich adds the submission timestamp, the label and any extra fields.
// An empty label is omitted.
func enrich(form *Form, fields map[string]string, label string, extra map[string]string, now time.Time, loc *time.Location) {
	for k, v := range extra {
		if _, taken := fields[k]; !taken {
			fields[k] = v
		}
	}
	fields[FieldTimestamp] = now.In(loc).Format(TimestampLayout)
	if label != "" && form.LabelField != "" {
		fields[form.LabelField] = label
	}
}

// compose builds the outgoing field set. Values are plain text and are sent
// as typed; escaping happens where they are rendered. The attachment link is
// appended to the compose field, never substituted for it.
func compose(form *Form, fields map[string]string, attachmentURL string) map[string]string {
	out := maps.Clone(fields)
	if attachmentURL != "" && form.ComposeField != "" {
		out[form.ComposeField] += attachmentSeparator + attachmentURL
	}
	return out
}
