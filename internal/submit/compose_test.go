package submit

import (
	"testing"
	"time"
)

func TestCompose(t *testing.T) {
	form, _ := testForms().Get(FormJobApplication)

	tests := []struct {
		name   string
		letter string
		url    string
		want   string
	}{
		{"no attachment keeps text", "Hello", "", "Hello"},
		{"link appended", "I am excited...", "https://files.example/abc", "I am excited...\n\n---\nCV link: https://files.example/abc"},
		{"empty letter still gets link", "", "https://f/x", "\n\n---\nCV link: https://f/x"},
		{"angle brackets kept", "a<b and <Senior Engineer>", "", "a<b and <Senior Engineer>"},
		{
			"angle brackets kept with link",
			"Skills: C++ <templates>, a<b and x>y. Role: <Senior Engineer> in #team",
			"https://files.example/abc",
			"Skills: C++ <templates>, a<b and x>y. Role: <Senior Engineer> in #team\n\n---\nCV link: https://files.example/abc",
		},
		{"entities kept", "Tom &amp; Jerry <em>", "", "Tom &amp; Jerry <em>"},
		{"newlines kept", "line one\nline two", "", "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := map[string]string{FieldCoverLetter: tt.letter}
			got := compose(form, in, tt.url)
			if got[FieldCoverLetter] != tt.want {
				t.Errorf("cover_letter = %q, want %q", got[FieldCoverLetter], tt.want)
			}
			if in[FieldCoverLetter] != tt.letter {
				t.Error("compose must not modify its input")
			}
		})
	}
}

func TestEnrich(t *testing.T) {
	form, _ := testForms().Get(FormOrder)
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, time.July, 1, 23, 30, 0, 0, time.UTC)

	fields := map[string]string{"customer_name": "A"}
	enrich(form, fields, "", nil, now, loc)

	if got, want := fields[FieldTimestamp], "July 1, 2025 at 04:30 PM PDT"; got != want {
		t.Errorf("timestamp = %q, want %q", got, want)
	}
	if _, ok := fields[FieldProductName]; ok {
		t.Error("empty label must be omitted")
	}

	enrich(form, fields, "DivinaSafe™ Hemolancets", nil, now, loc)
	if fields[FieldProductName] != "DivinaSafe™ Hemolancets" {
		t.Errorf("product_name = %q", fields[FieldProductName])
	}
}
