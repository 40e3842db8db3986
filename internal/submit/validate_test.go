package submit

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_Fields(t *testing.T) {
	form, err := testForms().Get(FormContact)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		values    map[string]string
		wantField string
		wantCode  string
	}{
		{"valid", map[string]string{"name": "Sam", "email": "sam@example.com", "message": "Hi"}, "", ""},
		{"whitespace only is empty", map[string]string{"name": "   ", "email": "sam@example.com", "message": "Hi"}, "name", "VAL001"},
		{"missing message", map[string]string{"name": "Sam", "email": "sam@example.com"}, "message", "VAL001"},
		{"bad email", map[string]string{"name": "Sam", "email": "sam@", "message": "Hi"}, "email", "VAL002"},
		{"display name email", map[string]string{"name": "Sam", "email": "Sam <sam@example.com>", "message": "Hi"}, "email", "VAL002"},
		{"dotless domain", map[string]string{"name": "Sam", "email": "sam@localhost", "message": "Hi"}, "email", "VAL002"},
		{"too long", map[string]string{"name": strings.Repeat("x", 201), "email": "sam@example.com", "message": "Hi"}, "name", "VAL003"},
		{"unknown subject", map[string]string{"name": "Sam", "email": "sam@example.com", "subject": "Refunds", "message": "Hi"}, "subject", "VAL004"},
		{"known subject", map[string]string{"name": "Sam", "email": "sam@example.com", "subject": "Sales / Bulk Order", "message": "Hi"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(&Request{Form: form, Values: tt.values})
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Fields[0].Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Fields[0].Field, tt.wantField)
			}
			if verr.Fields[0].Code != tt.wantCode {
				t.Errorf("code = %q, want %q", verr.Fields[0].Code, tt.wantCode)
			}
		})
	}
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	form, _ := testForms().Get(FormJobApplication)

	_, err := Validate(&Request{Form: form, Values: map[string]string{}})

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	got := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		got[i] = f.Field
	}
	want := "first_name,last_name,email,resume"
	if strings.Join(got, ",") != want {
		t.Errorf("fields = %v, want %s", got, want)
	}
}

func TestValidate_Attachment(t *testing.T) {
	form, _ := testForms().Get(FormJobApplication)
	values := map[string]string{"first_name": "A", "last_name": "B", "email": "a@b.co"}

	tests := []struct {
		name    string
		att     *Attachment
		wantErr string
	}{
		{"pdf", &Attachment{Filename: "cv.pdf", Data: []byte("x")}, ""},
		{"upper-case docx", &Attachment{Filename: "CV.DOCX", Data: []byte("x")}, ""},
		{"missing", nil, "is required"},
		{"empty file", &Attachment{Filename: "cv.pdf"}, "empty"},
		{"wrong type", &Attachment{Filename: "cv.exe", Data: []byte("x")}, "Accepted file types"},
		{"too large", &Attachment{Filename: "cv.pdf", Data: make([]byte, 5<<20+1)}, "5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(&Request{Form: form, Values: values, Attachment: tt.att})
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TrimsValues(t *testing.T) {
	form, _ := testForms().Get(FormContact)
	got, err := Validate(&Request{Form: form, Values: map[string]string{
		"name": "  Sam\t", "email": " sam@example.com ", "message": "\nHi\n",
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "Sam" || got["email"] != "sam@example.com" || got["message"] != "Hi" {
		t.Errorf("values not trimmed: %q", got)
	}
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{5 << 20, "5 MB"},
		{1536 << 10, "1536 KB"},
		{512, "512 bytes"},
	}
	for _, tt := range tests {
		if got := humanSize(tt.n); got != tt.want {
			t.Errorf("humanSize(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
