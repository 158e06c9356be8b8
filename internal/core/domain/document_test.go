package domain

import (
	"errors"
	"testing"
)

func validDocument() *Document {
	return &Document{
		Title:          "contract.pdf",
		FileName:       "contract.pdf",
		Content:        []byte("%PDF-1.7 test"),
		ParticipantIDs: []int64{2, 3},
	}
}

func TestDocument_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Document)
		wantErr error
	}{
		{"valid", func(d *Document) {}, nil},
		{"missing file name", func(d *Document) { d.FileName = "  " }, ErrMissingArgument},
		{"empty content", func(d *Document) { d.Content = nil }, ErrInvalidArgument},
		{"too large", func(d *Document) { d.Content = make([]byte, MaxDocumentSize+1) }, ErrInvalidArgument},
		{"no participants", func(d *Document) { d.ParticipantIDs = nil }, ErrMissingArgument},
		{"non-positive participant", func(d *Document) { d.ParticipantIDs = []int64{0} }, ErrInvalidArgument},
		{"duplicate participant", func(d *Document) { d.ParticipantIDs = []int64{4, 4} }, ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDocument()
			tt.mutate(d)

			err := d.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocument_EncodedContent(t *testing.T) {
	d := &Document{Content: []byte("ABC")}
	if got := d.EncodedContent(); got != "QUJD" {
		t.Errorf("EncodedContent() = %q, want %q", got, "QUJD")
	}
}
