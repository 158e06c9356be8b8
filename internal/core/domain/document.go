package domain

import (
	"encoding/base64"
	"strings"
)

// MaxDocumentSize is the largest file accepted for signing (10 MiB).
const MaxDocumentSize = 10 << 20

// Identity is the portal identity returned after a successful login.
type Identity struct {
	UserID int64  `json:"user_id"`
	Nonce  string `json:"-"`
}

// Document is a file submitted to the portal together with the creator's
// signature and the list of co-signing participants.
type Document struct {
	Title          string  `json:"title"`
	FileName       string  `json:"file_name"`
	Content        []byte  `json:"-"`
	ParticipantIDs []int64 `json:"participant_user_ids"`
}

// Validate checks the document before it is signed.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.FileName) == "" {
		return ErrMissingArgument.WithDetails("file name is required")
	}
	if len(d.Content) == 0 {
		return ErrInvalidArgument.WithDetails("document content is empty")
	}
	if len(d.Content) > MaxDocumentSize {
		return ErrInvalidArgument.WithDetails("document exceeds maximum size")
	}
	if len(d.ParticipantIDs) == 0 {
		return ErrMissingArgument.WithDetails("at least one participant is required")
	}
	seen := make(map[int64]struct{}, len(d.ParticipantIDs))
	for _, id := range d.ParticipantIDs {
		if id <= 0 {
			return ErrInvalidArgument.WithDetails("participant ids must be positive")
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidArgument.WithDetails("duplicate participant id")
		}
		seen[id] = struct{}{}
	}
	return nil
}

// EncodedContent returns the file bytes as standard base64, which is
// the payload handed to the agent.
func (d *Document) EncodedContent() string {
	return base64.StdEncoding.EncodeToString(d.Content)
}

// SignedDocument is the portal's record of a document after signing.
type SignedDocument struct {
	DocumentID     int64 `json:"document_id"`
	SignatureBytes int   `json:"signature_len,omitempty"`
}
