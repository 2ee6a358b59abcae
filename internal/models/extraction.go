package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Source channels recorded on every stored booking.
const (
	SourceUpload = "upload"
	SourceEmail  = "email"
	SourceCLI    = "cli"
)

// ExtractionRequest is the transient input of one extraction job.
type ExtractionRequest struct {
	SourceText        string
	Category          string
	SourceDescription string
}

// ExtractionResult is the normalized output of one job. Every expected
// field is present in Fields; nil marks a value the document lacks.
type ExtractionResult struct {
	DocumentType string
	Fields       map[string]*string
	// Order is the field order used when encoding.
	Order []string
}

// Value returns the value of a field and whether it is non-null.
func (r *ExtractionResult) Value(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// MarshalJSON encodes the result as one flat object:
// {"documentType": "...", "<field>": "..."|null, ...} in schema order.
func (r ExtractionResult) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV := func(key string, value any) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}
	if err := writeKV("documentType", r.DocumentType); err != nil {
		return nil, err
	}
	written := make(map[string]bool, len(r.Order))
	for _, key := range r.Order {
		if written[key] {
			continue
		}
		written[key] = true
		buf.WriteByte(',')
		if err := writeKV(key, r.Fields[key]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
	Category    string
}

// EmailRequest is the payload posted by the inbound-mail webhook.
type EmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type EmailResponse struct {
	Success  bool              `json:"success"`
	ID       string            `json:"id,omitempty"`
	Category string            `json:"category,omitempty"`
	Result   *ExtractionResult `json:"fields,omitempty"`
	Error    string            `json:"error,omitempty"`
	Details  string            `json:"details,omitempty"`
}

// BookingRecord is one row in a category table.
type BookingRecord struct {
	ID                string             `json:"id" db:"id"`
	JobID             string             `json:"job_id" db:"job_id"`
	Category          string             `json:"category" db:"-"`
	Source            string             `json:"source" db:"source"`
	SourceDescription string             `json:"source_description" db:"source_description"`
	Sender            *string            `json:"sender,omitempty" db:"sender"`
	DocumentType      string             `json:"document_type" db:"document_type"`
	Fields            map[string]*string `json:"fields" db:"-"`
	RawReply          string             `json:"-" db:"raw_reply"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}
