package pii

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/vetclinic/internal/domain"
)

func TestRedactor_Redact(t *testing.T) {
	r := NewRedactor([]string{"owner_email", "owner_phone", "email"}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	cases := map[string]struct {
		in       string
		want     string
		redacted bool
	}{
		"top-level owner email": {
			in:       `{"owner_email": "vet@example.com", "subdomain": "clinic3"}`,
			want:     `{"owner_email":"[REDACTED]","subdomain":"clinic3"}`,
			redacted: true,
		},
		"email and phone": {
			in:       `{"owner_email": "vet@example.com", "owner_phone": "+34 600 000 000"}`,
			want:     `{"owner_email":"[REDACTED]","owner_phone":"[REDACTED]"}`,
			redacted: true,
		},
		"nested staff email": {
			in:       `{"staff": {"email": "nurse@example.com", "role": "nurse"}}`,
			want:     `{"staff":{"email":"[REDACTED]","role":"nurse"}}`,
			redacted: true,
		},
		"non-string value": {
			in:       `{"owner_phone": 34600000000}`,
			want:     `{"owner_phone":"[REDACTED]"}`,
			redacted: true,
		},
		"empty and null values are kept": {
			in:   `{"owner_phone": "", "owner_email": null, "from": "active"}`,
			want: `{"owner_phone":"","owner_email":null,"from":"active"}`,
		},
		"status change only": {
			in:   `{"from": "active", "to": "suspended"}`,
			want: `{"from":"active","to":"suspended"}`,
		},
		"empty object": {
			in:   `{}`,
			want: `{}`,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			event := &domain.AuditEvent{ID: "evt-1", Metadata: []byte(tc.in)}
			require.NoError(t, r.Redact(event))
			assert.JSONEq(t, tc.want, string(event.Metadata))
			assert.Equal(t, tc.redacted, event.PIIRedacted)
		})
	}
}

func TestRedactor_RejectsNonObjectMetadata(t *testing.T) {
	r := NewRedactor([]string{"owner_email"}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	event := &domain.AuditEvent{ID: "evt-2", Metadata: []byte(`{"owner_email": "vet@example.com"`)}
	assert.Error(t, r.Redact(event))
	assert.False(t, event.PIIRedacted)
}

func TestRedactor_NoFieldsConfigured(t *testing.T) {
	r := NewRedactor([]string{"", ""}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	event := &domain.AuditEvent{Metadata: []byte(`{"owner_email": "vet@example.com"}`)}
	require.NoError(t, r.Redact(event))
	assert.False(t, event.PIIRedacted)
}
