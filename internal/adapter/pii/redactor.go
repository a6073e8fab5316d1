// Package pii masks personal contact details in audit metadata.
package pii

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/V4T54L/vetclinic/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor replaces configured metadata keys with RedactedPlaceholder.
type Redactor struct {
	fields map[string]struct{}
	logger *slog.Logger
}

func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return &Redactor{fields: set, logger: logger}
}

// Redact rewrites event.Metadata in place. Keys are matched at any depth, so
// {"owner": {"email": ...}} is covered as well as top-level keys. Empty
// values are left as they are.
func (r *Redactor) Redact(event *domain.AuditEvent) error {
	if len(r.fields) == 0 || len(event.Metadata) == 0 {
		return nil
	}

	var doc map[string]any
	if err := json.Unmarshal(event.Metadata, &doc); err != nil {
		r.logger.Warn("audit metadata is not a JSON object, cannot redact", "event_id", event.ID, "error", err)
		return fmt.Errorf("redact event %s: %w", event.ID, err)
	}
	if !r.scrub(doc) {
		return nil
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redact event %s: %w", event.ID, err)
	}
	event.Metadata = out
	event.PIIRedacted = true
	return nil
}

// scrub masks matching keys in doc and reports whether anything changed.
func (r *Redactor) scrub(doc map[string]any) bool {
	changed := false
	for key, value := range doc {
		_, sensitive := r.fields[key]
		switch v := value.(type) {
		case map[string]any:
			if r.scrub(v) {
				changed = true
			}
		case string:
			if sensitive && v != "" {
				doc[key] = RedactedPlaceholder
				changed = true
			}
		case nil:
		default:
			if sensitive {
				doc[key] = RedactedPlaceholder
				changed = true
			}
		}
	}
	return changed
}
