package common

import "context"

type ctxKey string

const (
	subjectKey     ctxKey = "auth/subject"
	subjectSlotKey ctxKey = "auth/subject-slot"
)

// WithSubject stores the authenticated token subject on the context. An
// enclosing WithSubjectSlot observes the value too.
func WithSubject(ctx context.Context, subject string) context.Context {
	if slot, ok := ctx.Value(subjectSlotKey).(*string); ok {
		*slot = subject
	}
	return context.WithValue(ctx, subjectKey, subject)
}

// WithSubjectSlot returns a context whose slot receives any subject set on a
// derived context. Request middleware reads it after the handler returns.
func WithSubjectSlot(ctx context.Context) (context.Context, *string) {
	slot := new(string)
	return context.WithValue(ctx, subjectSlotKey, slot), slot
}

// Subject extracts the authenticated token subject from the context if present.
func Subject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
