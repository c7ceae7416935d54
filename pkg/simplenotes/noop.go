package simplenotes

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) NoteCreated(ctx context.Context, note *Note) error { return nil }
func (n *NoopEventSink) NoteUpdated(ctx context.Context, note *Note) error { return nil }
func (n *NoopEventSink) NoteDeleted(ctx context.Context, noteID uuid.UUID) error { return nil }
func (n *NoopEventSink) ImageUploaded(ctx context.Context, image *Image) error { return nil }
func (n *NoopEventSink) ImageDeleted(ctx context.Context, image *Image) error { return nil }
func (n *NoopEventSink) BlobOrphaned(ctx context.Context, objectName string, cause error) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// NoteCreated logs the note creation event
func (l *LoggingEventSink) NoteCreated(ctx context.Context, note *Note) error {
	l.logger.InfoContext(ctx, "Note created", "note_id", note.ID, "tags", len(note.Tags))
	return nil
}

// NoteUpdated logs the note update event
func (l *LoggingEventSink) NoteUpdated(ctx context.Context, note *Note) error {
	l.logger.InfoContext(ctx, "Note updated", "note_id", note.ID, "version", note.Version)
	return nil
}

// NoteDeleted logs the note deletion event
func (l *LoggingEventSink) NoteDeleted(ctx context.Context, noteID uuid.UUID) error {
	l.logger.InfoContext(ctx, "Note deleted", "note_id", noteID)
	return nil
}

// ImageUploaded logs the image upload event
func (l *LoggingEventSink) ImageUploaded(ctx context.Context, image *Image) error {
	l.logger.InfoContext(ctx, "Image uploaded", "image_id", image.ID, "note_id", image.NoteID, "short_url", image.ShortURL)
	return nil
}

// ImageDeleted logs the image deletion event
func (l *LoggingEventSink) ImageDeleted(ctx context.Context, image *Image) error {
	l.logger.InfoContext(ctx, "Image deleted", "image_id", image.ID, "note_id", image.NoteID)
	return nil
}

// BlobOrphaned logs a blob left behind by a failed compensation
func (l *LoggingEventSink) BlobOrphaned(ctx context.Context, objectName string, cause error) error {
	l.logger.ErrorContext(ctx, "Blob orphaned", "object", objectName, "error", cause)
	return nil
}

// MultiEventSink fans events out to several sinks. Every sink sees every
// event; errors are joined.
type MultiEventSink []EventSink

// NewMultiEventSink combines sinks, skipping nils.
func NewMultiEventSink(sinks ...EventSink) EventSink {
	out := make(MultiEventSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m MultiEventSink) each(fn func(EventSink) error) error {
	var errs []error
	for _, s := range m {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiEventSink) NoteCreated(ctx context.Context, note *Note) error {
	return m.each(func(s EventSink) error { return s.NoteCreated(ctx, note) })
}

func (m MultiEventSink) NoteUpdated(ctx context.Context, note *Note) error {
	return m.each(func(s EventSink) error { return s.NoteUpdated(ctx, note) })
}

func (m MultiEventSink) NoteDeleted(ctx context.Context, noteID uuid.UUID) error {
	return m.each(func(s EventSink) error { return s.NoteDeleted(ctx, noteID) })
}

func (m MultiEventSink) ImageUploaded(ctx context.Context, image *Image) error {
	return m.each(func(s EventSink) error { return s.ImageUploaded(ctx, image) })
}

func (m MultiEventSink) ImageDeleted(ctx context.Context, image *Image) error {
	return m.each(func(s EventSink) error { return s.ImageDeleted(ctx, image) })
}

func (m MultiEventSink) BlobOrphaned(ctx context.Context, objectName string, cause error) error {
	return m.each(func(s EventSink) error { return s.BlobOrphaned(ctx, objectName, cause) })
}

// noopCache never holds anything.
type noopCache struct{}

func (noopCache) Get(ctx context.Context, shortURL string) (*Image, error) { return nil, ErrCacheMiss }
func (noopCache) Set(ctx context.Context, image *Image) error { return nil }
func (noopCache) Delete(ctx context.Context, shortURL string) error { return nil }
