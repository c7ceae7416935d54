package simplenotes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-notes/pkg/simplenotes/urlstrategy"
)

// DefaultFilesBaseURL is where images are served when the blob store cannot
// produce a URL of its own.
const DefaultFilesBaseURL = "/api/v1"

// Service is the entry point used by the HTTP layer and the admin tooling.
type Service interface {
	// Note operations
	CreateNote(ctx context.Context, req CreateNoteRequest) (*Note, error)
	GetNote(ctx context.Context, id uuid.UUID) (*Note, error)
	ListNotes(ctx context.Context, req ListNotesRequest) ([]*Note, error)
	PatchNote(ctx context.Context, req PatchNoteRequest) (*Note, error)
	ReplaceNote(ctx context.Context, req ReplaceNoteRequest) (*Note, error)
	DeleteNote(ctx context.Context, id uuid.UUID) error

	// Tag operations
	CreateTag(ctx context.Context, name string) (*Tag, error)
	GetTag(ctx context.Context, id uuid.UUID) (*Tag, error)
	ListTags(ctx context.Context, req ListTagsRequest) ([]*Tag, error)
	RenameTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error)
	DeleteTag(ctx context.Context, id uuid.UUID) error

	// Image operations
	UploadImage(ctx context.Context, req UploadImageRequest) (*Image, error)
	GetImage(ctx context.Context, id uuid.UUID) (*Image, error)
	ListImages(ctx context.Context, noteID uuid.UUID) ([]*Image, error)
	DeleteImage(ctx context.Context, id uuid.UUID) error
	GetImageByShortURL(ctx context.Context, shortURL string) (*Image, error)
	OpenImage(ctx context.Context, noteID uuid.UUID, filename string) (io.ReadCloser, error)

	// Reconcile finds and optionally repairs blobs and rows that lost their
	// counterpart.
	Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileResult, error)
}

// core carries what every component shares.
type core struct {
	repo    Repository
	events  EventSink
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time
}

func (c *core) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// emit fires an event. Sink failures are logged and never fail the operation.
func (c *core) emit(ctx context.Context, event string, fn func(EventSink) error) {
	if err := fn(c.events); err != nil {
		c.logger.WarnContext(ctx, "Event sink failed", "event", event, "error", err)
	}
}

func (c *core) registry(repo Repository) *TagRegistry {
	return NewTagRegistry(repo, c.logger)
}

// service implements the Service interface
type service struct {
	*NoteService
	*ImageService
	core *core
}

type settings struct {
	repository          Repository
	blobStoreName       string
	blobStore           BlobStore
	eventSink           EventSink
	logger              *slog.Logger
	urls                URLStrategy
	cache               ShortURLCache
	maxProbes           int
	maxInsertAttempts   int
	operationTimeout    time.Duration
	compensationTimeout time.Duration
	clock               func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*settings)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *settings) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob store holding image bytes. name is reported in
// storage errors.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *settings) {
		s.blobStoreName = name
		s.blobStore = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *settings) {
		s.eventSink = sink
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithURLStrategy sets how image URLs are computed
func WithURLStrategy(strategy URLStrategy) Option {
	return func(s *settings) {
		s.urls = strategy
	}
}

// WithShortURLCache sets the cache consulted by GetImageByShortURL
func WithShortURLCache(cache ShortURLCache) Option {
	return func(s *settings) {
		s.cache = cache
	}
}

// WithShortURLMaxProbes bounds the short url candidates tried per upload
func WithShortURLMaxProbes(n int) Option {
	return func(s *settings) {
		s.maxProbes = n
	}
}

// WithMaxInsertAttempts bounds image row inserts retried after a short url
// race
func WithMaxInsertAttempts(n int) Option {
	return func(s *settings) {
		s.maxInsertAttempts = n
	}
}

// WithOperationTimeout bounds every service call. Zero disables the bound.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.operationTimeout = d
	}
}

// WithCompensationTimeout bounds the cleanup delete run after a failed upload
func WithCompensationTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.compensationTimeout = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.clock = now
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &settings{
		blobStoreName:       "default",
		maxProbes:           DefaultShortURLMaxProbes,
		maxInsertAttempts:   DefaultMaxInsertAttempts,
		compensationTimeout: DefaultCompensationTimeout,
	}

	for _, option := range options {
		if option != nil {
			option(s)
		}
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.blobStore == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.clock == nil {
		s.clock = func() time.Time { return time.Now().UTC() }
	}
	if s.urls == nil {
		if delegated, ok := s.blobStore.(URLStrategy); ok {
			s.urls = delegated
		} else {
			s.urls = urlstrategy.NewContentBased(DefaultFilesBaseURL)
		}
	}

	c := &core{
		repo:    s.repository,
		events:  s.eventSink,
		logger:  s.logger,
		timeout: s.operationTimeout,
		now:     s.clock,
	}

	images := &ImageService{
		core:                c,
		store:               s.blobStore,
		storeName:           s.blobStoreName,
		urls:                s.urls,
		cache:               s.cache,
		maxProbes:           s.maxProbes,
		maxInsertAttempts:   s.maxInsertAttempts,
		compensationTimeout: s.compensationTimeout,
	}
	if images.maxInsertAttempts <= 0 {
		images.maxInsertAttempts = 1
	}

	return &service{
		NoteService:  &NoteService{core: c, images: images},
		ImageService: images,
		core:         c,
	}, nil
}

// Tag operations

func (s *service) CreateTag(ctx context.Context, name string) (*Tag, error) {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()
	return s.core.registry(s.core.repo).Create(ctx, name)
}

func (s *service) GetTag(ctx context.Context, id uuid.UUID) (*Tag, error) {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()
	tag, err := s.core.repo.GetTag(ctx, id)
	if err != nil {
		return nil, persistenceError("tag", "get", id, err)
	}
	return tag, nil
}

func (s *service) ListTags(ctx context.Context, req ListTagsRequest) ([]*Tag, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()
	tags, err := s.core.repo.ListTags(ctx, req.Offset, normalizeLimit(req.Limit))
	if err != nil {
		return nil, persistenceError("tag", "list", uuid.Nil, err)
	}
	return tags, nil
}

func (s *service) RenameTag(ctx context.Context, id uuid.UUID, name string) (*Tag, error) {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()
	return s.core.registry(s.core.repo).Rename(ctx, id, name)
}

func (s *service) DeleteTag(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.core.withTimeout(ctx)
	defer cancel()
	if err := s.core.repo.DeleteTag(ctx, id); err != nil {
		return persistenceError("tag", "delete", id, err)
	}
	return nil
}
