package app

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/auth"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/config"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/feed"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/live"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/metrics"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/rbac"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/search"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/store"
	"github.com/Gagansidh-u/My-Webapp-sub000/internal/util"
)

type CreateThreadInput struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Text    string `json:"text" validate:"required,max=5000"`
}

type AppendMessageInput struct {
	Text string `json:"text" validate:"required,max=5000"`
}

type DevLoginInput struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
}

// ThreadDetail is what an opened thread looks like to its viewer.
type ThreadDetail struct {
	Thread       inquiry.Thread       `json:"thread"`
	Messages     []inquiry.Message    `json:"messages"`
	Capabilities inquiry.Capabilities `json:"capabilities"`
}

// Notifier sends best-effort notifications; it must not block.
type Notifier interface {
	NotifyInquiryCreated(thread inquiry.Thread, first inquiry.Message)
	NotifyReply(thread inquiry.Thread, message inquiry.Message)
}

type Deps struct {
	Store       store.ThreadStore
	Bus         feed.Bus
	Search      *search.Service
	Notifier    Notifier
	Diagnostics *Diagnostics
	Logger      zerolog.Logger
}

type Service struct {
	cfg      config.Config
	store    store.ThreadStore
	bus      feed.Bus
	sync     *live.Synchronizer
	search   *search.Service
	notifier Notifier
	diag     *Diagnostics
	machine  inquiry.Machine
	limiter  *writeLimiter
	validate *validator.Validate
	log      zerolog.Logger
}

func New(cfg config.Config, deps Deps) *Service {
	bus := deps.Bus
	if bus == nil {
		bus = feed.NewLocalBus()
	}
	searchSvc := deps.Search
	if searchSvc == nil {
		searchSvc = search.NewService(nil, deps.Store, deps.Logger)
	}
	return &Service{
		cfg:      cfg,
		store:    deps.Store,
		bus:      bus,
		sync:     live.NewSynchronizer(deps.Store, bus, deps.Logger),
		search:   searchSvc,
		notifier: deps.Notifier,
		diag:     deps.Diagnostics,
		machine:  inquiry.Machine{AllowReopen: cfg.AllowReopen},
		limiter:  newWriteLimiter(cfg.WriteRatePerSec, cfg.WriteBurst),
		validate: newValidator(),
		log:      deps.Logger.With().Str("component", "inquiry-service").Logger(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct validation and reports the first failure as an
// inquiry.ValidationError.
func (s *Service) validateInput(input any) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return inquiry.Invalid("body", err.Error())
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return inquiry.Invalid(fe.Field(), "must not be empty")
	case "max":
		return inquiry.Invalid(fe.Field(), "must be at most "+fe.Param()+" characters")
	case "email":
		return inquiry.Invalid(fe.Field(), "must be a valid email address")
	default:
		return inquiry.Invalid(fe.Field(), "is invalid")
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Capabilities(thread inquiry.Thread, id inquiry.Identity) inquiry.Capabilities {
	return s.machine.Capabilities(thread, id)
}

// IdentityFromToken verifies a bearer token from the auth provider.
func (s *Service) IdentityFromToken(token string) (inquiry.Identity, error) {
	return auth.ParseToken([]byte(s.cfg.JWTSecret), token)
}

// DevLogin issues a token without an external provider. Only enabled for
// local development; the identity is derived from the email so repeated
// logins map to the same user.
func (s *Service) DevLogin(input DevLoginInput) (string, inquiry.Identity, error) {
	if !s.cfg.DevLogin {
		return "", inquiry.Identity{}, ErrDevLoginDisabled
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := s.validateInput(input); err != nil {
		return "", inquiry.Identity{}, err
	}
	id := inquiry.Identity{
		UserID: "usr_" + strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+input.Email)).String(), "-", ""),
		Name:   input.Name,
		Email:  input.Email,
		Role:   inquiry.RoleUser,
	}
	if s.cfg.IsAdminEmail(input.Email) {
		id.Role = inquiry.RoleAdmin
	}
	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), id, s.cfg.TokenTTL)
	if err != nil {
		return "", inquiry.Identity{}, err
	}
	return token, id, nil
}

// denied records a rejected operation and returns ErrPermissionDenied.
func (s *Service) denied(ctx context.Context, op string, id inquiry.Identity, threadID string, payload any) error {
	metrics.PermissionDenied.WithLabelValues(op).Inc()
	err := fmt.Errorf("%s: %w", op, inquiry.ErrPermissionDenied)
	s.diag.Publish(Diagnostic{
		Operation: op,
		Path:      requestPath(ctx),
		RequestID: requestID(ctx),
		ActorID:   id.UserID,
		Role:      id.Role,
		ThreadID:  threadID,
		Payload:   payload,
		Err:       err,
		At:        time.Now().UTC(),
	})
	return err
}

// storeDenied forwards a store-side access rejection to diagnostics.
func (s *Service) storeDenied(ctx context.Context, op string, id inquiry.Identity, threadID string, payload any, err error) {
	if !errors.Is(err, inquiry.ErrPermissionDenied) {
		return
	}
	metrics.PermissionDenied.WithLabelValues(op).Inc()
	s.diag.Publish(Diagnostic{
		Operation: op,
		Path:      requestPath(ctx),
		RequestID: requestID(ctx),
		ActorID:   id.UserID,
		Role:      id.Role,
		ThreadID:  threadID,
		Payload:   payload,
		Err:       err,
		At:        time.Now().UTC(),
	})
}

// publish notifies live views. The write already succeeded, so a feed
// failure is logged and not returned.
func (s *Service) publish(ctx context.Context, kind inquiry.ChangeKind, thread inquiry.Thread) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	change := inquiry.Change{
		Kind:     kind,
		ThreadID: thread.ID,
		OwnerID:  thread.OwnerID,
		Version:  thread.Version,
		At:       time.Now().UTC(),
	}
	if err := s.bus.Publish(ctx, change); err != nil {
		s.log.Warn().Err(err).Str("thread_id", thread.ID).Str("kind", string(kind)).Msg("publish change failed")
	}
}

// loadThread fetches a thread and checks that id may perform action on it.
func (s *Service) loadThread(ctx context.Context, op string, id inquiry.Identity, threadID string, action rbac.Action) (inquiry.Thread, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return inquiry.Thread{}, inquiry.Invalid("threadId", "must not be empty")
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		s.storeDenied(ctx, op, id, threadID, nil, err)
		return inquiry.Thread{}, fmt.Errorf("%s: %w", op, err)
	}
	if !rbac.CanOnThread(id, action, thread) {
		return inquiry.Thread{}, s.denied(ctx, op, id, threadID, nil)
	}
	return thread, nil
}

func (s *Service) CreateThread(ctx context.Context, id inquiry.Identity, input CreateThreadInput) (ThreadDetail, error) {
	const op = "create_thread"
	if !rbac.Can(id.Role, rbac.ActionCreate) {
		return ThreadDetail{}, s.denied(ctx, op, id, "", input)
	}
	input.Subject = strings.TrimSpace(input.Subject)
	input.Text = strings.TrimSpace(input.Text)
	if err := s.validateInput(input); err != nil {
		return ThreadDetail{}, err
	}
	if !s.limiter.Allow(id.UserID) {
		return ThreadDetail{}, ErrRateLimited
	}

	status, err := s.machine.Apply("", inquiry.EventCreated)
	if err != nil {
		return ThreadDetail{}, err
	}
	thread, first, err := s.store.CreateThread(ctx, inquiry.Thread{
		ID:         util.NewID("thr"),
		OwnerID:    id.UserID,
		OwnerName:  id.Name,
		OwnerEmail: id.Email,
		Subject:    input.Subject,
		Status:     status,
	}, inquiry.Message{
		ID:         util.NewID("msg"),
		Text:       input.Text,
		SenderID:   id.UserID,
		SenderName: id.Name,
		SenderRole: id.Role,
	})
	if err != nil {
		s.storeDenied(ctx, op, id, "", input, err)
		return ThreadDetail{}, fmt.Errorf("create thread: %w", err)
	}

	metrics.ThreadsCreated.Inc()
	metrics.MessagesAppended.WithLabelValues(string(first.SenderRole)).Inc()
	s.log.Info().Str("thread_id", thread.ID).Str("owner_id", thread.OwnerID).Msg("thread created")

	s.publish(ctx, inquiry.ChangeCreated, thread)
	s.search.IndexThread(thread)
	if s.notifier != nil {
		s.notifier.NotifyInquiryCreated(thread, first)
	}
	return ThreadDetail{
		Thread:       thread,
		Messages:     []inquiry.Message{first},
		Capabilities: s.machine.Capabilities(thread, id),
	}, nil
}

// AppendMessage adds a message and applies the sender's reply transition in
// one store write. Empty text is rejected before the store is touched.
func (s *Service) AppendMessage(ctx context.Context, id inquiry.Identity, threadID string, input AppendMessageInput) (inquiry.Message, error) {
	const op = "append_message"
	input.Text = strings.TrimSpace(input.Text)
	if err := s.validateInput(input); err != nil {
		return inquiry.Message{}, err
	}

	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionReply)
	if err != nil {
		return inquiry.Message{}, err
	}
	if !inquiry.CanCompose(thread.Status) {
		return inquiry.Message{}, inquiry.ErrThreadResolved
	}
	if !s.limiter.Allow(id.UserID) {
		return inquiry.Message{}, ErrRateLimited
	}

	var previous inquiry.Status
	event := inquiry.ReplyEvent(id.Role)
	updated, message, err := s.store.AppendMessage(ctx, inquiry.Message{
		ID:         util.NewID("msg"),
		ThreadID:   thread.ID,
		Text:       input.Text,
		SenderID:   id.UserID,
		SenderName: id.Name,
		SenderRole: id.Role,
	}, func(current inquiry.Status) (inquiry.Status, error) {
		previous = current
		return s.machine.Apply(current, event)
	})
	if err != nil {
		switch {
		case errors.Is(err, inquiry.ErrNotFound),
			errors.Is(err, inquiry.ErrThreadResolved),
			errors.Is(err, inquiry.ErrInvalidTransition),
			inquiry.IsValidation(err):
			return inquiry.Message{}, err
		}
		s.storeDenied(ctx, op, id, thread.ID, input, err)
		s.log.Error().Err(err).Str("thread_id", thread.ID).Msg("append failed")
		return inquiry.Message{}, fmt.Errorf("%w: %w", inquiry.ErrAppendFailed, err)
	}

	metrics.MessagesAppended.WithLabelValues(string(message.SenderRole)).Inc()
	metrics.RecordTransition(string(previous), string(updated.Status))

	s.publish(ctx, inquiry.ChangeAppended, updated)
	s.search.IndexThread(updated)
	if s.notifier != nil {
		s.notifier.NotifyReply(updated, message)
	}
	return message, nil
}

// OpenThread returns a thread with its messages. An admin opening the thread
// marks it as viewed.
func (s *Service) OpenThread(ctx context.Context, id inquiry.Identity, threadID string) (ThreadDetail, error) {
	const op = "open_thread"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionRead)
	if err != nil {
		return ThreadDetail{}, err
	}

	if id.IsAdmin() {
		viewed, err := s.applyEvent(ctx, op, id, thread.ID, inquiry.EventAdminViewed)
		if err != nil {
			return ThreadDetail{}, err
		}
		thread = viewed
	}

	messages, err := s.store.ListMessages(ctx, thread.ID)
	if err != nil {
		return ThreadDetail{}, fmt.Errorf("list messages: %w", err)
	}
	inquiry.SortMessages(messages)
	return ThreadDetail{
		Thread:       thread,
		Messages:     messages,
		Capabilities: s.machine.Capabilities(thread, id),
	}, nil
}

func (s *Service) ResolveThread(ctx context.Context, id inquiry.Identity, threadID string) (inquiry.Thread, error) {
	const op = "resolve_thread"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionResolve)
	if err != nil {
		return inquiry.Thread{}, err
	}
	return s.applyEvent(ctx, op, id, thread.ID, inquiry.EventResolved)
}

func (s *Service) ReopenThread(ctx context.Context, id inquiry.Identity, threadID string) (inquiry.Thread, error) {
	const op = "reopen_thread"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionReopen)
	if err != nil {
		return inquiry.Thread{}, err
	}
	return s.applyEvent(ctx, op, id, thread.ID, inquiry.EventReopened)
}

// applyEvent runs a status-only transition and publishes it when it changed
// anything.
func (s *Service) applyEvent(ctx context.Context, op string, id inquiry.Identity, threadID string, ev inquiry.Event) (inquiry.Thread, error) {
	thread, previous, changed, err := s.store.UpdateStatus(ctx, threadID, func(current inquiry.Status) (inquiry.Status, error) {
		return s.machine.Apply(current, ev)
	})
	if err != nil {
		s.storeDenied(ctx, op, id, threadID, ev, err)
		return inquiry.Thread{}, fmt.Errorf("%s: %w", op, err)
	}
	if !changed {
		return thread, nil
	}
	metrics.RecordTransition(string(previous), string(thread.Status))
	s.log.Info().
		Str("thread_id", thread.ID).
		Str("from", string(previous)).
		Str("to", string(thread.Status)).
		Str("actor_id", id.UserID).
		Msg("thread status changed")
	s.publish(ctx, inquiry.ChangeStatus, thread)
	s.search.IndexThread(thread)
	return thread, nil
}

func (s *Service) DeleteThread(ctx context.Context, id inquiry.Identity, threadID string) error {
	const op = "delete_thread"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionDelete)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteThread(ctx, thread.ID)
	if err != nil {
		s.storeDenied(ctx, op, id, thread.ID, nil, err)
		return fmt.Errorf("delete thread: %w", err)
	}
	metrics.ThreadsDeleted.Inc()
	s.log.Info().Str("thread_id", deleted.ID).Str("actor_id", id.UserID).Msg("thread deleted")
	s.publish(ctx, inquiry.ChangeDeleted, deleted)
	s.search.DeleteThread(deleted.ID)
	return nil
}

// ListThreads returns the caller's scope (everything for admins) narrowed by
// filter, newest first.
func (s *Service) ListThreads(ctx context.Context, id inquiry.Identity, filter inquiry.Filter) ([]inquiry.Thread, error) {
	const op = "list_threads"
	if !rbac.Can(id.Role, rbac.ActionRead) {
		return nil, s.denied(ctx, op, id, "", filter)
	}
	scope := live.ScopeFor(id)
	threads, err := s.store.ListThreads(ctx, scope.OwnerID)
	if err != nil {
		s.storeDenied(ctx, op, id, "", filter, err)
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return inquiry.Project(threads, filter), nil
}

func (s *Service) ListMessages(ctx context.Context, id inquiry.Identity, threadID string) ([]inquiry.Message, error) {
	const op = "list_messages"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, thread.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	inquiry.SortMessages(messages)
	return messages, nil
}

func (s *Service) Search(ctx context.Context, id inquiry.Identity, q search.Query) (search.Response, error) {
	const op = "search_threads"
	if !rbac.Can(id.Role, rbac.ActionRead) {
		return search.Response{}, s.denied(ctx, op, id, "", q.Text)
	}
	q.OwnerID = live.ScopeFor(id).OwnerID
	resp, err := s.search.Search(ctx, q)
	if err != nil {
		return search.Response{}, err
	}
	if resp.Threads == nil {
		resp.Threads = []inquiry.Thread{}
	}
	return resp, nil
}

// SubscribeThreads streams the caller's thread list through filter.
func (s *Service) SubscribeThreads(ctx context.Context, id inquiry.Identity, filter inquiry.Filter) (*live.ThreadView, error) {
	const op = "subscribe_threads"
	if !rbac.Can(id.Role, rbac.ActionRead) {
		return nil, s.denied(ctx, op, id, "", filter)
	}
	sub, err := s.sync.SubscribeThreads(ctx, live.ScopeFor(id))
	if err != nil {
		return nil, err
	}
	return live.NewThreadView(ctx, sub, filter), nil
}

func (s *Service) SubscribeMessages(ctx context.Context, id inquiry.Identity, threadID string) (*live.Subscription[[]inquiry.Message], error) {
	const op = "subscribe_messages"
	thread, err := s.loadThread(ctx, op, id, threadID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	return s.sync.SubscribeMessages(ctx, thread.ID)
}
