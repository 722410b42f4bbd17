package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/sundayezeilo/shortlink/codegen"
	"github.com/sundayezeilo/shortlink/internal/errx"
)

const (
	DefaultListLimit   = 100
	MaxListLimit       = 1000
	MaxURLLength       = 2048
	DefaultCodeRetries = 1
)

// ErrCodeExists is the cause attached to Conflict errors from Create.
var ErrCodeExists = errors.New("code already exists")

// CreateLinkRequest represents the parameters for creating a new link.
type CreateLinkRequest struct {
	Code   string // optional; generated when empty
	Target string
}

// ListOptions paginates List. Zero values select the defaults.
type ListOptions struct {
	Limit int
	Skip  int
}

// Recorder is notified of link lifecycle events.
type Recorder interface {
	LinkCreated()
	LinkClicked()
	LinkDeleted()
}

type nopRecorder struct{}

func (nopRecorder) LinkCreated() {}
func (nopRecorder) LinkClicked() {}
func (nopRecorder) LinkDeleted() {}

// Service defines the link operations exposed to the HTTP and admin layers.
type Service interface {
	Create(ctx context.Context, req CreateLinkRequest) (Link, error)
	Lookup(ctx context.Context, code string) (Link, error)
	Stats(ctx context.Context, code string) (Link, error)
	IncrementClicks(ctx context.Context, code string) (Link, error)
	Update(ctx context.Context, code, target string) (Link, error)
	Delete(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]Link, error)
}

type service struct {
	repo        Repository
	codes       codegen.Generator
	codeLength  int
	codeRetries int
	recorder    Recorder
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	CodeGenerator codegen.Generator
	CodeLength    int
	// CodeRetries is the number of generated codes tried before a conflict
	// is returned. Caller supplied codes are always tried once.
	CodeRetries int
	Recorder    Recorder
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	codes := config.CodeGenerator
	if codes == nil {
		codes = codegen.NewBase62()
	}

	length := config.CodeLength
	if length < codegen.MinLength || length > codegen.MaxLength {
		length = codegen.DefaultLength
	}

	retries := config.CodeRetries
	if retries <= 0 {
		retries = DefaultCodeRetries
	}

	recorder := config.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &service{
		repo:        repo,
		codes:       codes,
		codeLength:  length,
		codeRetries: retries,
		recorder:    recorder,
	}
}

func (s *service) Create(ctx context.Context, req CreateLinkRequest) (Link, error) {
	const op = "links.service.Create"

	if err := validateTarget(req.Target); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	if req.Code != "" {
		if !codegen.Valid(req.Code) {
			return Link{}, errx.E(op, errx.Invalid, fmt.Errorf(
				"code must be %d-%d alphanumeric characters", codegen.MinLength, codegen.MaxLength))
		}
		return s.insert(ctx, op, req.Code, req.Target)
	}

	var err error
	for range s.codeRetries {
		var code string
		code, err = s.codes.Generate(s.codeLength)
		if err != nil {
			return Link{}, errx.E(op, errx.Internal, err)
		}

		var link Link
		link, err = s.insert(ctx, op, code, req.Target)
		if err == nil {
			return link, nil
		}
		if !errx.Is(err, errx.Conflict) {
			return Link{}, err
		}
	}
	return Link{}, err
}

func (s *service) insert(ctx context.Context, op, code, target string) (Link, error) {
	link, err := s.repo.Create(ctx, Link{Code: code, Target: target})
	if err != nil {
		if errx.Is(err, errx.Conflict) {
			return Link{}, errx.E(op, errx.Conflict, fmt.Errorf("%w: %s", ErrCodeExists, code))
		}
		return Link{}, errx.Wrap(op, err)
	}
	s.recorder.LinkCreated()
	return link, nil
}

func (s *service) Lookup(ctx context.Context, code string) (Link, error) {
	return s.get(ctx, "links.service.Lookup", code)
}

func (s *service) Stats(ctx context.Context, code string) (Link, error) {
	return s.get(ctx, "links.service.Stats", code)
}

func (s *service) get(ctx context.Context, op, code string) (Link, error) {
	if err := checkCode(code); err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

// IncrementClicks records one redirect through code and returns the link as
// stored after the increment.
func (s *service) IncrementClicks(ctx context.Context, code string) (Link, error) {
	const op = "links.service.IncrementClicks"

	if err := checkCode(code); err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}

	link, err := s.repo.IncrementClicks(ctx, code)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	s.recorder.LinkClicked()
	return link, nil
}

func (s *service) Update(ctx context.Context, code, target string) (Link, error) {
	const op = "links.service.Update"

	if err := checkCode(code); err != nil {
		return Link{}, errx.E(op, errx.KindOf(err), err)
	}
	if err := validateTarget(target); err != nil {
		return Link{}, errx.E(op, errx.Invalid, err)
	}

	link, err := s.repo.UpdateTarget(ctx, code, target)
	if err != nil {
		return Link{}, errx.Wrap(op, err)
	}
	return link, nil
}

// Delete removes the link for code and reports whether one existed.
func (s *service) Delete(ctx context.Context, code string) (bool, error) {
	const op = "links.service.Delete"

	if err := checkCode(code); err != nil {
		if errx.Is(err, errx.NotFound) {
			return false, nil
		}
		return false, errx.E(op, errx.KindOf(err), err)
	}

	removed, err := s.repo.Delete(ctx, code)
	if err != nil {
		return false, errx.Wrap(op, err)
	}
	if removed {
		s.recorder.LinkDeleted()
	}
	return removed, nil
}

// List returns links newest first.
func (s *service) List(ctx context.Context, opts ListOptions) ([]Link, error) {
	const op = "links.service.List"

	limit := opts.Limit
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	skip := max(opts.Skip, 0)

	links, err := s.repo.List(ctx, limit, skip)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return links, nil
}

// IsValidURL reports whether target is a well-formed absolute URL that the
// service would accept.
func IsValidURL(target string) bool {
	return validateTarget(target) == nil
}

func validateTarget(target string) error {
	if target == "" {
		return errors.New("target url cannot be empty")
	}
	if len(target) > MaxURLLength {
		return fmt.Errorf("target url too long (max %d characters)", MaxURLLength)
	}

	u, err := url.Parse(target)
	if err != nil {
		return errors.New("invalid target url format")
	}
	if u.Scheme == "" {
		return errors.New("target url must include a scheme")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("target url scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("target url must include a host")
	}
	return nil
}

// checkCode rejects empty codes as Invalid. Malformed codes are NotFound:
// the store never holds them.
func checkCode(code string) error {
	if code == "" {
		return errx.E("", errx.Invalid, errors.New("code cannot be empty"))
	}
	if !codegen.Valid(code) {
		return errx.E("", errx.NotFound, fmt.Errorf("no link with code %q", code))
	}
	return nil
}
