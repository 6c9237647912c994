// Package registry manages endpoint configuration: the durable record of
// where an organization's webhooks go, which events they receive, and the
// secret used to sign them.
package registry

import (
	"context"
	"net/url"
	"time"

	validation "github.com/jellydator/validation"
	"github.com/rs/zerolog"

	apperrors "github.com/driftbyte/hookline/internal/errors"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/storage"
)

type Registry struct {
	store storage.Storage
	log   zerolog.Logger
}

func New(store storage.Storage, log zerolog.Logger) *Registry {
	return &Registry{store: store, log: log}
}

// HTTPURL accepts absolute http/https URLs with a host.
var HTTPURL = validation.NewStringRuleWithError(
	func(s string) bool {
		u, err := url.Parse(s)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
	validation.NewError("validation_http_url", "must be a valid HTTP or HTTPS URL"),
)

type CreateInput struct {
	OrgID      string            `json:"organization_id"`
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Secret     string            `json:"secret"`
	EventTypes []string          `json:"event_types"`
	Headers    map[string]string `json:"headers"`
	RateLimit  int               `json:"rate_limit"`
	MaxRetries int               `json:"max_retries"`
}

func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OrgID, validation.Required),
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.URL, validation.Required, HTTPURL),
		validation.Field(&in.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&in.RateLimit, validation.Min(0)),
	)
}

// Create registers a new endpoint. When no secret is supplied one is
// generated; either way the value is returned exactly once here and never
// re-exposed by reads.
func (r *Registry) Create(ctx context.Context, in CreateInput) (*models.Endpoint, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	secret := in.Secret
	if secret == "" {
		secret = models.NewSecret()
	}
	maxRetries := in.MaxRetries
	if maxRetries == 0 {
		maxRetries = models.DefaultMaxRetries
	}
	if in.EventTypes == nil {
		in.EventTypes = []string{}
	}
	if in.Headers == nil {
		in.Headers = map[string]string{}
	}

	now := time.Now().UTC()
	ep := &models.Endpoint{
		ID:         models.NewID("ep"),
		OrgID:      in.OrgID,
		Name:       in.Name,
		URL:        in.URL,
		Secret:     secret,
		EventTypes: in.EventTypes,
		Headers:    in.Headers,
		RateLimit:  in.RateLimit,
		MaxRetries: maxRetries,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := r.store.CreateEndpoint(ctx, ep); err != nil {
		return nil, "", err
	}

	r.log.Info().Str("endpoint_id", ep.ID).Str("org_id", ep.OrgID).Str("url", ep.URL).Msg("endpoint created")
	return ep, secret, nil
}

type UpdateInput struct {
	Name       *string           `json:"name"`
	URL        *string           `json:"url"`
	EventTypes []string          `json:"event_types"`
	Headers    map[string]string `json:"headers"`
	RateLimit  *int              `json:"rate_limit"`
	MaxRetries *int              `json:"max_retries"`
}

func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Length(1, 200)),
		validation.Field(&in.URL, HTTPURL),
		validation.Field(&in.MaxRetries, validation.Min(1), validation.Max(10)),
		validation.Field(&in.RateLimit, validation.Min(0)),
	)
}

// Update applies a partial patch; nil fields keep their current value.
func (r *Registry) Update(ctx context.Context, id string, in UpdateInput) (*models.Endpoint, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
	}

	ep, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		ep.Name = *in.Name
	}
	if in.URL != nil {
		ep.URL = *in.URL
	}
	if in.EventTypes != nil {
		ep.EventTypes = in.EventTypes
	}
	if in.Headers != nil {
		ep.Headers = in.Headers
	}
	if in.RateLimit != nil {
		ep.RateLimit = *in.RateLimit
	}
	if in.MaxRetries != nil {
		ep.MaxRetries = *in.MaxRetries
	}

	if err := r.store.UpdateEndpoint(ctx, ep); err != nil {
		return nil, err
	}
	return ep, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	ep, err := r.store.GetEndpoint(ctx, id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "endpoint "+id)
	}
	return ep, nil
}

func (r *Registry) List(ctx context.Context, orgID string) ([]models.Endpoint, error) {
	return r.store.ListEndpoints(ctx, orgID)
}

// ListSubscribed returns deliverable endpoints whose subscriptions match
// eventType, the dispatch fan-out set.
func (r *Registry) ListSubscribed(ctx context.Context, orgID, eventType string) ([]models.Endpoint, error) {
	return r.store.ListSubscribedEndpoints(ctx, orgID, eventType)
}

func (r *Registry) Deactivate(ctx context.Context, id string) error {
	return r.setActive(ctx, id, false)
}

func (r *Registry) Reactivate(ctx context.Context, id string) error {
	return r.setActive(ctx, id, true)
}

func (r *Registry) setActive(ctx context.Context, id string, active bool) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.SetEndpointActive(ctx, id, active); err != nil {
		return err
	}
	r.log.Info().Str("endpoint_id", id).Bool("active", active).Msg("endpoint toggled")
	return nil
}

// Archive soft-deletes the endpoint. Delivery history stays attributable;
// the endpoint disappears from listings and fan-out.
func (r *Registry) Archive(ctx context.Context, id string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	if err := r.store.ArchiveEndpoint(ctx, id); err != nil {
		return err
	}
	r.log.Info().Str("endpoint_id", id).Msg("endpoint archived")
	return nil
}

// RotateSecret replaces the signing secret and returns the new value.
// The previous secret is irrecoverable after this call.
func (r *Registry) RotateSecret(ctx context.Context, id string) (string, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return "", err
	}
	secret := models.NewSecret()
	if err := r.store.UpdateEndpointSecret(ctx, id, secret); err != nil {
		return "", err
	}
	r.log.Info().Str("endpoint_id", id).Msg("endpoint secret rotated")
	return secret, nil
}
