package engine

import (
	"time"

	"github.com/librarydesk/lending-engine/lending"
)

// Engine performs lending transactions over a lending.Backend. It is safe for concurrent use.
type Engine struct {
	backend          lending.Backend
	policy           lending.Policy
	now              func() time.Time
	newRecordID      func() string
	locks            *keyLocks
	retry            retryConfig
	logger           lending.Logger
	contextualLogger lending.ContextualLogger
	metricsCollector lending.MetricsCollector
	tracingCollector lending.TracingCollector
}

// New creates an Engine over backend with the default policy, the system clock and
// UUID record ids unless configured otherwise.
func New(backend lending.Backend, options ...Option) (*Engine, error) {
	if backend == nil {
		return nil, lending.ErrNilBackend
	}

	e := &Engine{
		backend:     backend,
		policy:      lending.DefaultPolicy(),
		now:         time.Now,
		newRecordID: lending.NewRecordID,
		locks:       newKeyLocks(),
		retry:       defaultRetryConfig(),
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// Policy returns the lending policy in effect.
func (e *Engine) Policy() lending.Policy {
	return e.policy
}

// Today returns the current calendar day according to the engine's clock.
func (e *Engine) Today() time.Time {
	return lending.Today(e.now())
}

func memberKey(id string) string {
	return "member:" + id
}

func bookKey(isbn string) string {
	return "book:" + isbn
}
