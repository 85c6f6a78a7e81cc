// Package emergency implements emergency replanning after train breakdowns and the
// escalation to, and management of, fleet-wide crises
package emergency

import (
	"io/ioutil"
	"log"
	"time"

	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
)

// Handler carries out the emergency operations against a Store.
// Every operation runs in its own transaction and emits its events only after committing
type Handler struct {
	store   Store
	policy  Policy
	emitter Emitter
	logger  *log.Logger
	now     func() time.Time
}

// NewHandler returns a new Handler. A nil emitter discards events and a nil logger discards log output
func NewHandler(store Store, policy Policy, emitter Emitter, logger *log.Logger) *Handler {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	if logger == nil {
		logger = log.New(ioutil.Discard, "", 0)
	}
	return &Handler{
		store:   store,
		policy:  policy,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the function used to obtain the current time
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// Policy returns the policy of the handler
func (h *Handler) Policy() Policy {
	return h.policy
}

// begin starts a transaction on the store of the handler
func (h *Handler) begin(op string) (Store, error) {
	tx, err := h.store.Beginx()
	if err != nil {
		return nil, storeError(op, "", "", err)
	}
	return tx, nil
}

// commit commits tx and, if that succeeds, emits events
func (h *Handler) commit(op string, tx Store, events []Event) error {
	if err := tx.Commit(); err != nil {
		return storeError(op, "", "", err)
	}
	for _, event := range events {
		h.emitter.Emit(event)
	}
	return nil
}

func newID() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "newID")
	}
	return id.String(), nil
}
