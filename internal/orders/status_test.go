package orders

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := [][2]Status{
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusCancelled},
		{StatusConfirmed, StatusShipped},
		{StatusConfirmed, StatusCancelled},
		{StatusShipped, StatusDelivered},
	}
	for _, e := range allowed {
		assert.True(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}

	denied := [][2]Status{
		{StatusPending, StatusPending},
		{StatusPending, StatusShipped},
		{StatusShipped, StatusCancelled},
		{StatusDelivered, StatusPending},
		{StatusCancelled, StatusConfirmed},
		{"lost", StatusConfirmed},
	}
	for _, e := range denied {
		assert.False(t, CanTransition(e[0], e[1]), "%s -> %s", e[0], e[1])
	}

	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusShipped.Terminal())
}

func TestParseStatus(t *testing.T) {
	st, ok := ParseStatus(" SHIPPED ")
	assert.True(t, ok)
	assert.Equal(t, StatusShipped, st)

	_, ok = ParseStatus("returned")
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	cases := map[string]error{
		"invalid_request":     invalid("x"),
		"product_unavailable": &ProductError{Err: ErrProductUnavailable, ProductID: 1},
		"insufficient_stock":  &ProductError{Err: ErrInsufficientStock, ProductID: 1},
		"lock_timeout":        fmt.Errorf("wrap: %w", ErrLockTimeout),
		"not_found":           ErrNotFound,
		"invalid_transition":  &TransitionError{From: StatusPending, To: "lost"},
		"internal":            errors.New("boom"),
	}
	for kind, err := range cases {
		assert.Equal(t, kind, KindOf(err))
	}
	assert.False(t, Retryable(ErrInsufficientStock))
}

func TestErrorMessages(t *testing.T) {
	err := &ProductError{Err: ErrInsufficientStock, ProductID: 4, Requested: 8, Available: 7}
	assert.Equal(t, "insufficient stock: product 4 has 7 available, 8 requested", err.Error())

	assert.Equal(t, `invalid status transition: unknown status "lost"`, (&TransitionError{To: "lost"}).Error())
	assert.Equal(t, "invalid status transition: delivered -> pending",
		(&TransitionError{From: StatusDelivered, To: "pending"}).Error())
}
