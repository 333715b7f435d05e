package shoperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByCode(t *testing.T) {
	err := Newf(InsufficientStock, "Not enough stock", "product %d", 5)
	wrapped := fmt.Errorf("place order: %w", err)

	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	assert.False(t, errors.Is(wrapped, ErrInsufficientFunds))
	assert.Equal(t, InsufficientStock, CodeOf(wrapped))
	assert.Equal(t, "Not enough stock", MessageOf(wrapped))
	assert.Equal(t, "INSUFFICIENT_STOCK: Not enough stock - product 5", err.Error())
}

func TestCodeOfUnclassified(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, DatabaseError, CodeOf(errors.New("boom")))
	assert.Equal(t, Timeout, CodeOf(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(ErrEmptyCart))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		NotFound:          http.StatusNotFound,
		AlreadyConnected:  http.StatusConflict,
		InsufficientFunds: http.StatusPaymentRequired,
		EmptyCart:         http.StatusUnprocessableEntity,
		InvalidQuantity:   http.StatusBadRequest,
		Timeout:           http.StatusServiceUnavailable,
		DatabaseError:     http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}
