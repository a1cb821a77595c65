package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"habitsync/internal/apperr"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad date"), http.StatusBadRequest},
		{apperr.NotFound("habit %s", "x"), http.StatusNotFound},
		{apperr.Conflict("habit %s exists", "x"), http.StatusConflict},
		{apperr.StoreUnavailable(errors.New("dial tcp: refused")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), tt.err.Error())
	}
}
