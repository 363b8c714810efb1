package httpkit

import (
	"errors"
	"net/http"
	"testing"

	"followup_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
)

func TestFailureMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{apperr.NotFound("missing"), http.StatusNotFound, "NotFound"},
		{apperr.Validation("bad"), http.StatusBadRequest, "ValidationError"},
		{apperr.UnknownOutcome("x"), http.StatusBadRequest, "UnknownOutcome"},
		{apperr.InvalidTransition("x"), http.StatusConflict, "InvalidTransition"},
		{apperr.NotArchived("x"), http.StatusConflict, "NotArchived"},
		{apperr.DependencyTimeout("x"), http.StatusGatewayTimeout, "DependencyTimeout"},
		{errors.New("driver exploded"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		status, body := Failure(tc.err)
		assert.Equal(t, tc.status, status, tc.kind)
		assert.False(t, body.OK)
		assert.Equal(t, tc.kind, body.ErrorKind)
		assert.NotContains(t, body.Message, "driver")
	}
}

func TestFailureUnwrapsWrappedDomainErrors(t *testing.T) {
	err := errors.Join(errors.New("context"), apperr.NotArchived("still live"))
	status, body := Failure(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "still live", body.Message)
}
