package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"coinsleuth/domain/core"
)

func TestGetCode_DomainSentinels(t *testing.T) {
	assert.Equal(t, CodeInvalidInput, GetCode(core.ErrEmptySequence))
	assert.Equal(t, CodeNotFound, GetCode(fmt.Errorf("load: %w", core.ErrTableNotFound)))
	assert.Equal(t, CodeStorageUnavailable, GetCode(core.NewStorageError("open", stderrors.New("disk full"))))
	assert.Equal(t, CodeInternalError, GetCode(core.NewInvariantError("broken")))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
}

func TestWrap_KeepsCode(t *testing.T) {
	err := Wrap(ConfigInvalid("SLEUTH_BACKEND is unknown"), "failed to load configuration")
	assert.Equal(t, CodeConfigInvalid, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.Equal(t, "failed to load configuration: SLEUTH_BACKEND is unknown", err.Error())

	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(InvalidInput("bad n")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(core.ErrNonBinarySequence))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(core.ErrSummaryNotFound))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(StorageUnavailable("open store", stderrors.New("read-only"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(core.NewInvariantError("missing row")))
}

func TestConstructors_WrapSentinels(t *testing.T) {
	assert.True(t, core.IsInvalidInput(InvalidInput("x")))
	assert.True(t, core.IsStorageError(StorageUnavailable("x", stderrors.New("y"))))
}
