package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"panelfit/domain/core"
)

func TestWrap_KeepsInnerCode(t *testing.T) {
	inner := InvalidInput("column \"Inflation\" not found")
	err := Wrapf(inner, "reading %s", "panel.csv")

	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.Equal(t, "reading panel.csv: column \"Inflation\" not found", err.Error())
	assert.True(t, IsAppError(err))
}

func TestWrap_PlainErrorIsInternal(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, "decoding")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode_PreservesSentinels(t *testing.T) {
	err := WithCode(CodeInvalidInput, core.NewMissingVariableError("Vat Rate"), "panel header")
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.True(t, stderrors.Is(err, core.ErrMissingData))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, CodeIOError, IOError("out.csv", io.ErrShortWrite).Code)
	assert.Equal(t, CodeDatabaseError, DatabaseError("insert", io.EOF).Code)
	assert.Equal(t, CodeConfigInvalid, ConfigInvalid("bad").Code)
	assert.Equal(t, "UNKNOWN", GetCode(io.EOF))
	assert.Equal(t, "workers must be positive", Newf(CodeConfigInvalid, "%s must be positive", "workers").Error())
}
