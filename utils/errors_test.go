package utils

import (
	"testing"

	"go.viam.com/test"
)

type (
	someStruct struct{}
	someIfc    interface{}
)

func TestNewUnexpectedTypeError(t *testing.T) {
	err := NewUnexpectedTypeError[string](1)
	test.That(t, err.Error(), test.ShouldEqual, "expected string but got int")

	err = NewUnexpectedTypeError[*someStruct]("x")
	test.That(t, err.Error(), test.ShouldEqual, "expected *utils.someStruct but got string")

	err = NewUnexpectedTypeError[someIfc](someStruct{})
	test.That(t, err.Error(), test.ShouldEqual, "expected utils.someIfc but got utils.someStruct")
}

func TestNewUnknownNameError(t *testing.T) {
	err := NewUnknownNameError("spi bus", "main")
	test.That(t, err.Error(), test.ShouldEqual, `unknown spi bus "main"`)
}
