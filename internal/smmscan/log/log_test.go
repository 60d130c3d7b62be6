package log

import (
	"testing"
)

func TestRecoverPanic(t *testing.T) {
	Setup("", false)
	if !Initialized() {
		t.Fatal("Setup did not initialize logging")
	}

	cleaned := false
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
		panic("boom")
	}()
	if !cleaned {
		t.Error("cleanup did not run")
	}
}

func TestRecoverPanicNoPanic(t *testing.T) {
	cleaned := false
	func() {
		defer RecoverPanic("test", func() { cleaned = true })
	}()
	if cleaned {
		t.Error("cleanup ran without a panic")
	}
}
