package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(CodeConnection, "cannot open camera")

	msg := err.Error()
	if !strings.Contains(msg, "CONNECTION") {
		t.Errorf("Error() = %q, should contain code name", msg)
	}
	if !strings.Contains(msg, "cannot open camera") {
		t.Errorf("Error() = %q, should contain message", msg)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("device busy")
	err := Wrap(cause, CodeConnection, "open failed")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
	if !strings.Contains(err.Error(), "device busy") {
		t.Errorf("Error() = %q, should contain cause", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(CodeResourceLoad, "clip %s unreadable", "happy/1.wav")

	if !IsCode(err, CodeResourceLoad) {
		t.Error("IsCode should match the error's code")
	}
	if IsCode(err, CodeConnection) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(fmt.Errorf("plain"), CodeResourceLoad) {
		t.Error("IsCode should not match plain errors")
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New(CodeClassification, "no prediction")
	outer := fmt.Errorf("tick failed: %w", inner)

	if !IsCode(outer, CodeClassification) {
		t.Error("IsCode should unwrap to find the code")
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(CodeResourceLoad, "decode failed").WithMetadata("path", "sad/2.mp3")

	if err.Metadata["path"] != "sad/2.mp3" {
		t.Errorf("Metadata[path] = %q, want %q", err.Metadata["path"], "sad/2.mp3")
	}
	if !strings.Contains(err.Error(), "sad/2.mp3") {
		t.Error("Error() should include metadata")
	}
}
