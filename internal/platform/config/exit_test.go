package config

import (
	"bytes"
	"testing"
)

func TestExitfWritesAndExits(t *testing.T) {
	var out bytes.Buffer
	code := -1
	prevWriter, prevExit := exitWriter, exitFunc
	exitWriter, exitFunc = &out, func(c int) { code = c }
	t.Cleanup(func() {
		exitWriter, exitFunc = prevWriter, prevExit
	})

	Exitf("parse flags: %s", "bad -db-path")

	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if out.String() != "parse flags: bad -db-path\n" {
		t.Fatalf("output = %q", out.String())
	}
}
