package version

import (
	"strings"
	"testing"
)

func TestGetVersion(t *testing.T) {
	v := GetVersion()
	if !strings.HasPrefix(v, "Clearinghouse/") {
		t.Errorf("unexpected version prefix: %s", v)
	}
	if !strings.Contains(v, "Built at:") {
		t.Errorf("version missing build date: %s", v)
	}
}
