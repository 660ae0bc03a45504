// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"os"
	"strings"
	"testing"
)

func TestComposeEnv_PassThroughAllowlist(t *testing.T) {
	t.Setenv("CRUCIBLE_TEST_SECRET", "hidden")
	t.Setenv("CI_NODE_INDEX", "2")
	t.Setenv("CI_NODE_TOTAL", "4")

	env := ComposeEnv([]string{"CI_*"}, nil, nil, "")

	if _, ok := env["CRUCIBLE_TEST_SECRET"]; ok {
		t.Errorf("variable outside pass_env leaked into the environment")
	}
	if env["CI_NODE_INDEX"] != "2" || env["CI_NODE_TOTAL"] != "4" {
		t.Errorf("glob pass_env entries not honored: %v", env)
	}
	if _, ok := env["PATH"]; !ok {
		t.Errorf("PATH must always pass through")
	}
}

func TestComposeEnv_Precedence(t *testing.T) {
	t.Setenv("CRUCIBLE_TEST_VALUE", "from-process")

	env := ComposeEnv(
		[]string{"CRUCIBLE_TEST_VALUE"},
		map[string]string{"CRUCIBLE_TEST_VALUE": "from-set-env", "EXTRA": "x"},
		map[string]string{"CRUCIBLE_TEST_VALUE": "from-builtin"},
		"",
	)

	// Builtins win over set_env, which wins over the process environment.
	if got := env["CRUCIBLE_TEST_VALUE"]; got != "from-builtin" {
		t.Errorf("precedence violated: got %q, want %q", got, "from-builtin")
	}
	if env["EXTRA"] != "x" {
		t.Errorf("set_env entry missing: %v", env)
	}
}

func TestComposeEnv_PrependsBinDir(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	env := ComposeEnv(nil, nil, nil, "/work/.crucible/tests/deps/bin")
	want := "/work/.crucible/tests/deps/bin" + string(os.PathListSeparator) + "/usr/bin"
	if env["PATH"] != want {
		t.Errorf("PATH = %q, want %q", env["PATH"], want)
	}
}

func TestPassEnvLookup(t *testing.T) {
	t.Setenv("CRUCIBLE_ALLOWED", "yes")
	t.Setenv("CRUCIBLE_DENIED", "no")

	lookup := PassEnvLookup([]string{"CRUCIBLE_ALLOWED"})

	if v, ok := lookup("CRUCIBLE_ALLOWED"); !ok || v != "yes" {
		t.Errorf("allow-listed variable unavailable: %q %v", v, ok)
	}
	if _, ok := lookup("CRUCIBLE_DENIED"); ok {
		t.Errorf("non-allow-listed variable resolved")
	}
}

func TestEnvToSlice_Deterministic(t *testing.T) {
	t.Parallel()

	env := map[string]string{"B": "2", "A": "1", "C": "3"}
	got := EnvToSlice(env)
	if strings.Join(got, ",") != "A=1,B=2,C=3" {
		t.Errorf("EnvToSlice() = %v, want sorted order", got)
	}
}
