package config

import (
	"strings"
	"testing"
)

func fakeEnv(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	env := fakeEnv(map[string]string{
		"FERRY_USER":  "alice",
		"FERRY_PASS":  "s3cret",
		"FERRY_EMPTY": "",
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"set", "username: ${FERRY_USER}", "username: alice"},
		{"unset", "username: ${FERRY_NOPE}", "username: "},
		{"default when unset", "server: ${FERRY_NOPE:-video.example.edu}", "server: video.example.edu"},
		{"default when empty", "server: ${FERRY_EMPTY:-fallback}", "server: fallback"},
		{"default ignored when set", "username: ${FERRY_USER:-bob}", "username: alice"},
		{"required and set", "password: ${FERRY_PASS:?}", "password: s3cret"},
		{"several", "${FERRY_USER}:${FERRY_PASS}", "alice:s3cret"},
		{"no references", "part_size: 1048576", "part_size: 1048576"},
		{"bare dollar untouched", "password: $FERRY_PASS", "password: $FERRY_PASS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expand(tt.input, env)
			if err != nil {
				t.Fatalf("expand: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpand_RequiredMissing(t *testing.T) {
	env := fakeEnv(map[string]string{"FERRY_EMPTY": ""})

	_, err := expand("a: ${FERRY_B:?}\nb: ${FERRY_EMPTY:?}\nc: ${FERRY_B:?}", env)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "FERRY_B, FERRY_EMPTY") {
		t.Errorf("error = %q, want both names once, sorted", err)
	}
}

func TestExpandEnv_ConfigDocument(t *testing.T) {
	t.Setenv("FERRY_TEST_USER", "admin")
	t.Setenv("FERRY_TEST_PASS", "secret")

	input := `credentials:
  username: ${FERRY_TEST_USER}
  password: ${FERRY_TEST_PASS:?}
server: ${FERRY_TEST_SERVER_UNSET:-video.example.edu}`

	got, err := ExpandEnv(input)
	if err != nil {
		t.Fatalf("ExpandEnv: %v", err)
	}
	want := `credentials:
  username: admin
  password: secret
server: video.example.edu`
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
