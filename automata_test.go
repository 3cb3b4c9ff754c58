package automata_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/pkg/domain"
	"github.com/aretw0/automata/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginDefinition = "pkg/dsl/testdata/login.yaml"

func TestLoad(t *testing.T) {
	eng, err := automata.Load(loginDefinition)
	require.NoError(t, err)
	defer eng.Close()

	assert.Equal(t, "login", eng.Name)
	require.NotNil(t, eng.Definition())

	snaps := eng.Inspect()
	require.Len(t, snaps, 1)
	assert.Equal(t, "idle", snaps[0].Current)
	assert.Equal(t, 0, snaps[0].Context["attempts"])

	a, omega, err := eng.Route(context.Background(), automata.TransitRequest{
		Action: "submit",
		Input:  map[string]any{"user": "ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, "login", a.Name())
	assert.Equal(t, "authenticating", omega.Next)

	user, _ := a.Context().Get("user")
	assert.Equal(t, "ann", user)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := automata.Load("testdata/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestFromDefinition_Invalid(t *testing.T) {
	def := &dsl.Definition{}
	_, err := automata.FromDefinition(def)
	assert.ErrorIs(t, err, dsl.ErrInvalidDefinition)
}

func TestRunner(t *testing.T) {
	eng, err := automata.Load(loginDefinition)
	require.NoError(t, err)

	var out bytes.Buffer
	runner := automata.NewRunner()
	runner.Input = strings.NewReader("submit {\"user\":\"ann\"}\naccept\n\neject\nquit\nlogout\n")
	runner.Output = &out
	runner.Headless = true

	require.NoError(t, runner.Run(context.Background(), eng))

	got := out.String()
	assert.Contains(t, got, "**login** `idle` → `authenticating`\n\n[login:authenticating]\n\n")
	assert.Contains(t, got, "[login:authenticated]\n\nWelcome, ann!\n\n")
	assert.Contains(t, got, domain.ErrNoMatchingTransition.Error())

	// quit stops the loop before logout.
	a, _ := eng.Automaton("login")
	assert.Equal(t, "authenticated", a.Current().Name())
}

func TestRunner_Prompt(t *testing.T) {
	b := dsl.New()
	b.Automaton("door").
		State("closed").Go("open", "opened").
		State("opened").Go("close", "closed")
	def, err := b.Build()
	require.NoError(t, err)
	eng, err := automata.FromDefinition(def)
	require.NoError(t, err)

	var out bytes.Buffer
	runner := automata.NewRunner()
	runner.Input = strings.NewReader("open\n")
	runner.Output = &out

	require.NoError(t, runner.Run(context.Background(), eng))
	assert.True(t, strings.HasPrefix(out.String(), "door:closed [open]> "))
	assert.Contains(t, out.String(), "door:opened [close]> ")
}

func TestRunner_RequiresIO(t *testing.T) {
	eng := automata.New()
	err := automata.NewRunner().Run(context.Background(), eng)
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want automata.TransitRequest
	}{
		{"open", automata.TransitRequest{Action: "open", Name: "runner"}},
		{"door/open", automata.TransitRequest{Action: "open", Automaton: "door", Name: "runner"}},
		{"say hello world", automata.TransitRequest{Action: "say", Input: "hello world", Name: "runner"}},
		{`submit {"user":"ann"}`, automata.TransitRequest{Action: "submit", Input: map[string]any{"user": "ann"}, Name: "runner"}},
		{"count 3", automata.TransitRequest{Action: "count", Input: float64(3), Name: "runner"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, automata.ParseCommand(tt.line))
		})
	}
}
