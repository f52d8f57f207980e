package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexspoon/hexmake/internal/hexfile"
)

func TestSpecAcceptsWellFormedSpec(t *testing.T) {
	spec := &hexfile.Spec{
		Environ: []string{"CC"},
		Rules: []hexfile.Rule{
			{Outputs: []string{"out/foo.o"}, Inputs: []string{"foo.c"}, Commands: []string{"cc -c foo.c -o out/foo.o"}},
		},
	}
	assert.NoError(t, Spec(spec))
}

func TestSpecRejectsOutputOutsideOutTree(t *testing.T) {
	spec := &hexfile.Spec{
		Rules: []hexfile.Rule{
			{Outputs: []string{"build/foo"}, Commands: []string{"true"}},
		},
	}
	err := Spec(spec)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "build/foo", verr.Output)
}

func TestSpecRejectsRuleWithNoOutputs(t *testing.T) {
	spec := &hexfile.Spec{
		Rules: []hexfile.Rule{
			{Commands: []string{"true"}},
		},
	}
	err := Spec(spec)
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, verr.RuleIndex)
}

func TestSpecRejectsEmptyEnvironEntry(t *testing.T) {
	spec := &hexfile.Spec{
		Environ: []string{"CC", ""},
		Rules: []hexfile.Rule{
			{Outputs: []string{"out/foo"}, Commands: []string{"true"}},
		},
	}
	assert.Error(t, Spec(spec))
}
