package wizard_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/wizard"
)

func TestNewRegistry(t *testing.T) {
	r, err := wizard.NewRegistry(wizard.DefaultSteps...)
	require.NoError(t, err)
	require.Equal(t, 10, r.Len())
	require.Equal(t, 9, r.Last())
	require.Equal(t, 8, r.Provisioning())
	require.Equal(t, wizard.StepProgress, r.At(r.Provisioning()))
	i, ok := r.Index(wizard.StepDisk)
	require.True(t, ok)
	require.Equal(t, 5, i)

	minimal, err := wizard.NewRegistry(wizard.StepSummary, wizard.StepProgress, wizard.StepComplete)
	require.NoError(t, err)
	require.False(t, minimal.Has(wizard.StepUser))
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := map[string][]wizard.StepID{
		"too short":           {wizard.StepComplete},
		"duplicate":           {wizard.StepWelcome, wizard.StepWelcome, wizard.StepSummary, wizard.StepProgress, wizard.StepComplete},
		"no summary":          {wizard.StepWelcome, wizard.StepProgress, wizard.StepComplete},
		"complete not last":   {wizard.StepSummary, wizard.StepProgress, wizard.StepComplete, wizard.StepUser},
		"summary before user": {wizard.StepSummary, wizard.StepUser, wizard.StepProgress, wizard.StepComplete},
		"progress missing":    {wizard.StepWelcome, wizard.StepSummary, wizard.StepComplete},
		"empty id":            {"", wizard.StepSummary, wizard.StepProgress, wizard.StepComplete},
	}
	for name, steps := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := wizard.NewRegistry(steps...)
			require.Error(t, err)
		})
	}
}

func TestRegistry_StepsIsACopy(t *testing.T) {
	r := wizard.DefaultRegistry()
	steps := r.Steps()
	steps[0] = "tampered"
	require.Equal(t, wizard.StepWelcome, r.At(0))
}

func TestChoices(t *testing.T) {
	c := wizard.NewChoices([]wizard.Item{{ID: "a"}, {ID: "b"}})
	_, ok := c.Selected()
	require.False(t, ok)

	require.ErrorIs(t, c.Select("z"), wizard.ErrUnknownChoice)
	require.NoError(t, c.Select("a"))
	require.NoError(t, c.Select("b"))
	it, ok := c.Selected()
	require.True(t, ok)
	require.Equal(t, "b", it.ID)

	c.SetItems([]wizard.Item{{ID: "b"}, {ID: "c"}})
	it, ok = c.Selected()
	require.True(t, ok, "selection kept while still offered")
	require.Equal(t, "b", it.ID)

	c.SetItems([]wizard.Item{{ID: "c"}})
	_, ok = c.Selected()
	require.False(t, ok, "selection dropped when no longer offered")
}

func TestAccumulator_ShallowMerge(t *testing.T) {
	a := wizard.NewAccumulator()
	a.Merge(wizard.Config{"language": "en"})
	a.Merge(wizard.Config{"timezone": "UTC"})
	require.Equal(t, wizard.Config{"language": "en", "timezone": "UTC"}, a.Snapshot())

	snap := a.Snapshot()
	a.Merge(wizard.Config{"language": "de"})
	a.Merge(nil)
	require.Equal(t, "en", snap["language"], "snapshots are isolated")
	require.Equal(t, wizard.Config{"language": "de", "timezone": "UTC"}, a.Snapshot())
	require.Equal(t, 2, a.Len())
}
