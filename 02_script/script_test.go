package script

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autovid-pipeline/config"
	"autovid-pipeline/types"
)

type fakeModel struct {
	out   string
	err   error
	calls int
}

func (f *fakeModel) GenerateJSON(context.Context, string) (string, error) {
	f.calls++
	return f.out, f.err
}

func testIdea() types.VideoIdea {
	return types.VideoIdea{
		Title:  "Octopus Secrets",
		Hook:   "This animal has three hearts.",
		Points: []string{"Blue blood", "Nine brains", "Color changing skin", "Escape artists", "Short lives"},
		CTA:    "Follow for more ocean facts!",
	}
}

func liveCfg() *config.Config {
	cfg := config.Default()
	cfg.DevMode = false
	return cfg
}

func TestWrite_Live(t *testing.T) {
	model := &fakeModel{out: `{"scenes":[{"visual":"octopus close up","narration":" Three hearts. "},{"visual":"reef","narration":"Follow!"}]}`}

	got := New(liveCfg(), model).Write(context.Background(), testIdea())

	want := types.Script{Scenes: []types.Scene{
		{Visual: "octopus close up", Narration: "Three hearts."},
		{Visual: "reef", Narration: "Follow!"},
	}}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestWrite_FallsBackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"transport", &fakeModel{err: errors.New("timeout")}},
		{"malformed json", &fakeModel{out: `{"scenes": [ {"visual": "x",`}},
		{"no scenes", &fakeModel{out: `{"scenes": []}`}},
		{"empty narration", &fakeModel{out: `{"scenes":[{"visual":"x","narration":"  "}]}`}},
		{"wrong shape", &fakeModel{out: `["a","b"]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(liveCfg(), tt.model).Write(context.Background(), testIdea())

			assert.True(t, got.Fallback)
			require.Len(t, got.Scenes, 6)
			for _, s := range got.Scenes {
				assert.NotEmpty(t, s.Narration)
			}
		})
	}
}

func TestWrite_DevModeSkipsModel(t *testing.T) {
	cfg := config.Default()
	cfg.DevMode = true
	model := &fakeModel{}

	got := New(cfg, model).Write(context.Background(), testIdea())

	assert.Zero(t, model.calls)
	assert.True(t, got.Fallback)
	assert.Len(t, got.Scenes, 6)
}

func TestStub(t *testing.T) {
	idea := testIdea()
	got := Stub(idea)

	require.Len(t, got.Scenes, 6)
	assert.Equal(t, "Dynamic macro shot related to Octopus Secrets", got.Scenes[0].Visual)
	assert.Equal(t, idea.Hook, got.Scenes[0].Narration)
	assert.Equal(t, "B-roll illustrating: Blue blood", got.Scenes[1].Visual)
	assert.Equal(t, "Escape artists", got.Scenes[4].Narration)
	assert.Equal(t, idea.CTA, got.Scenes[5].Narration)

	short := Stub(types.VideoIdea{Title: "T", Hook: "H", Points: []string{"one"}})
	require.Len(t, short.Scenes, 3)
	assert.Equal(t, "Follow for more!", short.Scenes[2].Narration)
}
