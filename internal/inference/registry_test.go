package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonnison/tower-jumps/internal/model"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := DefaultRegistry(DefaultClusteringOptions())
	require.NoError(t, err)
	assert.Equal(t, []model.Method{model.MethodMajorityVote, model.MethodClustering}, reg.Methods())

	s, err := reg.Resolve(model.MethodMajorityVote)
	require.NoError(t, err)
	assert.IsType(t, &MajorityVote{}, s)

	s, err = reg.ResolveString("2")
	require.NoError(t, err)
	assert.IsType(t, &Clustering{}, s)
	assert.Equal(t, "DBSCAN + smoothing", s.Name())
}

func TestRegistry_ResolveReturnsFreshInstances(t *testing.T) {
	reg, err := DefaultRegistry(DefaultClusteringOptions())
	require.NoError(t, err)

	a, err := reg.Resolve(model.MethodClustering)
	require.NoError(t, err)
	b, err := reg.Resolve(model.MethodClustering)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestRegistry_UnknownMethod(t *testing.T) {
	reg, err := DefaultRegistry(DefaultClusteringOptions())
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
	}{
		{"reserved hmm", "3"},
		{"zero", "0"},
		{"negative", "-1"},
		{"not an integer", "abc"},
		{"float", "1.5"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := reg.ResolveString(tt.raw)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.True(t, IsUnknownMethod(err))
			assert.Contains(t, err.Error(), "unknown model_id="+tt.raw)
		})
	}

	_, err = reg.Resolve(model.MethodHMM)
	require.Error(t, err)
	assert.True(t, IsUnknownMethod(err))
}

func TestRegistry_ResolveStringTrimsSpace(t *testing.T) {
	reg, err := DefaultRegistry(DefaultClusteringOptions())
	require.NoError(t, err)

	s, err := reg.ResolveString(" 1 ")
	require.NoError(t, err)
	assert.Equal(t, model.MethodMajorityVote, s.Method())
}

func TestNewRegistry_InvalidRegistrations(t *testing.T) {
	majority := func() Strategy { return NewMajorityVote() }

	tests := []struct {
		name string
		regs []Registration
		want string
	}{
		{"missing method id", []Registration{{New: majority}}, "no method id"},
		{"nil constructor", []Registration{{Method: model.MethodMajorityVote}}, "has no constructor"},
		{"duplicate", []Registration{
			{Method: model.MethodMajorityVote, New: majority},
			{Method: model.MethodMajorityVote, New: majority},
		}, "registered twice"},
		{"mismatched method", []Registration{{Method: model.MethodHMM, New: majority}}, "constructor builds"},
		{"nil strategy", []Registration{{Method: model.MethodHMM, New: func() Strategy { return nil }}}, "returned nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := NewRegistry(tt.regs...)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.ErrorIs(t, err, ErrInvalidRegistration)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustRegistry_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustRegistry(Registration{Method: model.MethodMajorityVote})
	})
	assert.NotPanics(t, func() {
		MustRegistry(Registration{Method: model.MethodMajorityVote, New: func() Strategy { return NewMajorityVote() }})
	})
}

func TestParseOutput(t *testing.T) {
	o, err := ParseOutput("")
	require.NoError(t, err)
	assert.Equal(t, OutputSummary, o)

	o, err = ParseOutput("Timeline")
	require.NoError(t, err)
	assert.Equal(t, OutputTimeline, o)

	_, err = ParseOutput("all")
	require.Error(t, err)
}
