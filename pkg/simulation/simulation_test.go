package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSim struct{ name string }

func (s *stubSim) Name() string                            { return s.name }
func (s *stubSim) Description() string                     { return s.name + " stub" }
func (s *stubSim) Configure(map[string]interface{}) error  { return nil }
func (s *stubSim) Run(context.Context, ProgressFunc) error { return nil }
func (s *stubSim) Stop() error                             { return nil }

func stub(name string) Factory {
	return func() Simulation { return &stubSim{name: name} }
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Swarm Defense", stub("Swarm Defense")))
	require.NoError(t, r.Register("Convoy Defense", stub("Convoy Defense")))

	assert.Error(t, r.Register("swarm defense", stub("dup")))
	assert.Error(t, r.Register("  ", stub("blank")))
	assert.Error(t, r.Register("nil", nil))

	assert.Equal(t, []string{"Convoy Defense", "Swarm Defense"}, r.List())

	sim, err := r.Get("SWARM DEFENSE")
	require.NoError(t, err)
	assert.Equal(t, "Swarm Defense", sim.Name())

	other, err := r.Get("Swarm Defense")
	require.NoError(t, err)
	assert.NotSame(t, sim, other)

	_, err = r.Get("tornado")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "Convoy Defense, Swarm Defense")

	assert.Equal(t, []Entry{
		{Name: "Convoy Defense", Description: "Convoy Defense stub"},
		{Name: "Swarm Defense", Description: "Swarm Defense stub"},
	}, r.Entries())
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"no total", Progress{Step: 5}, 0},
		{"half", Progress{Step: 50, TotalSteps: 100}, 50},
		{"overrun", Progress{Step: 120, TotalSteps: 100}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.p.Percent(), 1e-9)
		})
	}
}

func TestParameterParseAndCheck(t *testing.T) {
	count := Parameter{Name: "friendly_count", Type: TypeInteger, Min: 1, Max: 200}
	ratio := Parameter{Name: "ground_attack_ratio", Type: TypeFloat, Min: 0.0, Max: 1.0}
	algo := Parameter{Name: "swarm_algorithm", Type: TypeString, Options: []string{"cvt-cbf", "cbba-superiority"}}
	comms := Parameter{Name: "communication", Type: TypeBoolean}

	tests := []struct {
		name    string
		param   Parameter
		raw     string
		want    interface{}
		wantErr bool
	}{
		{"integer", count, "18", 18, false},
		{"integer below min", count, "0", nil, true},
		{"integer not a number", count, "many", nil, true},
		{"float", ratio, " 0.45 ", 0.45, false},
		{"float above max", ratio, "1.5", nil, true},
		{"option", algo, "cvt-cbf", "cvt-cbf", false},
		{"unknown option", algo, "tornado", nil, true},
		{"boolean", comms, "true", true, false},
		{"bad boolean", comms, "maybe", nil, true},
		{"unknown type", Parameter{Name: "x", Type: "duration"}, "1s", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.param.ParseAndCheck(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckWholeNumber(t *testing.T) {
	p := Parameter{Name: "enemy_count", Type: TypeInteger}
	assert.NoError(t, p.Check(12.0))
	assert.Error(t, p.Check(12.5))
	assert.Error(t, p.Check("12"))
}

func TestDescriptor(t *testing.T) {
	d := Descriptor{
		Name: "Swarm Defense",
		Parameters: []Parameter{
			{Name: "friendly_count", Type: TypeInteger, Default: 15, Min: 1, Max: 200},
			{Name: "max_time", Type: TypeFloat, Default: 120, Min: 1},
			{Name: "swarm_algorithm", Type: TypeString, Options: []string{"cvt-cbf"}},
		},
	}
	require.NoError(t, d.Validate())

	p, ok := d.Parameter("max_time")
	require.True(t, ok)
	assert.Equal(t, "120", p.DefaultText())
	_, ok = d.Parameter("missing")
	assert.False(t, ok)

	assert.Equal(t, map[string]interface{}{"friendly_count": 15, "max_time": 120}, d.Defaults())

	bad := []struct {
		name string
		d    Descriptor
	}{
		{"no name", Descriptor{}},
		{"duplicate", Descriptor{Name: "x", Parameters: []Parameter{{Name: "a", Type: TypeString}, {Name: "a", Type: TypeString}}}},
		{"default out of range", Descriptor{Name: "x", Parameters: []Parameter{{Name: "n", Type: TypeInteger, Default: 500, Max: 200}}}},
		{"unknown type", Descriptor{Name: "x", Parameters: []Parameter{{Name: "d", Type: "duration"}}}},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.d.Validate())
		})
	}
}
