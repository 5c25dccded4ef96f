package controllers

import (
	"math"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Formation names
const (
	FormationShield  = "shield"
	FormationOrbital = "orbital"
	FormationWave    = "wave"
	FormationVeil    = "veil"
)

// Formation defines where drone index of total spawns relative to the anchor
// and with which initial velocity. Implementations are pure.
type Formation interface {
	Slot(index, total int) (offset, velocity core.Vector3D)
}

// FormationParams holds the numeric knobs of a formation
type FormationParams map[string]float64

// Get returns the named value or def when absent
func (p FormationParams) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

func (p FormationParams) clone() FormationParams {
	if p == nil {
		return nil
	}
	out := make(FormationParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// ShieldFormation stacks concentric rings, inner rings filled first
type ShieldFormation struct {
	RingCapacity int
	RingRadius   float64
	RingSpacing  float64
	AltitudeBase float64
	AltitudeStep float64
}

func (f *ShieldFormation) Slot(index, total int) (core.Vector3D, core.Vector3D) {
	capacity := f.RingCapacity
	if capacity < 1 {
		capacity = 1
	}
	ring := index / capacity
	slot := index % capacity
	slots := total - ring*capacity
	if slots < 1 {
		slots = 1
	}
	if slots > capacity {
		slots = capacity
	}
	angle := 2 * math.Pi * float64(slot) / float64(slots)
	radius := f.RingRadius + float64(ring)*f.RingSpacing
	altitude := f.AltitudeBase + float64(ring)*f.AltitudeStep
	return polar(radius, angle, altitude), core.Vector3D{}
}

// OrbitalFormation spreads drones over altitude layers moving tangentially
type OrbitalFormation struct {
	Layers       int
	Radius       float64
	Spacing      float64
	AltitudeBase float64
	AltitudeStep float64
	PhaseOffset  float64
	OrbitSpeed   float64
}

func (f *OrbitalFormation) Slot(index, total int) (core.Vector3D, core.Vector3D) {
	layers := f.Layers
	if layers < 1 {
		layers = 1
	}
	layer := index % layers
	orbit := index / layers
	angle := math.Mod(f.PhaseOffset*float64(index), 2*math.Pi)
	radius := f.Radius + float64(orbit)*f.Spacing
	altitude := f.AltitudeBase + float64(layer)*f.AltitudeStep
	velocity := core.Vec(-math.Sin(angle), 0, math.Cos(angle)).Scale(f.OrbitSpeed)
	return polar(radius, angle, altitude), velocity
}

// WaveFormation lines drones up in rows ahead of the anchor, pushing forward
type WaveFormation struct {
	Columns       int
	ColumnSpacing float64
	DepthStep     float64
	ForwardOffset float64
	AltitudeBase  float64
	AltitudeStep  float64
	PushSpeed     float64
}

func (f *WaveFormation) Slot(index, total int) (core.Vector3D, core.Vector3D) {
	cols := f.Columns
	if cols < 1 {
		cols = 1
	}
	col := index % cols
	row := index / cols
	x := (float64(col) - float64(cols-1)/2) * f.ColumnSpacing
	z := -(f.ForwardOffset + float64(row)*f.DepthStep)
	altitude := f.AltitudeBase + float64(row)*f.AltitudeStep
	return core.Vec(x, altitude, z), core.Vec(0, 0, f.PushSpeed)
}

// VeilFormation fans drones along an arc, stepping up every LayerSize drones
type VeilFormation struct {
	ArcSpanDegrees float64
	Radius         float64
	AltitudeBase   float64
	AltitudeStep   float64
	LayerSize      int
}

func (f *VeilFormation) Slot(index, total int) (core.Vector3D, core.Vector3D) {
	span := f.ArcSpanDegrees * math.Pi / 180
	angle := 0.0
	if total > 1 {
		angle = -span/2 + span*float64(index)/float64(total-1)
	}
	layerSize := f.LayerSize
	if layerSize < 1 {
		layerSize = 1
	}
	layer := index / layerSize
	altitude := f.AltitudeBase + float64(layer)*f.AltitudeStep
	return core.Vec(f.Radius*math.Sin(angle), altitude, f.Radius*math.Cos(angle)), core.Vector3D{}
}

// RingFormation is the plain single ring used when no formation is named
type RingFormation struct {
	Radius   float64
	Altitude float64
}

func (f *RingFormation) Slot(index, total int) (core.Vector3D, core.Vector3D) {
	if total < 1 {
		total = 1
	}
	angle := 2 * math.Pi * float64(index) / float64(total)
	return polar(f.Radius, angle, f.Altitude), core.Vector3D{}
}

func polar(radius, angle, altitude float64) core.Vector3D {
	return core.Vec(radius*math.Cos(angle), altitude, radius*math.Sin(angle))
}

// NewFormation builds the named formation from params, falling back to a ring
func NewFormation(name string, p FormationParams) Formation {
	switch name {
	case FormationShield:
		return &ShieldFormation{
			RingCapacity: int(p.Get("ring_capacity", 8)),
			RingRadius:   p.Get("ring_radius", 360),
			RingSpacing:  p.Get("ring_spacing", 140),
			AltitudeBase: p.Get("altitude_base", 110),
			AltitudeStep: p.Get("altitude_step", 16),
		}
	case FormationOrbital:
		return &OrbitalFormation{
			Layers:       int(p.Get("orbital_layers", 3)),
			Radius:       p.Get("orbit_radius", 420),
			Spacing:      p.Get("orbit_spacing", 120),
			AltitudeBase: p.Get("altitude_base", 130),
			AltitudeStep: p.Get("altitude_step", 26),
			PhaseOffset:  p.Get("orbit_phase_offset", 0.5),
			OrbitSpeed:   p.Get("initial_orbit_speed", 22),
		}
	case FormationWave:
		return &WaveFormation{
			Columns:       int(p.Get("wave_columns", 5)),
			ColumnSpacing: p.Get("column_spacing", 180),
			DepthStep:     p.Get("depth_step", 170),
			ForwardOffset: p.Get("forward_offset", 320),
			AltitudeBase:  p.Get("altitude_base", 100),
			AltitudeStep:  p.Get("altitude_step", 10),
			PushSpeed:     p.Get("wave_push_speed", 26),
		}
	case FormationVeil:
		return &VeilFormation{
			ArcSpanDegrees: p.Get("arc_span_degrees", 140),
			Radius:         p.Get("radius", 460),
			AltitudeBase:   p.Get("altitude_base", 120),
			AltitudeStep:   p.Get("altitude_step", 20),
			LayerSize:      int(p.Get("layer_size", 6)),
		}
	default:
		return &RingFormation{Radius: 400, Altitude: 120}
	}
}
