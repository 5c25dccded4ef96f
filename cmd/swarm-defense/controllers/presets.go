package controllers

import (
	"sort"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

// Algorithm keys
const (
	AlgorithmAdaptiveShield = "adaptive-shield"
	AlgorithmCBBA           = "cbba-superiority"
	AlgorithmCVT            = "cvt-cbf"
	AlgorithmQIPFD          = "qipfd-quantum"
	AlgorithmFlocking       = "flocking-boids"
)

// RoleWeights is a role-bias distribution. Draws walk the fields in
// declaration order: interceptor, defender, hunter.
type RoleWeights struct {
	Interceptor float64 `json:"interceptor" yaml:"interceptor"`
	Defender    float64 `json:"defender" yaml:"defender"`
	Hunter      float64 `json:"hunter" yaml:"hunter"`
}

// Of returns the weight given to role
func (w RoleWeights) Of(role core.DroneRole) float64 {
	switch role {
	case core.RoleInterceptor:
		return w.Interceptor
	case core.RoleDefender:
		return w.Defender
	case core.RoleHunter:
		return w.Hunter
	default:
		return 0
	}
}

// Normalize clamps negatives to zero and scales the weights to sum to 1.
// An all-zero distribution is replaced by fallback.
func (w RoleWeights) Normalize(fallback RoleWeights) RoleWeights {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	if w == (RoleWeights{}) {
		w = fallback
	}
	w = RoleWeights{Interceptor: clamp(w.Interceptor), Defender: clamp(w.Defender), Hunter: clamp(w.Hunter)}
	total := w.Interceptor + w.Defender + w.Hunter
	if total <= 0 {
		total = 1
	}
	return RoleWeights{Interceptor: w.Interceptor / total, Defender: w.Defender / total, Hunter: w.Hunter / total}
}

var (
	fallbackGroundBias = RoleWeights{Interceptor: 0.55, Defender: 0.25, Hunter: 0.2}
	fallbackAirBias    = RoleWeights{Interceptor: 0.4, Defender: 0.2, Hunter: 0.4}
)

// Params is the full tuning of one algorithm after overrides
type Params struct {
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description" yaml:"description"`
	Formation   string `json:"formation" yaml:"formation"`

	MaxSpeed       float64 `json:"max_speed" yaml:"max_speed"`
	WeaponRange    float64 `json:"weapon_range" yaml:"weapon_range"`
	DetectionRange float64 `json:"detection_range" yaml:"detection_range"`

	ThreatGain   float64 `json:"threat_gain" yaml:"threat_gain"`
	AssetGain    float64 `json:"asset_gain" yaml:"asset_gain"`
	TargetGain   float64 `json:"target_gain" yaml:"target_gain"`
	CohesionGain float64 `json:"cohesion_gain" yaml:"cohesion_gain"`

	ThreatGroundWeight float64 `json:"threat_ground_weight" yaml:"threat_ground_weight"`
	ThreatAirWeight    float64 `json:"threat_air_weight" yaml:"threat_air_weight"`
	CriticalMultiplier float64 `json:"critical_multiplier" yaml:"critical_multiplier"`
	ThreatDecay        float64 `json:"threat_decay" yaml:"threat_decay"`
	AssetPullGain      float64 `json:"asset_pull_gain" yaml:"asset_pull_gain"`
	ThreatResponseTime float64 `json:"threat_response_time" yaml:"threat_response_time"`

	RoleBiasGround RoleWeights `json:"role_bias_ground" yaml:"role_bias_ground"`
	RoleBiasAir    RoleWeights `json:"role_bias_air" yaml:"role_bias_air"`

	FormationParams FormationParams `json:"formation_params,omitempty" yaml:"formation_params,omitempty"`
}

// GenericParams returns the defaults every preset starts from
func GenericParams() Params {
	return Params{
		Formation:          FormationShield,
		MaxSpeed:           70,
		WeaponRange:        150,
		DetectionRange:     1500,
		ThreatGain:         4.5,
		AssetGain:          0.4,
		TargetGain:         6.5,
		CohesionGain:       1.2,
		ThreatGroundWeight: 7.5,
		ThreatAirWeight:    3.0,
		CriticalMultiplier: 4.0,
		ThreatDecay:        900,
		AssetPullGain:      1.0,
		ThreatResponseTime: 15,
	}
}

// Apply merges non-nil overrides into a copy of p
func (p Params) Apply(o Overrides) Params {
	out := p.clone()
	if o.MaxSpeed != nil {
		out.MaxSpeed = *o.MaxSpeed
	}
	if o.WeaponRange != nil {
		out.WeaponRange = *o.WeaponRange
	}
	if o.DetectionRange != nil {
		out.DetectionRange = *o.DetectionRange
	}
	return out
}

func (p Params) clone() Params {
	out := p
	out.FormationParams = p.FormationParams.clone()
	return out
}

// PresetTable is the immutable set of algorithm presets. Get hands out copies.
type PresetTable struct {
	presets map[string]Params
}

// NewPresetTable builds a table from the given presets
func NewPresetTable(presets map[string]Params) PresetTable {
	t := PresetTable{presets: make(map[string]Params, len(presets))}
	for k, p := range presets {
		t.presets[k] = p.clone()
	}
	return t
}

// Get returns a copy of the preset for key
func (t PresetTable) Get(key string) (Params, bool) {
	p, ok := t.presets[key]
	if !ok {
		return Params{}, false
	}
	return p.clone(), true
}

// Keys returns the preset keys in sorted order
func (t PresetTable) Keys() []string {
	keys := make([]string, 0, len(t.presets))
	for k := range t.presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len reports the number of presets
func (t PresetTable) Len() int {
	return len(t.presets)
}

// DefaultPresets builds a fresh copy of the stock preset table
func DefaultPresets() PresetTable {
	cbba := GenericParams()
	cbba.Label = "CBBA Superiority"
	cbba.Description = "Fast consensus-based target assignment with superior engagement"
	cbba.Formation = FormationShield
	cbba.MaxSpeed, cbba.WeaponRange, cbba.DetectionRange = 78, 170, 1800
	cbba.ThreatGain, cbba.AssetGain, cbba.TargetGain, cbba.CohesionGain = 7.5, 0.6, 10, 1.2
	cbba.ThreatGroundWeight, cbba.ThreatAirWeight, cbba.CriticalMultiplier = 12, 6.5, 7
	cbba.ThreatDecay, cbba.AssetPullGain, cbba.ThreatResponseTime = 750, 1.7, 7
	cbba.RoleBiasGround = RoleWeights{Interceptor: 0.7, Defender: 0.2, Hunter: 0.1}
	cbba.RoleBiasAir = RoleWeights{Interceptor: 0.5, Defender: 0.15, Hunter: 0.35}
	cbba.FormationParams = FormationParams{
		"ring_capacity": 8,
		"ring_radius":   380,
		"ring_spacing":  130,
		"altitude_base": 120,
		"altitude_step": 18,
	}

	cvt := GenericParams()
	cvt.Label = "CVT-CBF Defense"
	cvt.Description = "Adaptive density fields with control barrier safety constraints"
	cvt.Formation = FormationVeil
	cvt.MaxSpeed, cvt.WeaponRange, cvt.DetectionRange = 76, 170, 1800
	cvt.ThreatGain, cvt.AssetGain, cvt.TargetGain, cvt.CohesionGain = 7.0, 0.8, 9.5, 1.5
	cvt.ThreatGroundWeight, cvt.ThreatAirWeight, cvt.CriticalMultiplier = 11, 6, 6.5
	cvt.ThreatDecay, cvt.AssetPullGain, cvt.ThreatResponseTime = 800, 1.6, 9
	cvt.RoleBiasGround = RoleWeights{Interceptor: 0.65, Defender: 0.25, Hunter: 0.1}
	cvt.RoleBiasAir = RoleWeights{Interceptor: 0.5, Defender: 0.15, Hunter: 0.35}
	cvt.FormationParams = FormationParams{
		"arc_span_degrees": 120,
		"radius":           420,
		"altitude_base":    115,
		"altitude_step":    18,
		"layer_size":       6,
	}

	qipfd := GenericParams()
	qipfd.Label = "QIPFD Quantum"
	qipfd.Description = "Quantum-inspired potential field dynamics for adaptive threat response"
	qipfd.Formation = FormationOrbital
	qipfd.MaxSpeed, qipfd.WeaponRange, qipfd.DetectionRange = 76, 160, 1700
	qipfd.ThreatGain, qipfd.AssetGain, qipfd.TargetGain, qipfd.CohesionGain = 5.2, 0.5, 8.5, 1.7
	qipfd.ThreatGroundWeight, qipfd.ThreatAirWeight, qipfd.CriticalMultiplier = 8.7, 4.0, 4.8
	qipfd.ThreatDecay, qipfd.AssetPullGain, qipfd.ThreatResponseTime = 800, 1.2, 12
	qipfd.RoleBiasGround = RoleWeights{Interceptor: 0.5, Defender: 0.25, Hunter: 0.25}
	qipfd.RoleBiasAir = RoleWeights{Interceptor: 0.35, Defender: 0.25, Hunter: 0.4}
	qipfd.FormationParams = FormationParams{
		"orbital_layers":      3,
		"orbit_radius":        440,
		"orbit_spacing":       110,
		"altitude_base":       130,
		"altitude_step":       24,
		"orbit_phase_offset":  0.6,
		"initial_orbit_speed": 26,
	}

	shield := GenericParams()
	shield.Label = "Adaptive Shield"
	shield.Description = "Layered rings holding over the assets with threat-weighted potential fields"

	flocking := GenericParams()
	flocking.Label = "Flocking Boids"
	flocking.Description = "Reynolds flocking baseline with naive nearest-enemy pursuit"
	flocking.Formation = FormationWave

	return NewPresetTable(map[string]Params{
		AlgorithmCBBA:           cbba,
		AlgorithmCVT:            cvt,
		AlgorithmQIPFD:          qipfd,
		AlgorithmAdaptiveShield: shield,
		AlgorithmFlocking:       flocking,
	})
}
