package core

// DroneType distinguishes the friendly swarm from the two enemy classes
type DroneType string

const (
	DroneTypeFriendly    DroneType = "friendly"
	DroneTypeEnemyAir    DroneType = "enemy_air"    // hunts friendly drones
	DroneTypeEnemyGround DroneType = "enemy_ground" // attacks ground assets
)

// DroneRole is the tactical role of a friendly drone. Enemies carry no role.
type DroneRole string

const (
	RoleHunter      DroneRole = "hunter"
	RoleDefender    DroneRole = "defender"
	RoleInterceptor DroneRole = "interceptor"
)

// Roles lists the roles in the fixed order used for weighted draws.
var Roles = []DroneRole{RoleInterceptor, RoleDefender, RoleHunter}

// Entity defaults
const (
	DefaultDroneHealth      = 150.0
	DefaultEnemyHealth      = 100.0
	DefaultAssetHealth      = 100.0
	DefaultProtectionRadius = 800.0
)

// Drone is a single friendly or enemy drone.
// Dead drones stay in their collection with Health == 0.
type Drone struct {
	ID       int
	Position Vector3D
	Velocity Vector3D
	Type     DroneType
	Role     DroneRole
	Health   float64
	TargetID *int
}

// NewFriendlyDrone builds a friendly drone. An empty role becomes interceptor
// and a non-positive health becomes the default.
func NewFriendlyDrone(id int, pos, vel Vector3D, role DroneRole, health float64) *Drone {
	if role == "" {
		role = RoleInterceptor
	}
	if health <= 0 {
		health = DefaultDroneHealth
	}
	return &Drone{
		ID:       id,
		Position: pos,
		Velocity: vel,
		Type:     DroneTypeFriendly,
		Role:     role,
		Health:   health,
	}
}

// NewEnemyDrone builds an enemy drone of the given type.
func NewEnemyDrone(id int, pos, vel Vector3D, t DroneType, health float64) *Drone {
	if health <= 0 {
		health = DefaultEnemyHealth
	}
	return &Drone{
		ID:       id,
		Position: pos,
		Velocity: vel,
		Type:     t,
		Health:   health,
	}
}

// IsActive reports whether the drone is still alive
func (d *Drone) IsActive() bool {
	return d.Health > 0
}

// IsGround reports whether the drone is a ground-attack enemy
func (d *Drone) IsGround() bool {
	return d.Type == DroneTypeEnemyGround
}

// ApplyDamage removes health, clamping at zero. Negative damage is ignored.
// Returns true when this hit destroyed the drone.
func (d *Drone) ApplyDamage(damage float64) bool {
	if damage <= 0 || d.Health <= 0 {
		return false
	}
	d.Health = ClampHealth(d.Health - damage)
	return d.Health == 0
}

// SetTarget records the target id, nil clears it.
func (d *Drone) SetTarget(id *int) {
	if id == nil {
		d.TargetID = nil
		return
	}
	v := *id
	d.TargetID = &v
}

// GroundAsset is a stationary (or path-driven) asset the swarm defends.
type GroundAsset struct {
	ID               int
	Position         Vector3D
	Value            float64
	ProtectionRadius float64
	Health           float64
}

// NewGroundAsset builds an asset with default protection radius and health.
func NewGroundAsset(id int, pos Vector3D, value float64) *GroundAsset {
	return &GroundAsset{
		ID:               id,
		Position:         pos,
		Value:            value,
		ProtectionRadius: DefaultProtectionRadius,
		Health:           DefaultAssetHealth,
	}
}

// ApplyDamage chips the asset, clamping at zero.
func (a *GroundAsset) ApplyDamage(damage float64) {
	if damage <= 0 {
		return
	}
	a.Health = ClampHealth(a.Health - damage)
}

// ClampHealth floors a health value at zero.
func ClampHealth(h float64) float64 {
	if h < 0 {
		return 0
	}
	return h
}

// FindDrone resolves an id to a living drone, or nil for unknown or dead ids.
func FindDrone(drones []*Drone, id *int) *Drone {
	if id == nil {
		return nil
	}
	for _, d := range drones {
		if d.ID == *id && d.IsActive() {
			return d
		}
	}
	return nil
}

// ActiveDrones returns the living subset, preserving order.
func ActiveDrones(drones []*Drone) []*Drone {
	out := make([]*Drone, 0, len(drones))
	for _, d := range drones {
		if d.IsActive() {
			out = append(out, d)
		}
	}
	return out
}

// CountActive counts living drones.
func CountActive(drones []*Drone) int {
	n := 0
	for _, d := range drones {
		if d.IsActive() {
			n++
		}
	}
	return n
}

// NearestAsset returns the asset closest to pos and its distance.
func NearestAsset(pos Vector3D, assets []*GroundAsset) (*GroundAsset, float64) {
	var best *GroundAsset
	bestDist := 0.0
	for _, a := range assets {
		d := pos.DistanceTo(a.Position)
		if best == nil || d < bestDist {
			best, bestDist = a, d
		}
	}
	return best, bestDist
}

// NearestActive returns the living drone closest to pos and its distance.
func NearestActive(pos Vector3D, drones []*Drone) (*Drone, float64) {
	var best *Drone
	bestDist := 0.0
	for _, d := range drones {
		if !d.IsActive() {
			continue
		}
		dist := pos.DistanceTo(d.Position)
		if best == nil || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best, bestDist
}
