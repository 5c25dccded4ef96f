package core

// Agent is the steering view of one drone.
type Agent struct {
	ID       int
	Position Vector3D
	Velocity Vector3D
	MaxSpeed float64
}

// Environment is what a drone can observe locally when steering.
type Environment struct {
	Friendlies []*Drone
	Enemies    []*Drone
	Assets     []*GroundAsset
}

// Behavior produces one steering force for an agent
type Behavior interface {
	Name() string
	Weight() float64
	Calculate(agent Agent, env *Environment) Vector3D
}

// Force is a weighted steering contribution tagged with its behavior
type Force struct {
	Force    Vector3D
	Weight   float64
	Behavior string
}

// SteeringEngine combines behaviors Reynolds-style: each force is limited to
// MaxForce, weighted, then summed.
type SteeringEngine struct {
	behaviors []Behavior
	MaxForce  float64
}

// NewSteeringEngine creates an engine evaluating behaviors in the given order
func NewSteeringEngine(maxForce float64, behaviors ...Behavior) *SteeringEngine {
	return &SteeringEngine{behaviors: behaviors, MaxForce: maxForce}
}

// Forces evaluates every behavior for the agent
func (e *SteeringEngine) Forces(agent Agent, env *Environment) []Force {
	forces := make([]Force, 0, len(e.behaviors))
	for _, b := range e.behaviors {
		forces = append(forces, Force{
			Force:    b.Calculate(agent, env),
			Weight:   b.Weight(),
			Behavior: b.Name(),
		})
	}
	return forces
}

// Steer returns the combined steering force for the agent
func (e *SteeringEngine) Steer(agent Agent, env *Environment) Vector3D {
	return CombineForces(e.Forces(agent, env), e.MaxForce)
}

// CombineForces limits each force to maxForce and sums them by weight
func CombineForces(forces []Force, maxForce float64) Vector3D {
	var total Vector3D
	for _, f := range forces {
		total = total.Add(f.Force.ClampMagnitude(maxForce).Scale(f.Weight))
	}
	return total
}

// steerToward turns a desired heading into a steering force: desired at full
// speed minus the current velocity.
func steerToward(direction Vector3D, agent Agent) Vector3D {
	if direction.Magnitude() <= 0 {
		return Vector3D{}
	}
	return direction.Normalize().Scale(agent.MaxSpeed).Subtract(agent.Velocity)
}

// SeparationBehavior pushes away from neighbours closer than MinDistance
type SeparationBehavior struct {
	W           float64
	MinDistance float64
}

func (b *SeparationBehavior) Name() string    { return "separation" }
func (b *SeparationBehavior) Weight() float64 { return b.W }

func (b *SeparationBehavior) Calculate(agent Agent, env *Environment) Vector3D {
	var sum Vector3D
	count := 0
	for _, other := range env.Friendlies {
		if other.ID == agent.ID || !other.IsActive() {
			continue
		}
		diff := agent.Position.Subtract(other.Position)
		dist := diff.Magnitude()
		if dist > 0 && dist < b.MinDistance {
			// closer neighbours push harder
			sum = sum.Add(diff.Scale(1.0 / (dist + Epsilon)))
			count++
		}
	}
	if count == 0 {
		return Vector3D{}
	}
	return steerToward(sum.Scale(1.0/float64(count)), agent)
}

// AlignmentBehavior matches the average heading of neighbours within Radius
type AlignmentBehavior struct {
	W      float64
	Radius float64
}

func (b *AlignmentBehavior) Name() string    { return "alignment" }
func (b *AlignmentBehavior) Weight() float64 { return b.W }

func (b *AlignmentBehavior) Calculate(agent Agent, env *Environment) Vector3D {
	var sum Vector3D
	count := 0
	for _, other := range env.Friendlies {
		if other.ID == agent.ID || !other.IsActive() {
			continue
		}
		if agent.Position.DistanceTo(other.Position) < b.Radius {
			sum = sum.Add(other.Velocity)
			count++
		}
	}
	if count == 0 {
		return Vector3D{}
	}
	return steerToward(sum.Scale(1.0/float64(count)), agent)
}

// CohesionBehavior steers toward the centre of neighbours within Radius
type CohesionBehavior struct {
	W      float64
	Radius float64
}

func (b *CohesionBehavior) Name() string    { return "cohesion" }
func (b *CohesionBehavior) Weight() float64 { return b.W }

func (b *CohesionBehavior) Calculate(agent Agent, env *Environment) Vector3D {
	var center Vector3D
	count := 0
	for _, other := range env.Friendlies {
		if other.ID == agent.ID || !other.IsActive() {
			continue
		}
		if agent.Position.DistanceTo(other.Position) < b.Radius {
			center = center.Add(other.Position)
			count++
		}
	}
	if count == 0 {
		return Vector3D{}
	}
	center = center.Scale(1.0 / float64(count))
	return steerToward(center.Subtract(agent.Position), agent)
}

// PursuitBehavior chases the nearest living enemy inside DetectionRange.
// There is no target sharing, so several drones may chase the same enemy.
type PursuitBehavior struct {
	W              float64
	DetectionRange float64
}

func (b *PursuitBehavior) Name() string    { return "pursuit" }
func (b *PursuitBehavior) Weight() float64 { return b.W }

func (b *PursuitBehavior) Calculate(agent Agent, env *Environment) Vector3D {
	target := b.Nearest(agent.Position, env.Enemies)
	if target == nil {
		return Vector3D{}
	}
	return steerToward(target.Position.Subtract(agent.Position), agent)
}

// Nearest returns the closest living enemy within detection range, or nil.
func (b *PursuitBehavior) Nearest(pos Vector3D, enemies []*Drone) *Drone {
	var best *Drone
	bestDist := b.DetectionRange
	for _, e := range enemies {
		if !e.IsActive() {
			continue
		}
		d := pos.DistanceTo(e.Position)
		if d < bestDist {
			best, bestDist = e, d
		}
	}
	return best
}

// AssetProtectionBehavior pulls back to the nearest asset once further than Radius
type AssetProtectionBehavior struct {
	W      float64
	Radius float64
}

func (b *AssetProtectionBehavior) Name() string    { return "asset_protection" }
func (b *AssetProtectionBehavior) Weight() float64 { return b.W }

func (b *AssetProtectionBehavior) Calculate(agent Agent, env *Environment) Vector3D {
	asset, dist := NearestAsset(agent.Position, env.Assets)
	if asset == nil || dist <= b.Radius {
		return Vector3D{}
	}
	return steerToward(asset.Position.Subtract(agent.Position), agent)
}
