package simulation

import "github.com/picogrid/swarm-defense/cmd/swarm-defense/core"

// FriendlySnapshot is a friendly drone as recorded in a frame
type FriendlySnapshot struct {
	ID       int            `json:"id"`
	Position core.Vector3D  `json:"position"`
	Velocity core.Vector3D  `json:"velocity"`
	Health   float64        `json:"health"`
	Role     core.DroneRole `json:"role"`
	TargetID *int           `json:"target_id"`
}

// EnemySnapshot is an enemy drone as recorded in a frame
type EnemySnapshot struct {
	ID       int            `json:"id"`
	Position core.Vector3D  `json:"position"`
	Velocity core.Vector3D  `json:"velocity"`
	Health   float64        `json:"health"`
	Type     core.DroneType `json:"type"`
}

// AssetSnapshot is a ground asset as recorded in a frame
type AssetSnapshot struct {
	ID       int           `json:"id"`
	Position core.Vector3D `json:"position"`
	Value    float64       `json:"value"`
	Health   float64       `json:"health"`
}

// Frame is an immutable snapshot of the battlefield at one recorded tick
type Frame struct {
	Time       float64            `json:"time"`
	Friendlies []FriendlySnapshot `json:"friendlies"`
	Enemies    []EnemySnapshot    `json:"enemies"`
	Assets     []AssetSnapshot    `json:"assets"`
}

func snapshot(t float64, friendlies, enemies []*core.Drone, assets []*core.GroundAsset) Frame {
	f := Frame{
		Time:       t,
		Friendlies: make([]FriendlySnapshot, len(friendlies)),
		Enemies:    make([]EnemySnapshot, len(enemies)),
		Assets:     make([]AssetSnapshot, len(assets)),
	}
	for i, d := range friendlies {
		var target *int
		if d.TargetID != nil {
			id := *d.TargetID
			target = &id
		}
		f.Friendlies[i] = FriendlySnapshot{
			ID:       d.ID,
			Position: d.Position,
			Velocity: d.Velocity,
			Health:   d.Health,
			Role:     d.Role,
			TargetID: target,
		}
	}
	for i, d := range enemies {
		f.Enemies[i] = EnemySnapshot{
			ID:       d.ID,
			Position: d.Position,
			Velocity: d.Velocity,
			Health:   d.Health,
			Type:     d.Type,
		}
	}
	for i, a := range assets {
		f.Assets[i] = AssetSnapshot{
			ID:       a.ID,
			Position: a.Position,
			Value:    a.Value,
			Health:   a.Health,
		}
	}
	return f
}

// ActiveFriendlies counts living friendlies in the frame
func (f Frame) ActiveFriendlies() int {
	n := 0
	for _, d := range f.Friendlies {
		if d.Health > 0 {
			n++
		}
	}
	return n
}

// ActiveEnemies counts living enemies in the frame
func (f Frame) ActiveEnemies() int {
	n := 0
	for _, d := range f.Enemies {
		if d.Health > 0 {
			n++
		}
	}
	return n
}

// RoleCounts counts living friendlies per role
func (f Frame) RoleCounts() map[core.DroneRole]int {
	counts := make(map[core.DroneRole]int, len(core.Roles))
	for _, role := range core.Roles {
		counts[role] = 0
	}
	for _, d := range f.Friendlies {
		if d.Health > 0 && d.Role != "" {
			counts[d.Role]++
		}
	}
	return counts
}

// SliceFrames returns frames[start:end] with both bounds clamped. A negative
// or missing end means "to the last frame".
func SliceFrames(frames []Frame, start, end int) []Frame {
	n := len(frames)
	if start < 0 {
		start = 0
	}
	if end < 0 || end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return frames[start:end]
}
