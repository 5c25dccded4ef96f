package controllers

import (
	"math"
	"math/rand"
	"testing"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
)

func buildController(t *testing.T, key string, opts ...Option) Controller {
	t.Helper()
	opts = append([]Option{WithRand(rand.New(rand.NewSource(42)))}, opts...)
	c, err := NewFactory(DefaultPresets()).Build(key, Overrides{}, opts...)
	if err != nil {
		t.Fatalf("Build(%q) error: %v", key, err)
	}
	return c
}

// scenario spawns friendlies in formation around the origin and enemies on a
// ring 900 m out, alternating ground and air.
func scenario(c Controller, friendlies, enemies int) ([]*core.Drone, []*core.Drone, []*core.GroundAsset) {
	var fs, es []*core.Drone
	for i := 0; i < friendlies; i++ {
		pos, vel := c.SpawnFriendly(i, friendlies, core.Vector3D{})
		fs = append(fs, core.NewFriendlyDrone(i, pos, vel, "", 0))
	}
	for i := 0; i < enemies; i++ {
		angle := 2 * math.Pi * float64(i) / float64(enemies)
		pos := core.Vec(900*math.Cos(angle), 80, 900*math.Sin(angle))
		typ := core.DroneTypeEnemyAir
		if i%2 == 0 {
			typ = core.DroneTypeEnemyGround
		}
		vel := pos.Scale(-1).Normalize().Scale(40)
		es = append(es, core.NewEnemyDrone(1000+i, pos, vel, typ, 0))
	}
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}
	return fs, es, assets
}

var coverageStrategies = []string{AlgorithmAdaptiveShield, AlgorithmCBBA, AlgorithmCVT, AlgorithmQIPFD}

func TestCoverageInvariant(t *testing.T) {
	tests := []struct {
		name       string
		friendlies int
		enemies    int
	}{
		{"more friendlies", 15, 8},
		{"equal forces", 6, 6},
		{"single pair", 1, 1},
	}

	for _, key := range coverageStrategies {
		for _, comm := range []bool{false, true} {
			if comm && key != AlgorithmCBBA {
				continue
			}
			for _, tt := range tests {
				name := key + "/" + tt.name
				if comm {
					name += "/communication"
				}
				t.Run(name, func(t *testing.T) {
					c := buildController(t, key, WithCommunication(comm, 1000))
					fs, es, assets := scenario(c, tt.friendlies, tt.enemies)

					covered := make(map[int]bool)
					for _, f := range fs {
						target := c.SelectTarget(f, es, assets, fs)
						if target == nil {
							t.Fatalf("drone %d got no target with %d active enemies", f.ID, len(es))
						}
						covered[*target] = true
					}
					for _, e := range es {
						if !covered[e.ID] {
							t.Errorf("enemy %d not covered by any friendly", e.ID)
						}
					}
				})
			}
		}
	}
}

func TestCoverageIgnoresDeadEnemies(t *testing.T) {
	for _, key := range coverageStrategies {
		t.Run(key, func(t *testing.T) {
			c := buildController(t, key)
			fs, es, assets := scenario(c, 4, 4)
			es[1].ApplyDamage(1000)

			for _, f := range fs {
				target := c.SelectTarget(f, es, assets, fs)
				if target != nil && *target == es[1].ID {
					t.Errorf("drone %d targeted dead enemy %d", f.ID, es[1].ID)
				}
			}

			for _, e := range es {
				e.ApplyDamage(1000)
			}
			if target := c.SelectTarget(fs[0], es, assets, fs); target != nil {
				t.Errorf("expected nil target with no active enemies, got %d", *target)
			}
		})
	}
}

func TestRoundRobinPartition(t *testing.T) {
	c := buildController(t, AlgorithmAdaptiveShield)
	fs, es, assets := scenario(c, 3, 9)
	// air only, so no ground-threat boost applies
	for _, e := range es {
		e.Type = core.DroneTypeEnemyAir
	}

	owners := make(map[int]int)
	for fi, f := range fs {
		view := newCoverageView(f, es, fs)
		if view.droneIndex != fi {
			t.Fatalf("drone %d index = %d, want %d", f.ID, view.droneIndex, fi)
		}
		var mine []int
		for ei, e := range view.enemies {
			if view.isPrimary(ei, view.droneIndex) {
				if prev, ok := owners[e.ID]; ok {
					t.Errorf("enemy %d owned by drones %d and %d", e.ID, prev, f.ID)
				}
				owners[e.ID] = f.ID
				mine = append(mine, ei)
			}
		}
		want := []int{fi, fi + 3, fi + 6}
		if len(mine) != 3 {
			t.Fatalf("drone %d owns %v, want %v", f.ID, mine, want)
		}
		for i := range want {
			if mine[i] != want[i] {
				t.Errorf("drone %d owns %v, want %v", f.ID, mine, want)
				break
			}
		}

		target := c.SelectTarget(f, es, assets, fs)
		found := false
		for _, ei := range mine {
			if es[ei].ID == *target {
				found = true
			}
		}
		if !found {
			t.Errorf("drone %d picked %d outside its primaries", f.ID, *target)
		}
	}
	if len(owners) != 9 {
		t.Errorf("expected 9 owned enemies, got %d", len(owners))
	}
}

func TestAssignmentHash(t *testing.T) {
	if got := AssignmentHash(1, 1000); got != float64((7919+1000*6547)%1000) {
		t.Errorf("AssignmentHash(1, 1000) = %v", got)
	}
	if got := AssignmentHash(-3, 0); got < 0 || got >= 1000 {
		t.Errorf("AssignmentHash out of range: %v", got)
	}
}

func TestSpawnDeterminism(t *testing.T) {
	anchor := core.Vec(100, 0, -50)
	for _, key := range DefaultPresets().Keys() {
		t.Run(key, func(t *testing.T) {
			a := buildController(t, key)
			b := buildController(t, key)
			for i := 0; i < 15; i++ {
				pa, va := a.SpawnFriendly(i, 15, anchor)
				pb, vb := b.SpawnFriendly(i, 15, anchor)
				if pa != pb || va != vb {
					t.Fatalf("spawn %d differs: %v/%v vs %v/%v", i, pa, va, pb, vb)
				}
			}
		})
	}
}

func TestFormationSlots(t *testing.T) {
	const tol = 1e-9
	near := func(a, b core.Vector3D) bool { return a.DistanceTo(b) < tol }

	t.Run("shield first ring", func(t *testing.T) {
		c := buildController(t, AlgorithmCBBA)
		pos, vel := c.SpawnFriendly(0, 15, core.Vector3D{})
		if !near(pos, core.Vec(380, 120, 0)) || !vel.IsZero() {
			t.Errorf("slot 0 = %v %v", pos, vel)
		}
		// second ring holds 7 drones at radius 510, altitude 138
		pos, _ = c.SpawnFriendly(8, 15, core.Vector3D{})
		if !near(pos, core.Vec(510, 138, 0)) {
			t.Errorf("slot 8 = %v", pos)
		}
	})

	t.Run("orbital tangent velocity", func(t *testing.T) {
		f := NewFormation(FormationOrbital, nil)
		pos, vel := f.Slot(1, 6)
		angle := 0.5
		want := core.Vec(420*math.Cos(angle), 156, 420*math.Sin(angle))
		if !near(pos, want) {
			t.Errorf("orbital pos = %v, want %v", pos, want)
		}
		if math.Abs(vel.Magnitude()-22) > tol || math.Abs(vel.Dot(core.Vec(pos.X, 0, pos.Z))) > 1e-6 {
			t.Errorf("orbital velocity %v not tangential at speed 22", vel)
		}
	})

	t.Run("wave rows", func(t *testing.T) {
		f := NewFormation(FormationWave, nil)
		pos, vel := f.Slot(7, 10)
		if !near(pos, core.Vec(0, 110, -490)) || !near(vel, core.Vec(0, 0, 26)) {
			t.Errorf("wave slot 7 = %v %v", pos, vel)
		}
	})

	t.Run("veil single drone centred", func(t *testing.T) {
		f := NewFormation(FormationVeil, nil)
		pos, _ := f.Slot(0, 1)
		if !near(pos, core.Vec(0, 120, 460)) {
			t.Errorf("veil slot = %v", pos)
		}
	})

	t.Run("unknown formation ring", func(t *testing.T) {
		f := NewFormation("", nil)
		pos, _ := f.Slot(0, 4)
		if !near(pos, core.Vec(400, 120, 0)) {
			t.Errorf("ring slot = %v", pos)
		}
	})
}

func TestSpeedClamp(t *testing.T) {
	for _, key := range DefaultPresets().Keys() {
		t.Run(key, func(t *testing.T) {
			c := buildController(t, key, WithCommunication(key == AlgorithmCBBA, 1000))
			fs, es, assets := scenario(c, 12, 10)
			// crowd two drones together to trigger repulsion terms
			fs[1].Position = fs[0].Position.Add(core.Vec(0.5, 0, 0))
			maxSpeed := c.Params().MaxSpeed

			for tick := 0; tick < 5; tick++ {
				for _, f := range fs {
					f.SetTarget(c.SelectTarget(f, es, assets, fs))
					v := c.ComputeDesiredVelocity(f, es, assets, fs)
					if v.Magnitude() > maxSpeed+1e-9 {
						t.Fatalf("tick %d drone %d speed %.3f exceeds %.1f", tick, f.ID, v.Magnitude(), maxSpeed)
					}
					f.Velocity = v
				}
			}

			tel := c.Telemetry()
			if tel.IterationCount < 0 || tel.FieldStrength < 0 || tel.ScoutCount < 0 {
				t.Errorf("negative telemetry: %+v", tel)
			}
		})
	}
}

func TestEngagementModeFor(t *testing.T) {
	tests := []struct {
		name     string
		ground   bool
		friendly int
		enemy    int
		distance float64
		want     EngagementMode
	}{
		{"three on one", false, 3, 1, 300, EngageAggressive},
		{"ground always immediate", true, 0, 5, 1000, EngageImmediately},
		{"point blank", false, 1, 4, 50, EngageAggressive},
		{"even", false, 2, 2, 300, EngageCautious},
		{"outnumbered in range", false, 1, 3, 150, WaitForSupport},
		{"half strength", false, 1, 2, 300, WaitForSupport},
		{"hopeless", false, 1, 4, 300, Disengage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EngagementModeFor(tt.ground, tt.friendly, tt.enemy, tt.distance, 170); got != tt.want {
				t.Errorf("EngagementModeFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCBBALocalSuperiority(t *testing.T) {
	c := buildController(t, AlgorithmCBBA).(*CBBA)
	enemy := core.NewEnemyDrone(1000, core.Vec(0, 100, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	fs := []*core.Drone{
		core.NewFriendlyDrone(0, core.Vec(200, 100, 0), core.Vector3D{}, "", 0),
		core.NewFriendlyDrone(1, core.Vec(-200, 100, 0), core.Vector3D{}, "", 0),
		core.NewFriendlyDrone(2, core.Vec(0, 100, 200), core.Vector3D{}, "", 0),
	}
	es := []*core.Drone{enemy}

	fs[0].SetTarget(c.SelectTarget(fs[0], es, nil, fs))
	if fs[0].TargetID == nil || *fs[0].TargetID != enemy.ID {
		t.Fatalf("expected target %d, got %v", enemy.ID, fs[0].TargetID)
	}
	v := c.ComputeDesiredVelocity(fs[0], es, nil, fs)
	if got := c.Mode(fs[0].ID); got != EngageAggressive {
		t.Errorf("mode = %v, want %v", got, EngageAggressive)
	}
	if v.X >= 0 {
		t.Errorf("expected attraction toward the enemy, got %v", v)
	}
}

func TestCBBABundleConsensus(t *testing.T) {
	c := buildController(t, AlgorithmCBBA, WithCommunication(true, 1000)).(*CBBA)
	a := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), core.Vector3D{}, "", 0)
	b := core.NewFriendlyDrone(1, core.Vec(-200, 100, 0), core.Vector3D{}, "", 0)
	near := core.NewEnemyDrone(1000, core.Vec(100, 100, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	far := core.NewEnemyDrone(1001, core.Vec(-300, 100, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	fs := []*core.Drone{a, b}
	es := []*core.Drone{near, far}

	if got := c.SelectTarget(a, es, nil, fs); got == nil || *got != near.ID {
		t.Fatalf("drone a target = %v, want %d", got, near.ID)
	}
	// b is outbid on the near enemy and keeps the far one
	if got := c.SelectTarget(b, es, nil, fs); got == nil || *got != far.ID {
		t.Fatalf("drone b target = %v, want %d", got, far.ID)
	}

	want := 150 / (1 + 100.0/500)
	if bid := TaskValue(a.Position, 100, 1000, near, nil); math.Abs(bid-want) > 1e-9 {
		t.Errorf("TaskValue = %v, want %v", bid, want)
	}
}

func TestCBBAResources(t *testing.T) {
	c := buildController(t, AlgorithmCBBA).(*CBBA)
	for i := 0; i < 3; i++ {
		c.RecordShot(7)
	}
	c.RecordMotion(7, core.Vec(10, 0, 0), 1)
	ammo, fuel := c.Resources(7)
	if ammo != 97 || fuel != 999 {
		t.Errorf("resources = %v/%v, want 97/999", ammo, fuel)
	}

	drone := core.NewFriendlyDrone(7, core.Vector3D{}, core.Vector3D{}, "", 0)
	enemy := core.NewEnemyDrone(1000, core.Vec(0, 0, 500), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	if v := TaskValue(drone.Position, 0, 1000, enemy, nil); v != 0 {
		t.Errorf("empty magazine should bid 0, got %v", v)
	}
}

func TestAdaptiveShieldZeroField(t *testing.T) {
	c := buildController(t, AlgorithmAdaptiveShield)
	drone := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), core.Vector3D{}, "", 0)
	v := c.ComputeDesiredVelocity(drone, nil, nil, []*core.Drone{drone})
	if !v.IsZero() {
		t.Errorf("expected zero velocity with nothing in view, got %v", v)
	}
}

func TestCVTSafetyFilterReturnsToAsset(t *testing.T) {
	c := buildController(t, AlgorithmCVT).(*CVTCBF)
	drone := core.NewFriendlyDrone(0, core.Vec(800, 100, 0), core.Vector3D{}, "", 0)
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}

	v := c.SafetyFilter(drone, core.Vec(50, 0, 0), assets, []*core.Drone{drone}, nil)
	if math.Abs(v.Magnitude()-c.Params().MaxSpeed) > 1e-9 || v.X >= 0 {
		t.Errorf("expected full speed back to the asset, got %v", v)
	}
}

func TestCVTVoronoiCell(t *testing.T) {
	c := buildController(t, AlgorithmCVT).(*CVTCBF)
	left := core.NewFriendlyDrone(0, core.Vec(-250, 100, 0), core.Vector3D{}, "", 0)
	right := core.NewFriendlyDrone(1, core.Vec(250, 100, 0), core.Vector3D{}, "", 0)
	fs := []*core.Drone{left, right}

	cell := c.VoronoiCell(left, fs)
	if len(cell) != 250 {
		t.Errorf("expected half of the 500-point grid, got %d", len(cell))
	}
	for _, q := range cell {
		if q.X > 0 {
			t.Fatalf("sample %v belongs to the right drone", q)
		}
	}

	if got := len(SampleGrid(Bounds{X: 1000, Altitude: 200, Z: 1000})); got != 500 {
		t.Errorf("grid size = %d, want 500", got)
	}
}

func TestQIPFDHoldsOverAssetWithoutThreats(t *testing.T) {
	c := buildController(t, AlgorithmQIPFD)
	drone := core.NewFriendlyDrone(0, core.Vec(100, 120, 0), core.Vector3D{}, "", 0)
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}

	v := c.ComputeDesiredVelocity(drone, nil, assets, []*core.Drone{drone})
	if v.X >= 0 || v.Y >= 0 {
		t.Errorf("expected velocity toward the asset, got %v", v)
	}
	if v.Magnitude() > c.Params().MaxSpeed {
		t.Errorf("speed %v exceeds max", v.Magnitude())
	}
}

func TestRoleDraw(t *testing.T) {
	w := RoleWeights{Interceptor: 0.5, Defender: 0.2, Hunter: 0.3}
	tests := []struct {
		roll float64
		want core.DroneRole
	}{
		{0.1, core.RoleInterceptor},
		{0.5, core.RoleInterceptor},
		{0.6, core.RoleDefender},
		{0.75, core.RoleHunter},
	}
	for _, tt := range tests {
		if got := drawRole(w, tt.roll); got != tt.want {
			t.Errorf("drawRole(%v) = %v, want %v", tt.roll, got, tt.want)
		}
	}
	if got := drawRole(RoleWeights{}, 0.5); got != core.RoleInterceptor {
		t.Errorf("empty weights should fall back to interceptor, got %v", got)
	}

	n := RoleWeights{Interceptor: -1, Defender: 1, Hunter: 3}.Normalize(fallbackAirBias)
	if n.Interceptor != 0 || n.Defender != 0.25 || n.Hunter != 0.75 {
		t.Errorf("Normalize = %+v", n)
	}
	got := (RoleWeights{}).Normalize(fallbackGroundBias)
	if math.Abs(got.Interceptor-0.55) > 1e-9 || math.Abs(got.Defender-0.25) > 1e-9 || math.Abs(got.Hunter-0.2) > 1e-9 {
		t.Errorf("empty weights should use fallback, got %+v", got)
	}
}

func TestUpdateRoleUsesGroundBias(t *testing.T) {
	presets := NewPresetTable(map[string]Params{
		AlgorithmAdaptiveShield: func() Params {
			p := GenericParams()
			p.RoleBiasGround = RoleWeights{Hunter: 1}
			p.RoleBiasAir = RoleWeights{Defender: 1}
			return p
		}(),
	})
	c, err := NewFactory(presets).Build(AlgorithmAdaptiveShield, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	drone := core.NewFriendlyDrone(0, core.Vector3D{}, core.Vector3D{}, "", 0)
	air := core.NewEnemyDrone(1000, core.Vec(0, 0, 900), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	ground := core.NewEnemyDrone(1001, core.Vec(0, 0, 900), core.Vector3D{}, core.DroneTypeEnemyGround, 0)

	if got := c.UpdateRole(drone, []*core.Drone{air}, nil); got != core.RoleDefender {
		t.Errorf("air-only role = %v, want defender", got)
	}
	if got := c.UpdateRole(drone, []*core.Drone{air, ground}, nil); got != core.RoleHunter {
		t.Errorf("ground role = %v, want hunter", got)
	}
	ground.ApplyDamage(1000)
	if got := c.UpdateRole(drone, []*core.Drone{air, ground}, nil); got != core.RoleDefender {
		t.Errorf("dead ground enemy should not count, got %v", got)
	}
}

func TestFactoryResolution(t *testing.T) {
	f := NewFactory(DefaultPresets())
	tests := []struct {
		key      string
		want     string
		fellBack bool
	}{
		{"cbba-superiority", AlgorithmCBBA, false},
		{"CBBA", AlgorithmCBBA, false},
		{"cvt", AlgorithmCVT, false},
		{"qipfd-v2", AlgorithmQIPFD, false},
		{"flocking", AlgorithmFlocking, false},
		{"adaptive-shield", AlgorithmAdaptiveShield, false},
		{"pso-aco-abc", AlgorithmAdaptiveShield, true},
		{"", AlgorithmAdaptiveShield, true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, fellBack := f.Resolve(tt.key)
			if got != tt.want || fellBack != tt.fellBack {
				t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.key, got, fellBack, tt.want, tt.fellBack)
			}
			c, err := f.Build(tt.key, Overrides{})
			if err != nil {
				t.Fatalf("Build(%q) error: %v", tt.key, err)
			}
			if c.Key() != tt.want {
				t.Errorf("Build(%q).Key() = %q", tt.key, c.Key())
			}
		})
	}

	if _, err := NewFactory(NewPresetTable(nil)).Build("anything", Overrides{}); err == nil {
		t.Error("expected an error from an empty preset table")
	}
	if got := len(f.Algorithms()); got != 5 {
		t.Errorf("Algorithms() returned %d entries, want 5", got)
	}
}

func TestFactoryOverrides(t *testing.T) {
	speed, weapon := 50.0, 120.0
	c, err := NewFactory(DefaultPresets()).Build(AlgorithmCVT, Overrides{MaxSpeed: &speed, WeaponRange: &weapon})
	if err != nil {
		t.Fatal(err)
	}
	p := c.Params()
	if p.MaxSpeed != 50 || p.WeaponRange != 120 || p.DetectionRange != 1800 {
		t.Errorf("overrides not applied: %+v", p)
	}
}

func TestPresetImmutability(t *testing.T) {
	presets := DefaultPresets()
	p, ok := presets.Get(AlgorithmCBBA)
	if !ok {
		t.Fatal("cbba preset missing")
	}
	p.MaxSpeed = 1
	p.FormationParams["ring_radius"] = 1

	again, _ := presets.Get(AlgorithmCBBA)
	if again.MaxSpeed != 78 || again.FormationParams["ring_radius"] != 380 {
		t.Errorf("preset table was mutated through a copy: %+v", again)
	}

	c, err := NewFactory(presets).Build(AlgorithmCBBA, Overrides{})
	if err != nil {
		t.Fatal(err)
	}
	params := c.Params()
	params.FormationParams["ring_radius"] = 1
	if pos, _ := c.SpawnFriendly(0, 8, core.Vector3D{}); math.Abs(pos.X-380) > 1e-9 {
		t.Errorf("controller formation changed after Params mutation: %v", pos)
	}

	if fresh, _ := DefaultPresets().Get(AlgorithmCBBA); fresh.FormationParams["ring_radius"] != 380 {
		t.Error("DefaultPresets should build a fresh table")
	}
}

func TestFlockingChasesNearestVisible(t *testing.T) {
	c := buildController(t, AlgorithmFlocking)
	drone := core.NewFriendlyDrone(0, core.Vector3D{}, core.Vector3D{}, "", 0)
	nearby := core.NewEnemyDrone(1000, core.Vec(300, 0, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	far := core.NewEnemyDrone(1001, core.Vec(-1200, 0, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	es := []*core.Drone{far, nearby}

	if got := c.SelectTarget(drone, es, nil, []*core.Drone{drone}); got == nil || *got != nearby.ID {
		t.Errorf("target = %v, want %d", got, nearby.ID)
	}
	v := c.ComputeDesiredVelocity(drone, es, nil, []*core.Drone{drone})
	if v.X <= 0 {
		t.Errorf("expected movement toward the closer enemy, got %v", v)
	}
}

func vecClose(a, b core.Vector3D, tol float64) bool {
	return a.DistanceTo(b) <= tol
}

func TestCVTSafetyFilterNeighbourRepulsion(t *testing.T) {
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}
	nominal := core.Vec(10, 0, 0)

	tests := []struct {
		name        string
		neighbours  []core.Vector3D
		want        core.Vector3D
		corrections int
	}{
		{"neighbour at 5 m", []core.Vector3D{core.Vec(5, 100, 0)}, core.Vec(5, 0, 0), 1},
		{"neighbour at 15 m", []core.Vector3D{core.Vec(0, 100, 15)}, core.Vec(10, 0, -5), 1},
		{"neighbour beyond twice the safe distance", []core.Vector3D{core.Vec(25, 100, 0)}, nominal, 0},
		{"two neighbours", []core.Vector3D{core.Vec(5, 100, 0), core.Vec(0, 100, 10)}, core.Vec(5, 0, -5), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildController(t, AlgorithmCVT).(*CVTCBF)
			drone := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), core.Vector3D{}, "", 0)
			fs := []*core.Drone{drone}
			for i, pos := range tt.neighbours {
				fs = append(fs, core.NewFriendlyDrone(i+1, pos, core.Vector3D{}, "", 0))
			}

			got := c.SafetyFilter(drone, nominal, assets, fs, nil)
			if !vecClose(got, tt.want, 1e-9) {
				t.Errorf("SafetyFilter() = %v, want %v", got, tt.want)
			}
			if n := c.Telemetry().SafetyCorrections; n != tt.corrections {
				t.Errorf("corrections = %d, want %d", n, tt.corrections)
			}
		})
	}
}

func TestCVTSafetyFilterNearestDefenderIntercepts(t *testing.T) {
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}
	nominal := core.Vec(1, 0, 0)
	closest := core.NewFriendlyDrone(0, core.Vec(50, 100, 0), core.Vector3D{}, "", 0)
	farther := core.NewFriendlyDrone(1, core.Vec(300, 100, 0), core.Vector3D{}, "", 0)
	fs := []*core.Drone{closest, farther}

	// 100 m out at 20 m/s: five seconds from impact, intercept point at x=50
	urgent := core.NewEnemyDrone(1000, core.Vec(100, 0, 0), core.Vec(-20, 0, 0), core.DroneTypeEnemyGround, 0)
	slow := core.NewEnemyDrone(1001, core.Vec(100, 0, 0), core.Vec(-5, 0, 0), core.DroneTypeEnemyGround, 0)
	air := core.NewEnemyDrone(1002, core.Vec(100, 0, 0), core.Vec(-20, 0, 0), core.DroneTypeEnemyAir, 0)

	c := buildController(t, AlgorithmCVT).(*CVTCBF)
	maxSpeed := c.Params().MaxSpeed

	tests := []struct {
		name   string
		drone  *core.Drone
		threat *core.Drone
		want   core.Vector3D
	}{
		{"closest defender dives at the intercept", closest, urgent, core.Vec(0, -maxSpeed, 0)},
		{"farther defender keeps its command", farther, urgent, nominal},
		{"threat outside the defense window", closest, slow, nominal},
		{"air threat never overrides", closest, air, nominal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.SafetyFilter(tt.drone, nominal, assets, fs, []*core.Drone{tt.threat})
			if !vecClose(got, tt.want, 1e-9) {
				t.Errorf("SafetyFilter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCVTThreatUrgency(t *testing.T) {
	origin := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}
	ground := func(x, speed float64) *core.Drone {
		return core.NewEnemyDrone(1000, core.Vec(x, 0, 0), core.Vec(-speed, 0, 0), core.DroneTypeEnemyGround, 0)
	}

	tests := []struct {
		name    string
		enemy   *core.Drone
		primary bool
		assets  []*core.GroundAsset
		want    float64
	}{
		{"ground threat 7.5 s out", ground(150, 20), false, origin, 0.5},
		{"ground threat outside the window", ground(400, 20), false, origin, 0},
		{"primary floor", ground(400, 20), true, origin, 0.8},
		{"primary closing fast", ground(30, 20), true, origin, 0.9},
		{"stationary ground threat", ground(150, 0), false, origin, 0},
		{"air threat", core.NewEnemyDrone(1000, core.Vec(50, 80, 0), core.Vec(-20, 0, 0), core.DroneTypeEnemyAir, 0), false, origin, 0},
		{"most urgent asset wins", ground(300, 30), false, []*core.GroundAsset{
			core.NewGroundAsset(0, core.Vec(-900, 0, 0), 1),
			core.NewGroundAsset(1, core.Vec(600, 0, 0), 1),
		}, 1 - 10.0/15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := threatUrgency(cvtCandidate{enemy: tt.enemy, primary: tt.primary}, tt.assets)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("threatUrgency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCVTPrimaryThreatDominatesCommand(t *testing.T) {
	c := buildController(t, AlgorithmCVT).(*CVTCBF)
	drone := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), core.Vector3D{}, "", 0)
	// eleven seconds from impact, so the barrier leaves the blend alone
	enemy := core.NewEnemyDrone(1000, core.Vec(440, 0, 0), core.Vec(-40, 0, 0), core.DroneTypeEnemyGround, 0)
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}

	v := c.ComputeDesiredVelocity(drone, []*core.Drone{enemy}, assets, []*core.Drone{drone})
	if math.Abs(v.Magnitude()-c.Params().MaxSpeed) > 1e-9 {
		t.Errorf("speed = %v, want %v", v.Magnitude(), c.Params().MaxSpeed)
	}
	intercept := core.Vec(400, 0, 0).Subtract(drone.Position).Normalize()
	if cos := v.Normalize().Dot(intercept); cos < 0.99 {
		t.Errorf("velocity %v strays from the intercept heading (cos %v)", v, cos)
	}
}

func TestQIPFDAttractorWeighting(t *testing.T) {
	c := buildController(t, AlgorithmQIPFD).(*QIPFD)
	drone := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), core.Vector3D{}, "", 0)
	// outside observation range, so it owns enemy 1001 without repelling
	peer := core.NewFriendlyDrone(1, core.Vec(0, 100, 500), core.Vector3D{}, "", 0)
	fs := []*core.Drone{drone, peer}
	// far enough that no ground threat is critical
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vec(0, 0, 5000), 1)}
	weights := map[int]float64{1000: 1, 1001: 1}

	enemy := func(id int, x float64, typ core.DroneType) *core.Drone {
		return core.NewEnemyDrone(id, core.Vec(x, 100, 0), core.Vector3D{}, typ, 0)
	}

	tests := []struct {
		name  string
		types [2]core.DroneType
		wantX float64
	}{
		{"air primary 20x, air secondary 5x", [2]core.DroneType{core.DroneTypeEnemyAir, core.DroneTypeEnemyAir}, (20*100 - 5*100) / 25.0},
		{"ground primary 300x, ground secondary 25x", [2]core.DroneType{core.DroneTypeEnemyGround, core.DroneTypeEnemyGround}, (300*100 - 25*100) / 325.0},
		{"ground primary, air secondary", [2]core.DroneType{core.DroneTypeEnemyGround, core.DroneTypeEnemyAir}, (300*100 - 5*100) / 305.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := []*core.Drone{enemy(1000, 100, tt.types[0]), enemy(1001, -100, tt.types[1])}
			got := c.Attractor(drone, es, assets, fs, weights)
			if want := core.Vec(tt.wantX, 100, 0); !vecClose(got, want, 1e-9) {
				t.Errorf("Attractor() = %v, want %v", got, want)
			}
		})
	}
}

func TestQIPFDGroundInterceptTerm(t *testing.T) {
	c := buildController(t, AlgorithmQIPFD).(*QIPFD)
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vector3D{}, 1)}

	tests := []struct {
		name  string
		drone core.Vector3D
		vel   core.Vector3D
		want  core.Vector3D
	}{
		// five seconds to the asset: lead of one second along the track
		{"critical threat pulls to its intercept", core.Vec(0, 100, 0), core.Vec(-20, 0, 0), core.Vec(80, 0, 0)},
		{"threat beyond protect range", core.Vec(700, 100, 0), core.Vec(-20, 0, 0), core.Vector3D{}},
		{"threat outside the critical window", core.Vec(0, 100, 0), core.Vec(-5, 0, 0), core.Vector3D{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drone := core.NewFriendlyDrone(0, tt.drone, core.Vector3D{}, "", 0)
			threat := core.NewEnemyDrone(1000, core.Vec(100, 0, 0), tt.vel, core.DroneTypeEnemyGround, 0)
			// zero weight isolates the intercept term from the threat itself
			got := c.Attractor(drone, []*core.Drone{threat}, assets, []*core.Drone{drone}, map[int]float64{threat.ID: 0})
			if !vecClose(got, tt.want, 1e-9) {
				t.Errorf("Attractor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQIPFDAccelerationClamp(t *testing.T) {
	c := buildController(t, AlgorithmQIPFD)
	p := c.Params()
	maxChange := qipfdMaxAccel * p.ThreatResponseTime
	assets := []*core.GroundAsset{core.NewGroundAsset(0, core.Vec(1000, 100, 0), 1)}

	tests := []struct {
		name    string
		current core.Vector3D
		clamped bool
	}{
		{"from rest", core.Vector3D{}, true},
		{"reversing", core.Vec(-p.MaxSpeed, 0, 0), true},
		{"already on course", core.Vec(70, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drone := core.NewFriendlyDrone(0, core.Vec(0, 100, 0), tt.current, "", 0)
			v := c.ComputeDesiredVelocity(drone, nil, assets, []*core.Drone{drone})

			change := v.Subtract(tt.current).Magnitude()
			if change > maxChange+1e-9 {
				t.Errorf("velocity change %v exceeds %v", change, maxChange)
			}
			if tt.clamped && math.Abs(change-maxChange) > 1e-9 {
				t.Errorf("velocity change %v, want the clamp %v", change, maxChange)
			}
			if v.X <= tt.current.X {
				t.Errorf("velocity %v does not turn toward the asset", v)
			}
			if v.Magnitude() > p.MaxSpeed+1e-9 {
				t.Errorf("speed %v exceeds max", v.Magnitude())
			}
		})
	}
}

func TestCBBAEngagementForces(t *testing.T) {
	target := core.NewEnemyDrone(1000, core.Vec(0, 100, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0)
	escorts := []*core.Drone{
		core.NewEnemyDrone(1001, core.Vec(0, 100, 50), core.Vector3D{}, core.DroneTypeEnemyAir, 0),
		core.NewEnemyDrone(1002, core.Vec(0, 100, -50), core.Vector3D{}, core.DroneTypeEnemyAir, 0),
		core.NewEnemyDrone(1003, core.Vec(-50, 100, 0), core.Vector3D{}, core.DroneTypeEnemyAir, 0),
	}

	tests := []struct {
		name     string
		distance float64
		escorted bool
		mode     EngagementMode
		wantX    float64
	}{
		{"aggressive inside half range", 60, false, EngageAggressive, -10},
		{"cautious at parity", 300, false, EngageCautious, -8},
		{"waits when outnumbered in range", 120, true, WaitForSupport, -5},
		{"disengages when outnumbered far out", 1000, true, Disengage, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := buildController(t, AlgorithmCBBA).(*CBBA)
			drone := core.NewFriendlyDrone(0, core.Vec(tt.distance, 100, 0), core.Vector3D{}, "", 0)
			id := target.ID
			drone.SetTarget(&id)
			es := []*core.Drone{target}
			if tt.escorted {
				es = append(es, escorts...)
			}

			v := c.ComputeDesiredVelocity(drone, es, nil, []*core.Drone{drone})
			if got := c.Mode(drone.ID); got != tt.mode {
				t.Errorf("mode = %v, want %v", got, tt.mode)
			}
			if want := core.Vec(tt.wantX, 0, 0); !vecClose(v, want, 1e-9) {
				t.Errorf("velocity = %v, want %v", v, want)
			}
		})
	}
}

func TestCBBAModeBeforeAssessment(t *testing.T) {
	c := buildController(t, AlgorithmCBBA).(*CBBA)
	if got := c.Mode(99); got != WaitForSupport {
		t.Errorf("Mode() = %v, want %v", got, WaitForSupport)
	}
}
