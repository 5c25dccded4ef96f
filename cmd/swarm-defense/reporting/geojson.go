package reporting

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/picogrid/swarm-defense/cmd/swarm-defense/core"
	"github.com/picogrid/swarm-defense/cmd/swarm-defense/simulation"
)

// DefaultOrigin anchors the local battlefield frame when none is configured
var DefaultOrigin = orb.Point{-117.1611, 32.7157}

// Feature kinds written into the "kind" property
const (
	KindDrone    = "drone"
	KindAsset    = "asset"
	KindTrack    = "track"
	KindCentroid = "centroid"
)

// LocalToLonLat maps a position in metres (X east, Z north) to lon/lat
// around origin. Altitude is carried as a property, not a coordinate.
func LocalToLonLat(origin orb.Point, pos core.Vector3D) orb.Point {
	dist := math.Hypot(pos.X, pos.Z)
	if dist == 0 {
		return origin
	}
	bearing := math.Atan2(pos.X, pos.Z) * 180 / math.Pi
	return geo.PointAtBearingAndDistance(origin, bearing, dist)
}

// FrameToGeoJSON renders one frame as a feature collection with a point per
// drone and asset, plus a centroid for each side that still has drones up.
func FrameToGeoJSON(frame simulation.Frame, origin orb.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	var friendlyPoints, enemyPoints orb.MultiPoint
	for _, d := range frame.Friendlies {
		p := LocalToLonLat(origin, d.Position)
		f := geojson.NewFeature(p)
		f.Properties["kind"] = KindDrone
		f.Properties["id"] = d.ID
		f.Properties["side"] = simulation.TeamFriendly
		f.Properties["type"] = string(core.DroneTypeFriendly)
		f.Properties["role"] = string(d.Role)
		f.Properties["health"] = d.Health
		f.Properties["altitude"] = d.Position.Y
		if d.TargetID != nil {
			f.Properties["target_id"] = *d.TargetID
		}
		fc.Append(f)
		if d.Health > 0 {
			friendlyPoints = append(friendlyPoints, p)
		}
	}

	for _, d := range frame.Enemies {
		p := LocalToLonLat(origin, d.Position)
		f := geojson.NewFeature(p)
		f.Properties["kind"] = KindDrone
		f.Properties["id"] = d.ID
		f.Properties["side"] = simulation.TeamEnemy
		f.Properties["type"] = string(d.Type)
		f.Properties["health"] = d.Health
		f.Properties["altitude"] = d.Position.Y
		fc.Append(f)
		if d.Health > 0 {
			enemyPoints = append(enemyPoints, p)
		}
	}

	for _, a := range frame.Assets {
		f := geojson.NewFeature(LocalToLonLat(origin, a.Position))
		f.Properties["kind"] = KindAsset
		f.Properties["id"] = a.ID
		f.Properties["value"] = a.Value
		f.Properties["health"] = a.Health
		fc.Append(f)
	}

	sides := []struct {
		name   string
		points orb.MultiPoint
	}{
		{simulation.TeamFriendly, friendlyPoints},
		{simulation.TeamEnemy, enemyPoints},
	}
	for _, s := range sides {
		side, points := s.name, s.points
		if len(points) == 0 {
			continue
		}
		centroid, _ := planar.CentroidArea(points)
		f := geojson.NewFeature(centroid)
		f.Properties["kind"] = KindCentroid
		f.Properties["side"] = side
		f.Properties["active"] = len(points)
		fc.Append(f)
	}

	return fc
}

// FramesToGeoJSON renders the recorded history as one track per drone. A
// drone's track ends at the first frame it shows up destroyed.
func FramesToGeoJSON(frames []simulation.Frame, origin orb.Point) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if len(frames) == 0 {
		return fc
	}

	type track struct {
		side      string
		kind      string
		line      orb.LineString
		destroyed bool
	}
	tracks := make(map[int]*track)
	var order []int
	add := func(id int, side, kind string, pos core.Vector3D, alive bool) {
		tr, ok := tracks[id]
		if !ok {
			tr = &track{side: side, kind: kind}
			tracks[id] = tr
			order = append(order, id)
		}
		if tr.destroyed {
			return
		}
		tr.line = append(tr.line, LocalToLonLat(origin, pos))
		tr.destroyed = !alive
	}

	for _, frame := range frames {
		for _, d := range frame.Friendlies {
			add(d.ID, simulation.TeamFriendly, string(core.DroneTypeFriendly), d.Position, d.Health > 0)
		}
		for _, d := range frame.Enemies {
			add(d.ID, simulation.TeamEnemy, string(d.Type), d.Position, d.Health > 0)
		}
	}

	for _, id := range order {
		tr := tracks[id]
		f := geojson.NewFeature(tr.line)
		f.Properties["kind"] = KindTrack
		f.Properties["id"] = id
		f.Properties["side"] = tr.side
		f.Properties["type"] = tr.kind
		f.Properties["points"] = len(tr.line)
		f.Properties["destroyed"] = tr.destroyed
		fc.Append(f)
	}

	return fc
}

// SaveGeoJSON writes the final frame and the drone tracks side by side and
// returns both paths.
func SaveGeoJSON(dir, scenarioID string, frames []simulation.Frame, origin orb.Point) ([]string, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to export")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := map[string]*geojson.FeatureCollection{
		"final":  FrameToGeoJSON(frames[len(frames)-1], origin),
		"tracks": FramesToGeoJSON(frames, origin),
	}
	paths := make([]string, 0, len(outputs))
	for _, name := range []string{"final", "tracks"} {
		data, err := json.MarshalIndent(outputs[name], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s geojson: %w", name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.geojson", shortID(scenarioID), name))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
