package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Epsilon is the magnitude below which a vector is treated as zero.
const Epsilon = 1e-6

// Vector3D is a point or direction in scenario space. Y is altitude.
type Vector3D struct {
	X, Y, Z float64
}

// Vec is shorthand for building a Vector3D.
func Vec(x, y, z float64) Vector3D {
	return Vector3D{X: x, Y: y, Z: z}
}

func (v Vector3D) Add(other Vector3D) Vector3D {
	return Vector3D{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vector3D) Subtract(other Vector3D) Vector3D {
	return Vector3D{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vector3D) Scale(s float64) Vector3D {
	return Vector3D{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

func (v Vector3D) Dot(other Vector3D) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vector3D) Magnitude() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns the unit vector, or the zero vector when v is degenerate.
func (v Vector3D) Normalize() Vector3D {
	mag := v.Magnitude()
	if mag <= Epsilon {
		return Vector3D{}
	}
	return v.Scale(1.0 / mag)
}

func (v Vector3D) DistanceTo(other Vector3D) float64 {
	return v.Subtract(other).Magnitude()
}

// ClampMagnitude scales v down so its length does not exceed max.
func (v Vector3D) ClampMagnitude(max float64) Vector3D {
	mag := v.Magnitude()
	if mag > max && mag > 0 {
		return v.Scale(max / mag)
	}
	return v
}

// IsZero reports whether every component is exactly zero.
func (v Vector3D) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// Array returns the components as [x, y, z].
func (v Vector3D) Array() [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func (v Vector3D) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// MarshalJSON encodes the vector as a [x, y, z] array.
func (v Vector3D) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Array())
}

// UnmarshalJSON accepts either a [x, y, z] array or an {"x","y","z"} object.
func (v *Vector3D) UnmarshalJSON(data []byte) error {
	var arr []float64
	if err := json.Unmarshal(data, &arr); err == nil {
		return v.fromSlice(arr)
	}
	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid vector %s: %w", string(data), err)
	}
	*v = Vector3D{X: obj.X, Y: obj.Y, Z: obj.Z}
	return nil
}

// MarshalYAML encodes the vector as a flow sequence.
func (v Vector3D) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, c := range v.Array() {
		node.Content = append(node.Content, &yaml.Node{
			Kind:  yaml.ScalarNode,
			Value: strconv.FormatFloat(c, 'g', -1, 64),
		})
	}
	return node, nil
}

// UnmarshalYAML accepts a sequence or a mapping with x/y/z keys.
func (v *Vector3D) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var arr []float64
		if err := node.Decode(&arr); err != nil {
			return err
		}
		return v.fromSlice(arr)
	case yaml.MappingNode:
		var obj struct {
			X float64 `yaml:"x"`
			Y float64 `yaml:"y"`
			Z float64 `yaml:"z"`
		}
		if err := node.Decode(&obj); err != nil {
			return err
		}
		*v = Vector3D{X: obj.X, Y: obj.Y, Z: obj.Z}
		return nil
	default:
		return fmt.Errorf("line %d: vector must be a sequence or mapping", node.Line)
	}
}

func (v *Vector3D) fromSlice(arr []float64) error {
	if len(arr) != 3 {
		return fmt.Errorf("vector needs 3 components, got %d", len(arr))
	}
	*v = Vector3D{X: arr[0], Y: arr[1], Z: arr[2]}
	return nil
}
