package sexp

import (
	"fmt"
	"strconv"
)

// Position is a 2D coordinate in schematic millimeters.
type Position struct {
	X float64
	Y float64
}

// PositionAngle combines a position with a rotation in degrees.
type PositionAngle struct {
	Position
	Angle float64
}

// Property is a key/value field attached to symbols, sheets, and labels.
type Property struct {
	Key   string
	Value string
	At    PositionAngle

	// Node is the backing (property ...) list, kept so the editor can
	// patch the value token in place.
	Node *Node
}

// Typed value extraction over list nodes, index 0 being the tag atom.

// GetString returns the decoded string or atom value at index i.
func GetString(n *Node, i int) (string, error) {
	arg, ok := n.Arg(i)
	if !ok {
		return "", fmt.Errorf("index %d out of bounds (length %d)", i, len(n.Children))
	}
	if arg.Kind == KindList {
		return "", fmt.Errorf("expected value at index %d, got list", i)
	}
	return arg.StringValue(), nil
}

// GetFloat returns the float value at index i.
func GetFloat(n *Node, i int) (float64, error) {
	str, err := GetString(n, i)
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}
	return val, nil
}

// GetInt returns the int value at index i.
func GetInt(n *Node, i int) (int, error) {
	str, err := GetString(n, i)
	if err != nil {
		return 0, err
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}
	return val, nil
}

// GetPosition extracts (at X Y [angle]) into a PositionAngle. Schematic
// files store coordinates in millimeters and angles in plain degrees.
func GetPosition(n *Node) (PositionAngle, error) {
	if n.Tag() != "at" {
		return PositionAngle{}, fmt.Errorf("expected (at X Y [angle]), got %q", n.Tag())
	}
	x, err := GetFloat(n, 1)
	if err != nil {
		return PositionAngle{}, fmt.Errorf("failed to parse X coordinate: %w", err)
	}
	y, err := GetFloat(n, 2)
	if err != nil {
		return PositionAngle{}, fmt.Errorf("failed to parse Y coordinate: %w", err)
	}
	result := PositionAngle{Position: Position{X: x, Y: y}}
	if angle, err := GetFloat(n, 3); err == nil {
		result.Angle = angle
	}
	return result, nil
}

// GetPositionXY extracts bare coordinates from (xy X Y), (start X Y) and
// similar two-value nodes.
func GetPositionXY(n *Node) (Position, error) {
	x, err := GetFloat(n, 1)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse X: %w", err)
	}
	y, err := GetFloat(n, 2)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse Y: %w", err)
	}
	return Position{X: x, Y: y}, nil
}

// GetUUID extracts the identifier from a (uuid "...") node; both quoted
// and bare forms appear in the wild.
func GetUUID(n *Node) (string, error) {
	if n.Tag() != "uuid" {
		return "", fmt.Errorf("expected 'uuid' node, got %q", n.Tag())
	}
	return GetString(n, 1)
}

// GetProperty extracts a (property "Key" "Value" (at ...) ...) node.
func GetProperty(n *Node) (Property, error) {
	prop := Property{Node: n}
	key, err := GetString(n, 1)
	if err != nil {
		return prop, fmt.Errorf("failed to parse property key: %w", err)
	}
	prop.Key = key
	// Value may legitimately be empty.
	prop.Value, _ = GetString(n, 2)
	if atNode, ok := n.Find("at"); ok {
		prop.At, _ = GetPosition(atNode)
	}
	return prop, nil
}

// FormatFloat renders a coordinate the way KiCad writes them: shortest
// decimal form without a trailing ".0".
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
