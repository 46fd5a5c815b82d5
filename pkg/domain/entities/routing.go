package entities

import (
	"encoding/json"
	"fmt"
)

// RoutingClass tags an item with the product family that decides its legal destinations
type RoutingClass int

const (
	// Dedicated items have no family match and stay on their own line
	Dedicated RoutingClass = iota
	// ClassA items may move to any other line
	ClassA
	// ClassB items may move to any other line except the forbidden ones
	ClassB
)

// String method for RoutingClass enum
func (c RoutingClass) String() string {
	switch c {
	case ClassA:
		return "ClassA"
	case ClassB:
		return "ClassB"
	case Dedicated:
		return "Dedicated"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the class by name
func (c RoutingClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON parses a class name
func (c *RoutingClass) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for _, class := range []RoutingClass{Dedicated, ClassA, ClassB} {
		if class.String() == name {
			*c = class
			return nil
		}
	}
	return fmt.Errorf("unknown routing class %q", name)
}

// ClassifiedItem is a movable item with its routing class and legal cross-line destinations
type ClassifiedItem struct {
	ItemSlackProfile
	Class        RoutingClass `json:"class"`
	Destinations []Line       `json:"destinations"`
	Constraint   string       `json:"constraint"`
	Priority     string       `json:"priority"`
}

// AllowsLine reports whether the item may be routed to line
func (c ClassifiedItem) AllowsLine(line Line) bool {
	for _, l := range c.Destinations {
		if l == line {
			return true
		}
	}
	return false
}
