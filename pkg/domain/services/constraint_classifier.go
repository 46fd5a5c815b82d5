package services

import (
	"fmt"
	"strings"

	"github.com/vsinha/rebalance/pkg/domain/entities"
)

// RoutingRules names the two product families by case-insensitive substrings of the item name
type RoutingRules struct {
	ClassAPatterns []string
	ClassBPatterns []string
	// ClassBForbiddenLines are never legal destinations for ClassB items
	ClassBForbiddenLines []entities.Line
}

// ConstraintClassifier tags movable items with their routing class and legal destinations.
// Classification depends only on the item name.
type ConstraintClassifier struct {
	rules RoutingRules
}

// NewConstraintClassifier creates a classifier for the given family rules
func NewConstraintClassifier(rules RoutingRules) *ConstraintClassifier {
	return &ConstraintClassifier{rules: rules}
}

// Classify returns the routing class of an item. ClassA wins when both families match.
func (c *ConstraintClassifier) Classify(item entities.ItemName) entities.RoutingClass {
	if matchesAny(item, c.rules.ClassAPatterns) {
		return entities.ClassA
	}
	if matchesAny(item, c.rules.ClassBPatterns) {
		return entities.ClassB
	}
	return entities.Dedicated
}

// IsForbidden reports whether the line is excluded for the class regardless of target
func (c *ConstraintClassifier) IsForbidden(class entities.RoutingClass, line entities.Line) bool {
	if class != entities.ClassB {
		return false
	}
	for _, forbidden := range c.rules.ClassBForbiddenLines {
		if forbidden == line {
			return true
		}
	}
	return false
}

// Destinations returns the cross-line destination set of a class for the run's target line
func (c *ConstraintClassifier) Destinations(pc *entities.PlanningContext, class entities.RoutingClass) []entities.Line {
	switch class {
	case entities.ClassA:
		return pc.OtherLines()
	case entities.ClassB:
		var lines []entities.Line
		for _, line := range pc.OtherLines() {
			if !c.IsForbidden(class, line) {
				lines = append(lines, line)
			}
		}
		return lines
	default:
		return []entities.Line{}
	}
}

// ClassifyMovable returns the movable profiles with their class, destinations and labels
func (c *ConstraintClassifier) ClassifyMovable(
	pc *entities.PlanningContext,
	profiles []entities.ItemSlackProfile,
) []entities.ClassifiedItem {
	var items []entities.ClassifiedItem
	for _, profile := range profiles {
		if !profile.Movable {
			continue
		}

		class := c.Classify(profile.Item)
		destinations := c.Destinations(pc, class)
		constraint, priority := c.labels(pc, class, destinations)

		items = append(items, entities.ClassifiedItem{
			ItemSlackProfile: profile,
			Class:            class,
			Destinations:     destinations,
			Constraint:       constraint,
			Priority:         priority,
		})
	}
	return items
}

func (c *ConstraintClassifier) labels(
	pc *entities.PlanningContext,
	class entities.RoutingClass,
	destinations []entities.Line,
) (string, string) {
	switch class {
	case entities.ClassA:
		return "all lines allowed", "cross-line transfer first"
	case entities.ClassB:
		constraint := fmt.Sprintf("lines %s only", joinLines(allowedLines(pc, c)))
		if len(c.rules.ClassBForbiddenLines) > 0 {
			constraint += fmt.Sprintf(" (%s forbidden)", joinLines(c.rules.ClassBForbiddenLines))
		}
		priority := "cross-line transfer first"
		if len(destinations) > 0 {
			priority = fmt.Sprintf("transfer to %s first", destinations[0])
		}
		return constraint, priority
	default:
		return fmt.Sprintf("date moves within %s only", pc.Target.Line), "same-line postpone or advance"
	}
}

func allowedLines(pc *entities.PlanningContext, c *ConstraintClassifier) []entities.Line {
	var lines []entities.Line
	for _, line := range pc.Capacity.Lines() {
		if !c.IsForbidden(entities.ClassB, line) {
			lines = append(lines, line)
		}
	}
	return lines
}

func joinLines(lines []entities.Line) string {
	names := make([]string, len(lines))
	for i, line := range lines {
		names[i] = string(line)
	}
	return strings.Join(names, ",")
}

func matchesAny(item entities.ItemName, patterns []string) bool {
	for _, pattern := range patterns {
		if item.ContainsFold(pattern) {
			return true
		}
	}
	return false
}
