// Package led mirrors pipeline state on board LEDs.
package led

// Roles an LED can be assigned to. Boards map each role to one of their
// physical LEDs; missing roles are skipped.
const (
	RoleStatus   = "status"   // capture health
	RoleActivity = "activity" // edge detection toggle
)

// Patterns accepted by Controller.Set.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
)

// Controller abstracts LED hardware across boards.
type Controller interface {
	// Set turns the LED for role on or off. An empty pattern leaves the
	// current trigger alone.
	Set(role string, on bool, pattern string) error

	// Roles returns the roles this board has an LED for.
	Roles() []string
}
