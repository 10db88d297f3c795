package subscription

// Level 表示订阅档位。档位全序：free < pro < pro_plus。
type Level string

const (
	LevelFree    Level = "free"
	LevelPro     Level = "pro"
	LevelProPlus Level = "pro_plus"
)

// Rank returns the numeric position of the level in the tier order.
// Unknown levels rank below free so they never unlock anything.
func (l Level) Rank() int {
	switch l {
	case LevelFree:
		return 0
	case LevelPro:
		return 1
	case LevelProPlus:
		return 2
	}
	return -1
}

// Known reports whether l is one of the three defined levels.
func (l Level) Known() bool {
	return l.Rank() >= 0
}
