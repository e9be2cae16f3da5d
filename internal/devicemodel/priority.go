package devicemodel

// ConnectionPriority is a coarse display class for the negotiated BLE
// connection interval. Values match the Android BluetoothGatt constants.
type ConnectionPriority int

const (
	PriorityBalanced ConnectionPriority = 0
	PriorityHigh     ConnectionPriority = 1
	PriorityLowPower ConnectionPriority = 2
)

const (
	highPriorityMaxInterval     = 22
	balancedPriorityMaxInterval = 75
)

// ConnectionPriorityFor maps a raw connection interval (1.25 ms units) to its class.
func ConnectionPriorityFor(interval int) ConnectionPriority {
	switch {
	case interval <= highPriorityMaxInterval:
		return PriorityHigh
	case interval <= balancedPriorityMaxInterval:
		return PriorityBalanced
	default:
		return PriorityLowPower
	}
}

func (p ConnectionPriority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityBalanced:
		return "balanced"
	case PriorityLowPower:
		return "low-power"
	default:
		return "unknown"
	}
}
