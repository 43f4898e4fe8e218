package domain

// BidIncrease describes a current-bid change observed during reconciliation.
type BidIncrease struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// Amount returns the size of the increase.
func (b BidIncrease) Amount() int64 {
	return b.To - b.From
}

// StateChange describes a listing state transition.
type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// EndingSoon is present when an active auction has entered its final window.
type EndingSoon struct {
	HoursRemaining float64 `json:"hours_remaining"`
}

// Delta enumerates the meaningful changes produced by one reconciliation
// pass. Each member carries enough data for event emission without a
// storage round-trip.
type Delta struct {
	BidIncrease *BidIncrease `json:"bid_increase,omitempty"`
	StateChange *StateChange `json:"state_change,omitempty"`
	EndingSoon  *EndingSoon  `json:"ending_soon,omitempty"`
}

// Empty reports whether the reconciliation pass observed no changes.
func (d *Delta) Empty() bool {
	return d.BidIncrease == nil && d.StateChange == nil && d.EndingSoon == nil
}
