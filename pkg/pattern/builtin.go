package pattern

import "time"

// Builtins returns the stock pattern table. The map is freshly allocated on
// every call so callers may overlay their own entries.
func Builtins() map[string]Config {
	return map[string]Config{
		"constant_low": {
			Kind:        KindConstant,
			Utilization: 0.10,
			Variance:    0.02,
		},
		"constant_medium": {
			Kind:        KindConstant,
			Utilization: 0.50,
			Variance:    0.05,
		},
		"constant_high": {
			Kind:        KindConstant,
			Utilization: 0.80,
			Variance:    0.05,
		},
		"business_hours": {
			Kind:                KindBusinessHours,
			BaselineUtilization: 0.15,
			PeakUtilization:     0.75,
			PeakStartHour:       8,
			PeakEndHour:         18,
			Variance:            0.05,
		},
		"bursty": {
			Kind:             KindBursty,
			IdleUtilization:  0.05,
			BurstUtilization: 0.90,
			BurstInterval:    300 * time.Second,
			BurstDuration:    30 * time.Second,
			Variance:         0.05,
		},
		"server_load": {
			Kind:            KindServerLoad,
			BaseUtilization: 0.40,
			PeakMultiplier:  2.0,
			PeakProbability: 0.05,
			Variance:        0.05,
		},
	}
}
