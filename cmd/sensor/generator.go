package main

import "math/rand/v2"

type sample struct {
	Temperature float64
	Humidity    float64
	Smoke       float64
	Status      string
}

func randomRange(low, high float64) float64 {
	return low + rand.Float64()*(high-low)
}

// generateSample produces a reading from one of three weighted regimes:
// mostly quiet conditions, occasionally elevated, rarely fire-like.
func generateSample() sample {
	roll := rand.Float64()
	switch {
	case roll < 0.80:
		return sample{
			Temperature: randomRange(20, 35),
			Humidity:    randomRange(40, 70),
			Smoke:       randomRange(0, 300),
			Status:      "normal",
		}
	case roll < 0.95:
		return sample{
			Temperature: randomRange(35, 45),
			Humidity:    randomRange(30, 40),
			Smoke:       randomRange(300, 600),
			Status:      "warning",
		}
	default:
		return sample{
			Temperature: randomRange(45, 60),
			Humidity:    randomRange(10, 30),
			Smoke:       randomRange(600, 1000),
			Status:      "danger",
		}
	}
}
