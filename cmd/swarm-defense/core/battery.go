package core

import "math"

// BatteryModel is a linear endurance model: a drone flies EnduranceMaxMin
// minutes empty and loses up to EnduranceSlopeMin minutes at full payload.
type BatteryModel struct {
	EnduranceMaxMin   float64
	EnduranceSlopeMin float64
	BulletMassKg      float64
	MaxPayloadKg      float64
}

// DefaultBatteryModel returns the model used by the battery command and service
func DefaultBatteryModel() BatteryModel {
	return BatteryModel{
		EnduranceMaxMin:   90,
		EnduranceSlopeMin: 30,
		BulletMassKg:      0.01,
		MaxPayloadKg:      2.5,
	}
}

// PayloadFraction is the share of maximum payload taken by the bullets, in [0,1]
func (m BatteryModel) PayloadFraction(bullets int) float64 {
	if m.MaxPayloadKg <= 0 || bullets <= 0 {
		return 0
	}
	frac := float64(bullets) * m.BulletMassKg / m.MaxPayloadKg
	return math.Max(0, math.Min(1, frac))
}

// EnduranceMinutes returns flight endurance for the given load
func (m BatteryModel) EnduranceMinutes(bullets int) float64 {
	return m.EnduranceMaxMin - m.EnduranceSlopeMin*m.PayloadFraction(bullets)
}

// Drain returns the battery percentage left after flying dt seconds
func (m BatteryModel) Drain(level float64, bullets int, dt float64) float64 {
	endurance := m.EnduranceMinutes(bullets)
	if endurance <= 0 {
		return 0
	}
	used := dt / (endurance * 60) * 100
	return math.Max(0, level-used)
}
