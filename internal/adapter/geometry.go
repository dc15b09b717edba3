package adapter

import "math"

func angularDistance(ra1Deg, dec1Deg, ra2Deg, dec2Deg float64) float64 {
	ra1 := ra1Deg * math.Pi / 180
	ra2 := ra2Deg * math.Pi / 180
	dec1 := dec1Deg * math.Pi / 180
	dec2 := dec2Deg * math.Pi / 180

	cosAngle := math.Sin(dec1)*math.Sin(dec2) + math.Cos(dec1)*math.Cos(dec2)*math.Cos(ra1-ra2)
	cosAngle = math.Min(1.0, math.Max(-1.0, cosAngle))
	return math.Acos(cosAngle) * 180 / math.Pi
}
