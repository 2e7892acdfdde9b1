package geo

import "math"

// earthRadiusMeters — средний радиус Земли
const earthRadiusMeters = 6371000.0

// Distance вычисляет расстояние большого круга между двумя точками
// (градусы широты/долготы) по формуле гаверсинусов, в метрах.
// Чистая функция без побочных эффектов; поведение для координат вне
// диапазона (|lat|>90, |lon|>180) не определено — валидация на стороне вызывающего.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
