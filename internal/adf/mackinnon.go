package adf

// MacKinnon (2010) response surface coefficients for a single series.
// Rows are the 10%, 5% and 1% test sizes, matching the 90/95/99 tiers.
// The critical value at n observations is c0 + c1/n + c2/n² + c3/n³.
var tau2010 = map[Regression][3][4]float64{
	RegressionNone: {
		{-1.61682, 0.2656, -2.714, 25.364},
		{-1.94100, -0.2686, -3.365, 31.223},
		{-2.56574, -2.2358, -3.627, 0},
	},
	RegressionConstant: {
		{-2.56677, -1.5384, -2.809, 0},
		{-2.86154, -2.8903, -4.234, -40.040},
		{-3.43035, -6.5393, -16.786, -79.433},
	},
	RegressionTrend: {
		{-3.12705, -2.5856, -3.925, -22.380},
		{-3.41049, -4.3904, -9.036, -45.374},
		{-3.95877, -9.0531, -28.428, -134.155},
	},
	RegressionQuadratic: {
		{-3.55326, -4.0003, -5.682, -72.741},
		{-3.83239, -5.9057, -12.490, -118.284},
		{-4.37113, -11.5882, -35.819, -334.047},
	},
}

// criticalValues evaluates the response surface at nobs observations
func criticalValues(reg Regression, nobs int) [3]float64 {
	var out [3]float64
	inv := 1 / float64(nobs)
	for i, c := range tau2010[reg] {
		out[i] = c[0] + inv*(c[1]+inv*(c[2]+inv*c[3]))
	}
	return out
}
