package router

import "golang.org/x/time/rate"

// rateOf 0 表示不限速
func rateOf(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}
