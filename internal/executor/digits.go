package executor

import "math/rand"

// weightedDigits is the reply digit multiset. 0, 5 and 8 appear three times,
// tripling their selection weight; drivers picking "popular" digits win ties
// with dispatchers less often.
var weightedDigits = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "5", "8"}

// PickDigit draws one reply digit from the weighted multiset.
func PickDigit(intN func(int) int) string {
	if intN == nil {
		intN = rand.Intn
	}
	return weightedDigits[intN(len(weightedDigits))]
}
