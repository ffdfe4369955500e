package random

import (
	"crypto/rand"
	"math/big"
)

var (
	numSeq      [10]rune
	upperSeq    [26]rune
	numUpperSeq [36]rune
	allSeq      [62]rune
)

func init() {
	for i := 0; i < 10; i++ {
		numSeq[i] = rune('0' + i)
	}
	lowerSeq := [26]rune{}
	for i := 0; i < 26; i++ {
		lowerSeq[i] = rune('a' + i)
		upperSeq[i] = rune('A' + i)
	}

	copy(numUpperSeq[:], numSeq[:])
	copy(numUpperSeq[len(numSeq):], upperSeq[:])

	copy(allSeq[:], numSeq[:])
	copy(allSeq[len(numSeq):], lowerSeq[:])
	copy(allSeq[len(numSeq)+len(lowerSeq):], upperSeq[:])
}

func pick(set []rune, n int) string {
	runes := make([]rune, n)
	max := big.NewInt(int64(len(set)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		runes[i] = set[idx.Int64()]
	}
	return string(runes)
}

// Seq 生成由数字与大小写字母组成的随机串，用作订阅 token
func Seq(n int) string {
	return pick(allSeq[:], n)
}

// CouponCode 生成大写字母+数字的优惠码
func CouponCode(n int) string {
	return pick(numUpperSeq[:], n)
}

// Num generates a random integer between 0 and n-1.
func Num(n int) int {
	if n <= 0 {
		return 0
	}
	r, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return int(r.Int64())
}
