package service

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewBookingCode returns "BK" + base36(unix millis) + 5 random base36
// characters, upper-cased.
func NewBookingCode(now time.Time) string {
	var b strings.Builder
	b.WriteString("BK")
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	for i := 0; i < 5; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(base36)))
		}
		b.WriteByte(base36[n.Int64()])
	}
	return strings.ToUpper(b.String())
}
