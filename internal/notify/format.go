package notify

import (
	"fmt"
	"strconv"
)

// FormatDollars renders n as a $-prefixed, comma-grouped amount.
func FormatDollars(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var grouped []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, c)
	}
	if neg {
		return "-$" + string(grouped)
	}
	return "$" + string(grouped)
}

// DealTitle is the notification title for new matches on a watch.
func DealTitle(watchName string) string {
	return watchName + " – deal detected"
}

// DealMessage is the consolidated body for a batch of new matches.
func DealMessage(count int, lowestPrice int64) string {
	plural := ""
	if count != 1 {
		plural = "s"
	}
	return fmt.Sprintf("Found %d new deal%s (lowest %s).", count, plural, FormatDollars(lowestPrice))
}
