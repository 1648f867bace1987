// Package notify builds and dispatches event notifications to users,
// guaranteeing each (user, bond, event, date) tuple is announced at
// most once.
package notify

import "fmt"

// pluralDays returns the Russian day-count phrase for n. The 11..14
// range always takes the genitive plural regardless of the last digit.
func pluralDays(n int) string {
	if n < 0 {
		n = -n
	}
	word := "дней"
	if n%100 < 11 || n%100 > 14 {
		switch n % 10 {
		case 1:
			word = "день"
		case 2, 3, 4:
			word = "дня"
		}
	}
	return fmt.Sprintf("%d %s", n, word)
}
