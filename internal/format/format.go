// Package format renders dates and amounts the way the driver app shows
// them: French day and month names, 24h times, prices in Congolese francs.
package format

import (
	"strconv"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	weekdays = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	months   = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}

	frTitle = cases.Title(language.French)
)

// Day renders "lundi 3 mars".
func Day(t time.Time) string {
	return weekdays[t.Weekday()] + " " + strconv.Itoa(t.Day()) + " " + months[t.Month()-1]
}

// DayYear renders "lundi 3 mars 2026".
func DayYear(t time.Time) string {
	return Day(t) + " " + strconv.Itoa(t.Year())
}

// Heading capitalises a date label for section headers: "Lundi 3 Mars".
func Heading(t time.Time) string {
	return frTitle.String(Day(t))
}

// Clock renders "08:30".
func Clock(t time.Time) string {
	return t.Format("15:04")
}

// Price renders an amount in francs, "15000 Fc".
func Price(amount int64) string {
	return strconv.FormatInt(amount, 10) + " Fc"
}

// SeatPrice renders "15000 Fc/place".
func SeatPrice(amount int64) string {
	return Price(amount) + "/place"
}
