package core

import "fmt"

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var bimesterNames = [...]string{
	"Jan-Fev", "Mar-Abr", "Mai-Jun", "Jul-Ago", "Set-Out", "Nov-Dez",
}

// MonthName returns the Portuguese month name, or "" when out of range.
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return ""
	}
	return monthNames[m-1]
}

// MonthAbbr returns the three letter month abbreviation (Jan, Fev, ...).
func MonthAbbr(m int) string {
	name := MonthName(m)
	if name == "" {
		return ""
	}
	return string([]rune(name)[:3])
}

// BimesterName returns "Jan-Fev" style names for bimesters 1..6.
func BimesterName(b int) string {
	if b < 1 || b > 6 {
		return "Desconh."
	}
	return bimesterNames[b-1]
}

func yearSuffix(y int) string {
	return fmt.Sprintf("%02d", y%100)
}

// MonthLabel formats "Mar/24".
func MonthLabel(year, month int) string {
	return MonthAbbr(month) + "/" + yearSuffix(year)
}

// YearToDateLabel formats "Jan-Mar/24"; a January cut is just "Jan/24"
// and a zero cut is the bare year.
func YearToDateLabel(year, upTo int) string {
	if upTo <= 0 {
		return fmt.Sprint(year)
	}
	if upTo == 1 {
		return MonthLabel(year, 1)
	}
	return "Jan-" + MonthLabel(year, upTo)
}

// BimesterLabel formats "Mar-Abr/24".
func BimesterLabel(year, bimester int) string {
	return BimesterName(bimester) + "/" + yearSuffix(year)
}

// PeriodLabel formats a period according to the granularity.
func PeriodLabel(g Granularity, year, period int) string {
	switch {
	case g == Bimonthly:
		return BimesterLabel(year, period)
	case period == 0:
		return fmt.Sprint(year)
	default:
		return MonthLabel(year, period)
	}
}
