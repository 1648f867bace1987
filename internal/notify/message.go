package notify

import (
	"fmt"
	"time"

	"bondwatch/internal/models"
)

// displayDateLayout renders event dates the way users expect them.
const displayDateLayout = "02.01.2006"

// bondLabel names a bond in a message, falling back to the ISIN when
// no display name is known.
func bondLabel(inst *models.Instrument) string {
	if inst.Name != "" {
		return fmt.Sprintf("%s (ISIN: %s)", inst.Name, inst.ISIN)
	}
	return inst.ISIN
}

// CouponMessage announces tomorrow's coupon payment. The payable total
// is scaled by the user's held quantity; an unknown coupon value yields
// a message without the amount line.
func CouponMessage(user *models.User, inst *models.Instrument, date time.Time, value *float64, quantity int) string {
	base := fmt.Sprintf("Привет! %s, по вашей облигации %s выплата купона %s.",
		user.FullName, bondLabel(inst), date.Format(displayDateLayout))
	if value == nil {
		return base
	}
	total := *value * float64(quantity)
	return fmt.Sprintf("%s Сумма к получению: %.2f руб.", base, total)
}

// MaturityMessage announces an upcoming redemption.
func MaturityMessage(user *models.User, inst *models.Instrument, date time.Time) string {
	return fmt.Sprintf("Привет! %s, облигация %s погашается %s. Пожалуйста, учтите это.",
		user.FullName, bondLabel(inst), date.Format(displayDateLayout))
}

// AmortizationMessage announces tomorrow's partial redemption, scaled
// by the user's held quantity.
func AmortizationMessage(user *models.User, inst *models.Instrument, date time.Time, value float64, quantity int) string {
	total := value * float64(quantity)
	return fmt.Sprintf("Привет! %s, по вашей облигации %s частичное погашение (амортизация) %s. Сумма к получению: %.2f руб.",
		user.FullName, bondLabel(inst), date.Format(displayDateLayout), total)
}

// OfferMessage announces an approaching put/call offer with the number
// of days remaining until the offer date.
func OfferMessage(user *models.User, inst *models.Instrument, date time.Time, daysLeft int) string {
	return fmt.Sprintf("Привет! %s, по вашей облигации %s оферта %s. До даты оферты осталось %s.",
		user.FullName, bondLabel(inst), date.Format(displayDateLayout), pluralDays(daysLeft))
}
