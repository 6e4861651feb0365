package movements

import "strings"

// codMethods are the payment_method values treated as cash on delivery.
// Upstream input is free-form, so matching is case-insensitive and trimmed.
var codMethods = map[string]struct{}{
	"efectivo":       {},
	"cash":           {},
	"contraentrega":  {},
	"contra_entrega": {},
	"cod":            {},
}

// IsOrderCOD classifies an order as cash-on-delivery. An order is COD iff no
// prepaid override is recorded and the payment method is empty or a known
// cash equivalent. The override always wins, even when payment_method still
// reads as a cash type: it models a COD order later paid by transfer before
// the courier arrived. Skipping the override check misattributes revenue.
func IsOrderCOD(paymentMethod, prepaidMethod *string) bool {
	if prepaidMethod != nil && strings.TrimSpace(*prepaidMethod) != "" {
		return false
	}
	if paymentMethod == nil {
		return true
	}
	method := strings.ToLower(strings.TrimSpace(*paymentMethod))
	if method == "" {
		return true
	}
	_, ok := codMethods[method]
	return ok
}
