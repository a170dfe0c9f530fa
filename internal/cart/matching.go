package cart

import (
	"sort"
	"strconv"
	"strings"

	"storefront/internal/model"

	"github.com/cespare/xxhash/v2"
)

// SameCustomizations reports whether two customization lists describe the
// same configuration. Order does not matter; display text is ignored.
func SameCustomizations(a, b []model.CartItemCustomization) bool {
	if len(a) != len(b) {
		return false
	}
	return canonical(a) == canonical(b)
}

// ItemKey derives the correlation key of a line from its product and
// customizations.
func ItemKey(productID string, customizations []model.CartItemCustomization) string {
	if len(customizations) == 0 {
		return productID
	}
	return productID + ":" + strconv.FormatUint(xxhash.Sum64String(canonical(customizations)), 16)
}

// canonical renders customizations in a stable, order-independent form.
func canonical(customizations []model.CartItemCustomization) string {
	parts := make([]string, 0, len(customizations))
	for _, c := range customizations {
		parts = append(parts, strings.Join([]string{
			c.QuestionID, c.AnswerID, c.TextValue, c.ImagePublicID, c.FileURL, c.FilePublicID,
		}, "\x1f"))
	}
	sort.Strings(parts)
	return strings.Join(parts, "\x1e")
}
