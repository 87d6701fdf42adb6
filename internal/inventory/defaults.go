package inventory

import (
	"fmt"
	"strings"

	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

// Defaults are the values suggested for a new product from its category and name.
type Defaults struct {
	GST         pricing.GST
	Description string
}

// DeriveDefaults suggests tax rates and a description for a product. The admin form
// pre-fills these; a product created without them gets them applied.
func DeriveDefaults(category, name string) Defaults {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)

	d := Defaults{GST: pricing.DefaultGST(category)}
	switch {
	case name == "":
	case pricing.IsApparel(category):
		d.Description = fmt.Sprintf("%s in soft, breathable fabric, cut for an easy everyday fit.", name)
	case category != "":
		d.Description = fmt.Sprintf("%s from our %s collection.", name, strings.ToLower(category))
	default:
		d.Description = name + "."
	}
	return d
}
