package validation

import (
	"fmt"
	"math"
	"regexp"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/storefront-orderflow/internal/pricing"
)

var (
	pincodeRe = regexp.MustCompile(`^[0-9]{6}$`)
	mobileRe  = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// gstTolerance absorbs float noise when checking total = cgst + sgst.
const gstTolerance = 0.001

// New returns a configured validator with the custom tags and struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// pincode: six digits. mobile: ten digits starting 6-9.
	_ = v.RegisterValidation("pincode", func(fl validatorv10.FieldLevel) bool {
		return pincodeRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("mobile", func(fl validatorv10.FieldLevel) bool {
		return mobileRe.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(gstStructValidation, pricing.GST{})

	return v
}

// gstStructValidation verifies an explicit GST record is non-negative and its total is the sum
// of its halves.
func gstStructValidation(sl validatorv10.StructLevel) {
	g := sl.Current().Interface().(pricing.GST)

	if g.CGST < 0 {
		sl.ReportError(g.CGST, "cgst", "CGST", "gte", "0")
	}
	if g.SGST < 0 {
		sl.ReportError(g.SGST, "sgst", "SGST", "gte", "0")
	}
	if math.Abs(g.CGST+g.SGST-g.Total) > gstTolerance {
		sl.ReportError(g.Total, "total", "Total", "gst_total", fmt.Sprintf("cgst %.2f + sgst %.2f != total %.2f", g.CGST, g.SGST, g.Total))
	}
}

// ValidPincode reports whether s is a six digit postal code.
func ValidPincode(s string) bool { return pincodeRe.MatchString(s) }

// ValidMobile reports whether s is a ten digit mobile number starting 6-9.
func ValidMobile(s string) bool { return mobileRe.MatchString(s) }
