package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

type listingForm struct {
	ProductNumber string           `json:"product_number" validate:"required,numeric,len=5"`
	Category      string           `json:"category" validate:"required,oneof=necklace-set bangles earrings"`
	Price         *decimal.Decimal `json:"price" validate:"required,gte=0"`
	Images        []string         `json:"images" validate:"required,min=1,max=3,dive,required,datauri"`
}

func decodeListing(body string) (*listingForm, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/products", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	var form listingForm
	err := DecodeAndValidate(req, &form)
	return &form, err
}

func fieldsOf(errs []ValidationError) map[string]string {
	out := make(map[string]string, len(errs))
	for _, e := range errs {
		out[e.Field] = e.Message
	}
	return out
}

func TestValidListingPasses(t *testing.T) {
	form, err := decodeListing(`{"product_number":"12345","category":"bangles","price":49.99,"images":["data:image/png;base64,AAA="]}`)
	if err != nil {
		t.Fatalf("expected valid listing, got %v", err)
	}
	if !form.Price.Equal(decimal.RequireFromString("49.99")) {
		t.Errorf("price should decode exactly, got %s", form.Price)
	}

	if _, err := decodeListing(`{"product_number":"12345","category":"bangles","price":"0","images":["data:image/png;base64,AAA="]}`); err != nil {
		t.Errorf("a zero price given as a string should pass, got %v", err)
	}
}

func TestListingFieldErrors(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{"no images", `{"product_number":"12345","category":"bangles","price":1,"images":[]}`, "images"},
		{"too many images", `{"product_number":"12345","category":"bangles","price":1,"images":["data:,a","data:,a","data:,a","data:,a"]}`, "images"},
		{"not a data url", `{"product_number":"12345","category":"bangles","price":1,"images":["https://example.com/a.png"]}`, "images[0]"},
		{"missing category", `{"product_number":"12345","price":1,"images":["data:image/png;base64,AAA="]}`, "category"},
		{"unknown category", `{"product_number":"12345","category":"rings","price":1,"images":["data:image/png;base64,AAA="]}`, "category"},
		{"missing price", `{"product_number":"12345","category":"bangles","images":["data:image/png;base64,AAA="]}`, "price"},
		{"negative price", `{"product_number":"12345","category":"bangles","price":-5,"images":["data:image/png;base64,AAA="]}`, "price"},
		{"short number", `{"product_number":"123","category":"bangles","price":1,"images":["data:image/png;base64,AAA="]}`, "product_number"},
		{"letters in number", `{"product_number":"12a45","category":"bangles","price":1,"images":["data:image/png;base64,AAA="]}`, "product_number"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeListing(tc.body)
			if err == nil {
				t.Fatal("expected validation failure")
			}
			fields := fieldsOf(FormatValidationErrors(err))
			if _, ok := fields[tc.field]; !ok {
				t.Errorf("expected an error on %q, got %v", tc.field, fields)
			}
		})
	}
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	_, err := decodeListing(`{"product_number":"12345","category":"bangles","price":1,"images":["data:image/png;base64,AAA="],"discount":5}`)
	if err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
	if FormatValidationErrors(err) != nil {
		t.Error("decode errors are not field validation errors")
	}
}

// Property: any subset of missing required fields produces one error per missing field
func TestProperty_EachMissingFieldIsReported(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every omitted field is listed", prop.ForAll(
		func(withNumber, withCategory, withPrice, withImages bool) bool {
			var parts []string
			if withNumber {
				parts = append(parts, `"product_number":"54321"`)
			}
			if withCategory {
				parts = append(parts, `"category":"earrings"`)
			}
			if withPrice {
				parts = append(parts, `"price":"12.50"`)
			}
			if withImages {
				parts = append(parts, `"images":["data:image/gif;base64,R0lG"]`)
			}

			_, err := decodeListing("{" + strings.Join(parts, ",") + "}")
			fields := fieldsOf(FormatValidationErrors(err))

			expectMissing := map[string]bool{
				"product_number": !withNumber,
				"category":       !withCategory,
				"price":          !withPrice,
				"images":         !withImages,
			}
			missing := 0
			for field, absent := range expectMissing {
				_, reported := fields[field]
				if absent != reported {
					t.Logf("FAIL: field %s absent=%v reported=%v", field, absent, reported)
					return false
				}
				if absent {
					missing++
				}
			}
			return (missing == 0) == (err == nil)
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
