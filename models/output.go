package models

import "strconv"

// Instruction is one row of the scraping instruction file.
type Instruction struct {
	Industry           string `json:"industry"`
	SubIndustry        string `json:"subindustry" binding:"required"`
	TypeOfProduct      string `json:"type_of_product" binding:"required"`
	GenericProductType string `json:"generic_product_type"`

	// SearchModifiers is a ';' separated list of "site:keyword" overrides
	// and free-text modifiers.
	SearchModifiers string `json:"search_modifiers,omitempty"`
}

// Channel values.
const (
	ChannelB2C = "B2C"
	ChannelB2B = "B2B"
)

// OutputColumns is the fixed header of the output record stream.
var OutputColumns = []string{
	"date", "industry", "subindustry", "type_of_product", "generic_product_type",
	"product", "price_sar", "company", "source", "url",
	"unit_of_measurement", "total_quantity", "channel",
}

// OutputRow is one persisted ProductRecord with its instruction context.
type OutputRow struct {
	Date               string  `json:"date"`
	Industry           string  `json:"industry"`
	SubIndustry        string  `json:"subindustry"`
	TypeOfProduct      string  `json:"type_of_product"`
	GenericProductType string  `json:"generic_product_type"`
	Product            string  `json:"product"`
	PriceSAR           float64 `json:"price_sar"`
	Company            string  `json:"company"`
	Source             SiteID  `json:"source"`
	URL                string  `json:"url"`
	UnitOfMeasurement  Unit    `json:"unit_of_measurement"`
	TotalQuantity      float64 `json:"total_quantity"`
	Channel            string  `json:"channel"`
}

// Values returns the row's cells in OutputColumns order.
func (r OutputRow) Values() []string {
	return []string{
		r.Date,
		r.Industry,
		r.SubIndustry,
		r.TypeOfProduct,
		r.GenericProductType,
		r.Product,
		strconv.FormatFloat(r.PriceSAR, 'f', 2, 64),
		r.Company,
		string(r.Source),
		r.URL,
		string(r.UnitOfMeasurement),
		strconv.FormatFloat(r.TotalQuantity, 'f', -1, 64),
		r.Channel,
	}
}
