package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ColumnType selects the coercion applied to a dataset column when the
// filtered view is built.
type ColumnType string

const (
	ColumnString      ColumnType = "string"
	ColumnNumeric     ColumnType = "numeric"
	ColumnDatetime    ColumnType = "datetime"
	ColumnCategorical ColumnType = "categorical"
	ColumnBoolean     ColumnType = "boolean"
	ColumnList        ColumnType = "list"
)

type ColumnSpec struct {
	Description string     `yaml:"description"`
	Type        ColumnType `yaml:"type"`
}

// SchemaRegistry maps dataset column names to their coercion and the
// human-readable description shown to the analytics code generator.
type SchemaRegistry map[string]ColumnSpec

// InternalColumns are technical columns never exposed to the model or to
// answer output. The scoping column belongs here: generated code must not
// see the authorization attribute at all.
var InternalColumns = []string{"carr_eqp_uid", "job_no", "consignee_codes", "document_id"}

// ColumnSynonyms maps common question vocabulary to canonical column names;
// it is folded into the analytics prompt so generated code picks the right
// columns.
var ColumnSynonyms = map[string]string{
	"weight":              "cargo_weight_kg",
	"vol":                 "cargo_measure_cubic_meter",
	"volume":              "cargo_measure_cubic_meter",
	"count":               "cargo_count",
	"carrier":             "final_carrier_name",
	"vessel":              "final_vessel_name",
	"status":              "shipment_status",
	"shipper":             "supplier_vendor_name",
	"arrival":             "optimal_ata_dp_date",
	"destination_eta":     "optimal_eta_fd_date",
	"delay":               "dp_delayed_dur",
	"delivery_delay":      "fd_delayed_dur",
	"departure":           "etd_lp_date",
	"actual_departure":    "atd_lp_date",
	"estimated_departure": "etd_lp_date",
	"etd":                 "etd_lp_date",
	"atd":                 "atd_lp_date",
}

// DefaultShipmentSchema returns the built-in registry for the master
// shipment dataset.
func DefaultShipmentSchema() SchemaRegistry {
	return SchemaRegistry{
		"container_number":          {Description: "The unique 11-character container identifier.", Type: ColumnString},
		"hot_container_flag":        {Description: "Flag indicating if the container is hot.", Type: ColumnBoolean},
		"shipment_status":           {Description: "Current phase of the shipment (e.g., DELIVERED, IN_OCEAN, READY_FOR_PICKUP).", Type: ColumnCategorical},
		"cargo_weight_kg":           {Description: "Total weight of the cargo in kilograms.", Type: ColumnNumeric},
		"cargo_measure_cubic_meter": {Description: "Total volume of the cargo in cubic meters (CBM).", Type: ColumnNumeric},
		"cargo_count":               {Description: "Total number of packages or units.", Type: ColumnNumeric},
		"cargo_detail_count":        {Description: "Total sum of all cargo line item quantities.", Type: ColumnNumeric},
		"true_carrier_scac_name":    {Description: "The primary carrier shipping line name.", Type: ColumnString},
		"final_carrier_name":        {Description: "The name of the carrier handling the final leg.", Type: ColumnString},
		"first_vessel_name":         {Description: "The name of the vessel for the first ocean leg.", Type: ColumnString},
		"final_vessel_name":         {Description: "The name of the vessel for the final ocean leg.", Type: ColumnString},
		"supplier_vendor_name":      {Description: "The shipper or supplier of the goods.", Type: ColumnString},
		"manufacturer_name":         {Description: "The company that manufactured the goods.", Type: ColumnString},
		"load_port":                 {Description: "The port where the cargo was initially loaded.", Type: ColumnString},
		"discharge_port":            {Description: "The port where the cargo is unloaded from the final vessel.", Type: ColumnString},
		"final_destination":         {Description: "The final point of delivery.", Type: ColumnString},
		"dp_delayed_dur":            {Description: "Days the shipment is delayed at the discharge port.", Type: ColumnNumeric},
		"fd_delayed_dur":            {Description: "Days the shipment is delayed at the final destination.", Type: ColumnNumeric},
		"eta_dp_date":               {Description: "Estimated Time of Arrival at Discharge Port.", Type: ColumnDatetime},
		"ata_dp_date":               {Description: "Actual Time of Arrival at Discharge Port.", Type: ColumnDatetime},
		"eta_fd_date":               {Description: "Estimated Time of Arrival at Final Destination.", Type: ColumnDatetime},
		"optimal_ata_dp_date":       {Description: "The best available date for arrival at discharge port.", Type: ColumnDatetime},
		"optimal_eta_fd_date":       {Description: "The best available date for arrival at final destination.", Type: ColumnDatetime},
		"atd_lp_date":               {Description: "Actual Time of Departure from Load Port.", Type: ColumnDatetime},
		"etd_lp_date":               {Description: "Estimated Time of Departure from Load Port.", Type: ColumnDatetime},
		"booking_numbers":           {Description: "Internal shipment booking identifiers.", Type: ColumnList},
		"po_numbers":                {Description: "Customer Purchase Order numbers.", Type: ColumnList},
		"obl_number":                {Description: "Original Bill of Lading number.", Type: ColumnString},
		"consignee_codes":           {Description: "Account codes the row is scoped to.", Type: ColumnList},
	}
}

// LoadSchemaFile reads a registry override from a YAML file mapping column
// name to {description, type}.
func LoadSchemaFile(path string) (SchemaRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var registry SchemaRegistry
	if err := yaml.Unmarshal(raw, &registry); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}
	for name, spec := range registry {
		if spec.Type == "" {
			spec.Type = ColumnString
			registry[name] = spec
		}
	}
	return registry, nil
}

// IsInternalColumn reports whether the column must be hidden from the model.
func IsInternalColumn(name string) bool {
	for _, c := range InternalColumns {
		if c == name {
			return true
		}
	}
	return false
}
