package core

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasTable lists the accepted header spellings for each column.
// Matching ignores case, spaces, underscores, dashes and dots.
type AliasTable map[Column][]string

// DefaultAliases returns the header aliases accepted out of the box.
// The canonical template header is always accepted in addition.
func DefaultAliases() AliasTable {
	return AliasTable{
		ColRowKey:           {"Row_Key", "RowKey", "Upload_Key"},
		ColHSCode:           {"HS_Code", "HSCode", "Code_SH"},
		ColDescription:      {"Descr", "Description", "Description_Colis"},
		ColOrderNo:          {"Command_No", "No_Commande", "Order_No"},
		ColSupplierName:     {"Supplier_Name", "Nom_Fournisseur", "Supplier"},
		ColInvoiceNo:        {"Invoice_No", "No_Facture"},
		ColItemNo:           {"Item_No", "No_Article", "Article"},
		ColCurrency:         {"Currency", "Devise"},
		ColQuantity:         {"Qty", "Qte_Colis", "Quantity"},
		ColUnitPrice:        {"Unit_Prize", "Unit_Price", "Prix_Unitaire_Facture", "Prix_Unitaire_Colis"},
		ColGrossWeight:      {"Gross_Weight", "Poids_Brut"},
		ColNetWeight:        {"Net_Weight", "Poids_Net"},
		ColVolume:           {"Volume"},
		ColCountry:          {"Country_Origin", "Pays_Origine", "Country"},
		ColRegimeCode:       {"Regime_Code", "Regime", "Regime_Declaration"},
		ColRegimeRatio:      {"Regime_Ratio", "Ratio_DC"},
		ColCustomerGrouping: {"Customer_Grouping", "Regroupement_Client"},
	}
}

// index builds the normalized header -> column lookup.
func (t AliasTable) index() map[string]Column {
	idx := make(map[string]Column)
	for _, col := range Columns() {
		idx[normalizeHeader(col.Header())] = col
	}
	for col, aliases := range t {
		for _, a := range aliases {
			if key := normalizeHeader(a); key != "" {
				idx[key] = col
			}
		}
	}
	return idx
}

// Merge returns a copy of t with extra appended to each column's aliases.
func (t AliasTable) Merge(extra AliasTable) AliasTable {
	out := make(AliasTable, len(t))
	for col, aliases := range t {
		out[col] = append([]string(nil), aliases...)
	}
	for col, aliases := range extra {
		out[col] = append(out[col], aliases...)
	}
	return out
}

// LoadAliasFile reads additional header aliases from a YAML file keyed by
// canonical header name:
//
//	HS_Code: [Tarif, Nomenclature]
//	Currency: [Monnaie]
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases decodes YAML alias overrides. Unknown canonical names are rejected.
func ParseAliases(data []byte) (AliasTable, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}

	byHeader := make(map[string]Column, numColumns)
	for _, col := range Columns() {
		byHeader[normalizeHeader(col.Header())] = col
	}

	table := make(AliasTable, len(raw))
	for name, aliases := range raw {
		col, ok := byHeader[normalizeHeader(name)]
		if !ok {
			return nil, fmt.Errorf("unknown column %q in alias file", name)
		}
		table[col] = append(table[col], aliases...)
	}
	return table, nil
}
