package store

import "github.com/tnphung/weather-app/internal/model"

// defaultCountries 初始国家表（ISO 3166-1 alpha-2）
var defaultCountries = []model.Country{
	{Name: "Argentina", Code: "AR"},
	{Name: "Australia", Code: "AU"},
	{Name: "Austria", Code: "AT"},
	{Name: "Bangladesh", Code: "BD"},
	{Name: "Belgium", Code: "BE"},
	{Name: "Brazil", Code: "BR"},
	{Name: "Canada", Code: "CA"},
	{Name: "Chile", Code: "CL"},
	{Name: "China", Code: "CN"},
	{Name: "Colombia", Code: "CO"},
	{Name: "Czech Republic", Code: "CZ"},
	{Name: "Denmark", Code: "DK"},
	{Name: "Egypt", Code: "EG"},
	{Name: "Finland", Code: "FI"},
	{Name: "France", Code: "FR"},
	{Name: "Germany", Code: "DE"},
	{Name: "Greece", Code: "GR"},
	{Name: "Hong Kong", Code: "HK"},
	{Name: "Hungary", Code: "HU"},
	{Name: "Iceland", Code: "IS"},
	{Name: "India", Code: "IN"},
	{Name: "Indonesia", Code: "ID"},
	{Name: "Ireland", Code: "IE"},
	{Name: "Israel", Code: "IL"},
	{Name: "Italy", Code: "IT"},
	{Name: "Japan", Code: "JP"},
	{Name: "Kenya", Code: "KE"},
	{Name: "Malaysia", Code: "MY"},
	{Name: "Mexico", Code: "MX"},
	{Name: "Netherlands", Code: "NL"},
	{Name: "New Zealand", Code: "NZ"},
	{Name: "Nigeria", Code: "NG"},
	{Name: "Norway", Code: "NO"},
	{Name: "Pakistan", Code: "PK"},
	{Name: "Peru", Code: "PE"},
	{Name: "Philippines", Code: "PH"},
	{Name: "Poland", Code: "PL"},
	{Name: "Portugal", Code: "PT"},
	{Name: "Romania", Code: "RO"},
	{Name: "Russia", Code: "RU"},
	{Name: "Saudi Arabia", Code: "SA"},
	{Name: "Singapore", Code: "SG"},
	{Name: "South Africa", Code: "ZA"},
	{Name: "South Korea", Code: "KR"},
	{Name: "Spain", Code: "ES"},
	{Name: "Sweden", Code: "SE"},
	{Name: "Switzerland", Code: "CH"},
	{Name: "Taiwan", Code: "TW"},
	{Name: "Thailand", Code: "TH"},
	{Name: "Turkey", Code: "TR"},
	{Name: "Ukraine", Code: "UA"},
	{Name: "United Arab Emirates", Code: "AE"},
	{Name: "United Kingdom", Code: "GB"},
	{Name: "United States", Code: "US"},
	{Name: "Vietnam", Code: "VN"},
}
