package models

// Bank is static reference data served by Kwelipay's bank directory.
type Bank struct {
    Code    string `json:"code"`
    Name    string `json:"name"`
    Country string `json:"country"`
}

// MobileNetwork is a mobile-money network supported for direct charges.
type MobileNetwork struct {
    Code        string `json:"code"`
    Name        string `json:"name"`
    CountryCode string `json:"country_code"`
}
