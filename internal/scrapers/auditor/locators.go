package auditor

// Form holds the element locators of the sales search form.
type Form struct {
	SalePriceLow     string `json:"sale_price_low"`
	SalePriceHigh    string `json:"sale_price_high"`
	FinishedSqFtLow  string `json:"finished_sq_ft_low"`
	FinishedSqFtHigh string `json:"finished_sq_ft_high"`
	BedroomsLow      string `json:"bedrooms_low"`
	SaleDateFrom     string `json:"sale_date_from"`
	SaleDateTo       string `json:"sale_date_to"`
	Submit           string `json:"submit"`
}

type Results struct {
	// Count holds text like "Showing 1 to 15 of 1,234 entries".
	Count            string `json:"count"`
	NoResults        string `json:"no_results"`
	PageCount        string `json:"page_count"`
	Table            string `json:"table"`
	NextPage         string `json:"next_page"`
	FirstResultsPage string `json:"first_results_page"`
	FirstRow         string `json:"first_row"`
}

type Property struct {
	// ParcelHeader holds a label line followed by the parcel id line.
	ParcelHeader   string `json:"parcel_header"`
	AppraisalTable string `json:"appraisal_table"`
	SchoolDistrict string `json:"school_district"`
	Owner          string `json:"owner"`
	NextProperty   string `json:"next_property"`
}

// Locators are the XPath expressions (or CSS selectors) of every element
// the scraper touches. They depend on the site's markup, so all of them can
// be overridden from config.
type Locators struct {
	Form     Form     `json:"form"`
	Results  Results  `json:"results"`
	Property Property `json:"property"`
}

func DefaultLocators() Locators {
	return Locators{
		Form: Form{
			SalePriceLow:     "#sale_price_low",
			SalePriceHigh:    "#sale_price_high",
			FinishedSqFtLow:  "#finished_sq_ft_low",
			FinishedSqFtHigh: "#finished_sq_ft_high",
			BedroomsLow:      "#bedrooms_low",
			SaleDateFrom:     "#sale_date_low",
			SaleDateTo:       "#sale_date_high",
			Submit:           `//button[@id="btSearch" or @type="submit"]`,
		},
		Results: Results{
			Count:            `//div[@id="searchResults_info"]`,
			NoResults:        `//*[contains(@class, "no-results")]`,
			PageCount:        `//span[@id="totalPages"]`,
			Table:            `//table[@id="searchResults"]`,
			NextPage:         `//a[@id="searchResults_next"]`,
			FirstResultsPage: `//a[@id="searchResults_first"]`,
			FirstRow:         `//table[@id="searchResults"]/tbody/tr[1]`,
		},
		Property: Property{
			ParcelHeader:   `//div[@class="DataletHeaderTop"]`,
			AppraisalTable: `//table[@id="Appraisal Information"]`,
			SchoolDistrict: `//td[text()="School District"]/following-sibling::td[1]`,
			Owner:          `//td[text()="Mailing Address"]/following-sibling::td[1]`,
			NextProperty:   `//a[@id="DTLNavigator_nextRecord"]`,
		},
	}
}
