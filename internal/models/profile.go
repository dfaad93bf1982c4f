package models

// Ticker source preferences for a profile.
const (
	TickerSourceManual      = "manual"
	TickerSourceFile        = "file"
	TickerSourceSpreadsheet = "spreadsheet"
)

// Content variants requested from the generator.
const (
	ContentStockAnalysis = "stock_analysis"
	ContentEarnings      = "earnings"
)

// Author is a WordPress account that posts are credited to and authenticated as.
type Author struct {
	Username    string `toml:"username" json:"username" validate:"required"`
	UserID      int    `toml:"user_id" json:"user_id" validate:"gt=0"`
	AppPassword string `toml:"app_password" json:"-" validate:"required"`
}

// SpreadsheetSource locates the workbook sheet used as the default ticker feed.
type SpreadsheetSource struct {
	Path  string `toml:"path" json:"path"`
	Sheet string `toml:"sheet" json:"sheet"`
}

// ProfileConfig is a target WordPress site with its authors and scheduling rules.
// It is operator-owned and read-only for the duration of a run.
type ProfileConfig struct {
	ProfileID       string            `toml:"profile_id" json:"profile_id" validate:"required"`
	Name            string            `toml:"name" json:"name"`
	SiteURL         string            `toml:"site_url" json:"site_url" validate:"required,url"`
	Authors         []Author          `toml:"authors" json:"authors" validate:"dive"`
	MinGapMinutes   int               `toml:"min_gap_minutes" json:"min_gap_minutes" validate:"gte=0"`
	MaxGapMinutes   int               `toml:"max_gap_minutes" json:"max_gap_minutes" validate:"gte=0"`
	CategoryID      int               `toml:"category_id" json:"category_id" validate:"gte=0"`
	DailyTarget     int               `toml:"daily_target" json:"daily_target" validate:"gte=0"`
	TickerSource    string            `toml:"ticker_source" json:"ticker_source" validate:"omitempty,oneof=manual file spreadsheet"`
	Spreadsheet     SpreadsheetSource `toml:"spreadsheet" json:"spreadsheet"`
	InternalLinking bool              `toml:"internal_linking" json:"internal_linking"`
	ContentType     string            `toml:"content_type" json:"content_type" validate:"omitempty,oneof=stock_analysis earnings"`
}

// DisplayName returns the profile name, or its id when unnamed.
func (p ProfileConfig) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ProfileID
}
