// Package textutils provides small string/character constants shared across
// the core's config, logging and error-aggregation packages, avoiding
// repeated string/rune literals scattered through those packages.
package textutils

const (
	EmptyStr      = ""
	NewLineString = "\n"
	WhiteSpaceStr = " "
	ColonStr      = ":"
	SemiColonStr  = ";"
	PeriodStr     = "."
	EqualStr      = "="
	ForwardSlashStr = "/"
	CloseBraceStr   = "}"
)

const (
	ColonChar        = ':'
	EqualChar        = '='
	HashChar         = '#'
	DollarChar       = '$'
	BackSlashChar    = '\\'
	OpenBraceChar    = '{'
	CloseBraceChar   = '}'
	ForwardSlashChar = '/'
	ALowerChar       = 'a'
	ZLowerChar       = 'z'
	AUpperChar       = 'A'
	ZUpperChar       = 'Z'
)
