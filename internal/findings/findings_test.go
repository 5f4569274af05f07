package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndToEndScenario(t *testing.T) {
	raw := []byte("hardcoded-secret,,12,,password in plaintext\nnoise line without commas\n")

	got := Parse(raw, Linter)

	require.Len(t, got, 1)
	assert.Equal(t, Finding{SmellID: "hardcoded-secret", Line: 12, Message: "password in plaintext"}, got[0])
}

func TestParseKeepsCommasInTrailingField(t *testing.T) {
	raw := []byte("sec_https,/repo/site.yml,7,sec_https,url: http://a, http://b, http://c\n")

	got := Parse(raw, Linter)

	require.Len(t, got, 1)
	assert.Equal(t, "url: http://a, http://b, http://c", got[0].Message)
	assert.Equal(t, 7, got[0].Line)
}

func TestParseClampsLineNumbers(t *testing.T) {
	raw := []byte("a,,-3,,negative\nb,,0,,zero\nc,,1,,one\n")

	got := Parse(raw, Linter)

	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Line)
	assert.Equal(t, 1, got[1].Line)
	assert.Equal(t, 1, got[2].Line)
}

func TestParseSkipsMalformedRecords(t *testing.T) {
	raw := []byte(
		"Analyzing 1 file...\n" +
			"too,few\n" +
			"bad,,twelve,,not a number\n" +
			"ok,,4,,kept\n" +
			"also,,,,empty line field\n" +
			"\n")

	got, skipped := ParseWithStats(raw, Linter)

	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].SmellID)
	assert.Equal(t, 3, skipped)
}

func TestParseCRLFAndBOM(t *testing.T) {
	raw := []byte("\xEF\xBB\xBFsec_empty_pass,,2,,empty password\r\nsec_def_admin,,9,,admin by default\r\n")

	got := Parse(raw, Linter)

	require.Len(t, got, 2)
	assert.Equal(t, "sec_empty_pass", got[0].SmellID)
	assert.Equal(t, "empty password", got[0].Message)
	assert.Equal(t, "admin by default", got[1].Message)
}

func TestParseCSVFormat(t *testing.T) {
	raw := []byte("/repo/init.pp,14,sec_hard_user,user => 'admin', group => 'root'\n")

	got := Parse(raw, CSV)

	require.Len(t, got, 1)
	assert.Equal(t, Finding{SmellID: "sec_hard_user", Line: 14, Message: "user => 'admin', group => 'root'"}, got[0])
}

func TestParseSplitsPerFormat(t *testing.T) {
	raw := []byte("/repo/site.yml,3,sec_http,a, b, c\n")

	csv := Parse(raw, CSV)
	require.Len(t, csv, 1)
	assert.Equal(t, "a, b, c", csv[0].Message)

	// A format without a field count splits like Linter.
	custom := Format{SmellField: 2, LineField: 1, MessageField: 3}
	got := Parse(raw, custom)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Message)
}

func TestParseIsIdempotent(t *testing.T) {
	raw := []byte("a,,1,,x\nnoise\nb,,2,,y, z\n")
	first := Parse(raw, Linter)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Parse(raw, Linter))
	}
}

func TestParseEmpty(t *testing.T) {
	assert.Empty(t, Parse(nil, Linter))
	assert.Empty(t, Parse([]byte("no records here\n"), Linter))
}

func TestFormatByName(t *testing.T) {
	f, err := FormatByName("")
	require.NoError(t, err)
	assert.Equal(t, Linter, f)

	f, err = FormatByName(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	_, err = FormatByName("sarif")
	require.Error(t, err)
}
